package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"knowledge-backend/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		PublicBaseURL:   "http://files.test",
	}
}

func TestBuildWithoutDatabaseUsesMemoryRepos(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if app.DB != nil {
		t.Fatal("expected nil DB without DATABASE_URL")
	}
	if app.Pipeline == nil || app.Dispatcher == nil || app.Workflow == nil {
		t.Fatal("expected services wired")
	}
	if app.Router == nil {
		t.Fatal("expected router wired")
	}
}

func TestBuiltRouterServesHealth(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBuiltRouterServesMetricsWithoutAuth(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestBuildRejectsMissingDatabaseInProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	cfg.ConvertAPIKey = "key"
	if _, err := Build(cfg); err == nil {
		t.Fatal("expected error without DATABASE_URL in production")
	}
}
