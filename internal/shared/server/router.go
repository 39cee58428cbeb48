package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "knowledge-backend/internal/auth"
	"knowledge-backend/internal/hybrid"
	"knowledge-backend/internal/knowledge"
	"knowledge-backend/internal/pipeline"
	"knowledge-backend/internal/shared/config"
	"knowledge-backend/internal/shared/metrics"
	"knowledge-backend/internal/shared/server/middleware"
	"knowledge-backend/internal/shared/server/respond"
	"knowledge-backend/internal/usage"
	"knowledge-backend/internal/users"
)

// RouterDeps carries the handlers the router wires up. Nil handlers are
// skipped so partial wiring works in tests.
type RouterDeps struct {
	Config           config.Config
	PipelineHandler  *pipeline.Handler
	KnowledgeHandler *knowledge.Handler
	HybridHandler    *hybrid.Handler
	UsageHandler     *usage.Handler
	UsersHandler     *users.Handler
	GoogleAuth       *googleauth.GoogleService
	LocalFilesDir    string
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		middleware.RateLimit(rateLimitConfig()),
	)

	r.GET("/metrics", metrics.Handler())
	if deps.LocalFilesDir != "" {
		r.Static("/files", deps.LocalFilesDir)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	registerMeRoutes(api)
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(api)
	}
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(api)
	}
	if deps.KnowledgeHandler != nil {
		deps.KnowledgeHandler.RegisterRoutes(api)
	}
	if deps.HybridHandler != nil {
		deps.HybridHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
		if cfg.Env == "dev" {
			dev := api.Group("/dev")
			deps.UsageHandler.RegisterDevRoutes(dev)
		}
	}

	return r
}

// Polling endpoints get a looser budget than mutating ones.
func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet {
				switch c.FullPath() {
				case "/api/v1/jobs/:id", "/api/v1/jobs/:id/workflow":
					return "POLLING"
				}
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 2, Burst: 10},
			"POLLING": {Rate: 10, Burst: 30},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
