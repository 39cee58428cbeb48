package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "knowledge-backend/internal/auth"
	"knowledge-backend/internal/convert"
	"knowledge-backend/internal/embedding"
	"knowledge-backend/internal/hybrid"
	"knowledge-backend/internal/images"
	"knowledge-backend/internal/jobs"
	"knowledge-backend/internal/knowledge"
	"knowledge-backend/internal/pipeline"
	"knowledge-backend/internal/queue"
	"knowledge-backend/internal/shared/config"
	"knowledge-backend/internal/shared/server"
	"knowledge-backend/internal/shared/storage/db"
	"knowledge-backend/internal/shared/storage/object"
	localstore "knowledge-backend/internal/shared/storage/object/local"
	s3store "knowledge-backend/internal/shared/storage/object/s3"
	"knowledge-backend/internal/usage"
	"knowledge-backend/internal/users"
	"knowledge-backend/internal/workflow"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.ObjectStore
	Queue      queue.Client
	JobsRepo   jobs.Repo
	Entries    knowledge.Repo
	UsersRepo  users.Repo
	Workflow   *workflow.Store
	Pipeline   *pipeline.Service
	Dispatcher *hybrid.Dispatcher
	Usage      *usage.Service
	Users      *users.Service
	GoogleAuth *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	localFilesDir := ""
	if cfg.ObjectStoreType == "local" {
		localFilesDir = cfg.LocalStoreDir
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		PipelineHandler:  pipeline.NewHandler(app.Pipeline),
		KnowledgeHandler: knowledge.NewHandler(app.Entries, app.Pipeline.Embedder),
		HybridHandler:    hybrid.NewHandler(app.Dispatcher),
		UsageHandler:     usage.NewHandler(app.Usage),
		UsersHandler:     users.NewHandler(app.Users),
		GoogleAuth:       app.GoogleAuth,
		LocalFilesDir:    localFilesDir,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("KB_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var jobsRepo jobs.Repo
	var entriesRepo knowledge.Repo
	var userRepo users.Repo

	if app.DB != nil {
		jobsRepo = &jobs.PGRepo{DB: app.DB}
		entriesRepo = &knowledge.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		jobsRepo = jobs.NewMemoryRepo()
		entriesRepo = knowledge.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	var usageSvc *usage.Service
	if app.DB != nil {
		usageSvc = usage.NewPostgresService(usage.NewPGStore(app.DB))
	} else {
		usageSvc = usage.NewService()
	}

	var converter convert.Converter = convertPlaceholder{}
	if strings.TrimSpace(app.Config.ConvertAPIKey) != "" {
		client, err := convert.NewClient(app.Config.ConvertAPIKey, app.Config.ConvertAPIBaseURL, app.Config.ConvertPageRange)
		if err != nil {
			return err
		}
		converter = client
	} else if !isDevLike(app.Config.Env) {
		return fmt.Errorf("CONVERTAPI_KEY is required")
	}

	var embedder embedding.Embedder = embeddingPlaceholder{dimension: app.Config.EmbeddingDimension}
	if strings.TrimSpace(app.Config.EmbeddingAPIKey) != "" {
		client, err := embedding.NewClient(app.Config.EmbeddingAPIKey, app.Config.EmbeddingModel, "", app.Config.EmbeddingDimension)
		if err != nil {
			return err
		}
		embedder = client
	}

	workflowStore := workflow.NewStore()

	pipelineSvc := &pipeline.Service{
		Jobs:      jobsRepo,
		Entries:   entriesRepo,
		Store:     app.Store,
		Converter: converter,
		Embedder:  embedder,
		Workflow:  workflowStore,
		Relocator: images.NewRelocator(app.Store),
		Usage:     usageSvc,
		Queue:     app.Queue,
	}

	userSvc := users.NewService(userRepo)
	googleAuthSvc := googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	app.JobsRepo = jobsRepo
	app.Entries = entriesRepo
	app.UsersRepo = userRepo
	app.Workflow = workflowStore
	app.Pipeline = pipelineSvc
	app.Dispatcher = hybrid.NewDispatcher(buildProviders(app.Config)...)
	app.Usage = usageSvc
	app.Users = userSvc
	app.GoogleAuth = googleAuthSvc
	return nil
}

type convertPlaceholder struct{}

func (convertPlaceholder) Convert(ctx context.Context, sourceURL string) (convert.Result, error) {
	_ = ctx
	_ = sourceURL
	return convert.Result{}, fmt.Errorf("convertapi request failed: client not configured")
}

func (convertPlaceholder) Fetch(ctx context.Context, fileURL string) ([]byte, error) {
	_ = ctx
	_ = fileURL
	return nil, fmt.Errorf("convertapi request failed: client not configured")
}

type embeddingPlaceholder struct {
	dimension int
}

func (embeddingPlaceholder) Embed(ctx context.Context, text string) ([]float32, error) {
	_ = ctx
	_ = text
	return nil, fmt.Errorf("embedding client not configured")
}

func (p embeddingPlaceholder) Dimension() int { return p.dimension }

func buildProviders(cfg config.Config) []hybrid.Provider {
	var providers []hybrid.Provider
	if strings.TrimSpace(cfg.EmbeddingAPIKey) != "" {
		providers = append(providers, hybrid.NewOpenAIProvider(cfg.EmbeddingAPIKey, ""))
	}
	providers = append(providers, hybrid.NewRuleBasedProvider())
	return providers
}
