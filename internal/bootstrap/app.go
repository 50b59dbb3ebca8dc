package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"scribe-backend/internal/dictations"
	"scribe-backend/internal/llm"
	"scribe-backend/internal/llm/vertex"
	"scribe-backend/internal/pairing"
	"scribe-backend/internal/queue"
	"scribe-backend/internal/shared/config"
	"scribe-backend/internal/shared/server"
	"scribe-backend/internal/shared/storage/db"
	"scribe-backend/internal/shared/storage/object"
	gcsstore "scribe-backend/internal/shared/storage/object/gcs"
	localstore "scribe-backend/internal/shared/storage/object/local"
	s3store "scribe-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies wired from configuration.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	DictationsRepo      dictations.Repo
	PairingRepo         pairing.Repo
	DictationsService   *dictations.Service
	DictationProcessor  DictationProcessor
	PairingService      *pairing.Service
	DictationsHandler   *dictations.Handler
	PairingHandler      *pairing.Handler
}

// DictationProcessor allows callers to override dictation processing for tests.
type DictationProcessor interface {
	Process(ctx context.Context, scope, id string)
}

// Build prepares shared dependencies and the router.
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

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		DictationHandler: app.DictationsHandler,
		PairingHandler:   app.PairingHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using object store repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using object store repositories: %v", err)
			sqlDB.Close()
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		return gcsstore.New(ctx, cfg.GCSBucket)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.SQSQueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(ctx context.Context, app *App) error {
	var dictRepo dictations.Repo
	var pairRepo pairing.Repo

	if app.DB != nil {
		dictRepo = &dictations.PGRepo{DB: app.DB}
	} else {
		dictRepo = dictations.NewObjectRepo(app.Store)
	}
	pairRepo = pairing.NewObjectRepo(app.Store)

	llmClient := llm.Client(llm.PlaceholderClient{})
	if strings.TrimSpace(app.Config.VertexProjectID) != "" {
		vertexClient, err := vertex.NewClient(ctx,
			app.Config.VertexProjectID,
			app.Config.VertexLocation,
			app.Config.VertexModel,
			app.Config.VertexTimeout,
		)
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return err
			}
			log.Printf("bootstrap: vertex client unavailable; using placeholder: %v", err)
		} else {
			llmClient = vertexClient
		}
	}

	dictSvc := &dictations.Service{
		Repo:           dictRepo,
		Store:          app.Store,
		LLM:            llmClient,
		Queue:          app.Queue,
		MinPasswordLen: app.Config.MinPasswordLength,
		HistoryTTL:     app.Config.HistoryTTL,
		HistoryMax:     app.Config.HistoryMaxItems,
		SignedURLTTL:   app.Config.SignedURLTTL,
		ProcessTimeout: app.Config.VertexTimeout,
	}
	pairSvc := &pairing.Service{
		Repo: pairRepo,
		TTL:  app.Config.PairingTTL,
	}

	app.DictationsRepo = dictRepo
	app.PairingRepo = pairRepo
	app.DictationsService = dictSvc
	app.DictationProcessor = dictSvc
	app.PairingService = pairSvc
	app.DictationsHandler = dictations.NewHandler(dictSvc, app.Config.AdminPassword)
	app.PairingHandler = pairing.NewHandler(pairSvc)

	return nil
}
