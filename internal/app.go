// internal/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "ledgersync/internal/api"
	"ledgersync/internal/api/handler"
	"ledgersync/internal/audit"
	auditkafka "ledgersync/internal/audit/kafka"
	"ledgersync/internal/config"
	"ledgersync/internal/gateway"
	"ledgersync/internal/repository"
	"ledgersync/internal/repository/memory"
	"ledgersync/internal/repository/postgres"
	"ledgersync/internal/service"
	"ledgersync/internal/util"
	"ledgersync/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB // nil when the memory store driver is selected

	// Repositories
	SnapshotRepository repository.SnapshotRepository
	EventRepository    repository.EventRepository

	// Gateway may be assigned before Initialize to plug in a concrete
	// provider client; it defaults to gateway.Unconfigured.
	Gateway gateway.ProviderGateway

	AuditRecorder audit.Recorder
	auditCloser   io.Closer

	// Services
	SyncService  service.SyncService
	EventService service.EventService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	var executor repository.DBExecutor
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		database, err := db.NewPostgresDB(cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = database
		executor = database
		app.SnapshotRepository = postgres.NewSnapshotRepository(database)
		app.EventRepository = postgres.NewEventRepository(database)
		app.Logger.Info("Database connection established.", "driver", cfg.StoreDriver)
	case config.StoreDriverMemory:
		app.SnapshotRepository = memory.NewSnapshotRepository()
		app.EventRepository = memory.NewEventRepository()
		app.Logger.Info("In-memory store initialized.", "driver", cfg.StoreDriver)
	}

	switch cfg.AuditSink {
	case config.AuditSinkKafka:
		recorder := auditkafka.NewRecorder(cfg.KafkaBrokers, cfg.AuditTopic)
		app.AuditRecorder = recorder
		app.auditCloser = recorder
		app.Logger.Info("Kafka audit recorder initialized.", "topic", cfg.AuditTopic)
	default:
		app.AuditRecorder = audit.NewSlogRecorder(app.Logger)
		app.Logger.Info("Log audit recorder initialized.")
	}

	if app.Gateway == nil {
		app.Gateway = gateway.Unconfigured{}
	}

	app.SyncService = service.NewSyncService(
		executor,
		app.SnapshotRepository,
		app.Gateway,
		app.AuditRecorder,
		cfg.ProviderFetchTimeout,
		app.Logger,
	)
	app.EventService = service.NewEventService(
		executor,
		app.EventRepository,
		app.AuditRecorder,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	ingestionHandler := handler.NewIngestionHandler(app.SyncService, app.EventService, app.Logger)
	app.HTTPHandler = router.NewRouter(ingestionHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.auditCloser != nil {
		if err := app.auditCloser.Close(); err != nil {
			app.Logger.Error("Failed to close audit recorder", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
