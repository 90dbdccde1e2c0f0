package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/dispatcher"
	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/application/service"
	"github.com/garyjia/taskdoc/internal/domain/entity"
	"github.com/garyjia/taskdoc/internal/domain/event"
	"github.com/garyjia/taskdoc/internal/infrastructure/export"
	"github.com/garyjia/taskdoc/internal/infrastructure/external/gateway"
	infraLark "github.com/garyjia/taskdoc/internal/infrastructure/external/lark"
	"github.com/garyjia/taskdoc/internal/infrastructure/notification"
	"github.com/garyjia/taskdoc/internal/infrastructure/persistence/repository"
	"github.com/garyjia/taskdoc/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/taskdoc/internal/infrastructure/storage"
	"github.com/garyjia/taskdoc/internal/interfaces/websocket"
	"github.com/garyjia/taskdoc/migrations"
	"github.com/garyjia/taskdoc/pkg/database"
	"github.com/garyjia/taskdoc/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run(migrations.FS, ".")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		logger.Info("Applied database migrations", zap.Int("count", applied))
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over one connection pool.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		Task:        repository.NewTaskRepository(db.DB, logger),
		Project:     repository.NewProjectRepository(db.DB, logger),
		Document:    repository.NewDocumentRepository(db.DB, logger),
		LocalState:  repository.NewLocalStateRepository(db.DB, logger),
		ReminderLog: repository.NewReminderLogRepository(db.DB, logger),
	}, nil
}

// ProvideStorage creates the local file store.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil || cfg.BaseDir == "" {
		return nil, fmt.Errorf("storage base dir is required")
	}
	return storage.NewLocalFileStorage(cfg.BaseDir, logger), nil
}

// ProvideReminderSender builds the channel router. Lark is tried before the
// gateway; a channel without configuration is left out.
func ProvideReminderSender(larkCfg *LarkConfig, gwCfg *GatewayConfig, logger *zap.Logger) *notification.Router {
	var channels []notification.Channel

	lc := infraLark.Config{AppID: larkCfg.AppID, AppSecret: larkCfg.AppSecret, BaseURL: larkCfg.BaseURL}
	if lc.Enabled() {
		channels = append(channels, infraLark.NewMessenger(infraLark.NewSDKClient(lc, logger), logger))
	}

	gc := gateway.Config{
		URL:          gwCfg.URL,
		Token:        gwCfg.Token,
		Channel:      gwCfg.Channel,
		Timeout:      gwCfg.Timeout,
		MaxFailures:  gwCfg.MaxFailures,
		BreakerReset: gwCfg.BreakerReset,
	}
	if gc.Enabled() {
		channels = append(channels, gateway.NewClient(gc, logger))
	}

	if len(channels) == 0 {
		logger.Warn("No reminder channel configured; reminders will fail")
	}
	return notification.NewRouter(logger, channels...)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Storage    port.FileStorage
	Sender     port.ReminderSender
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	svcLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	compliance := service.NewComplianceService(repos.Task, repos.Document, deps.Storage, svcLogger)
	verification := service.NewVerificationService(repos.LocalState, svcLogger)
	reminders := service.NewReminderService(
		repos.Task, repos.Project, repos.Document, repos.ReminderLog,
		deps.Sender, deps.Dispatcher, svcLogger,
	)
	lifecycle := service.NewLifecycleService(repos.Task, deps.TxManager, deps.Dispatcher, svcLogger)

	task := service.NewTaskService(service.TaskServiceDeps{
		TaskRepo:     repos.Task,
		ProjectRepo:  repos.Project,
		TxManager:    deps.TxManager,
		Storage:      deps.Storage,
		Compliance:   compliance,
		Verification: verification,
		Reminders:    reminders,
		Lifecycle:    lifecycle,
		Exporter:     export.NewChecklistWriter(deps.Logger),
		Dispatcher:   deps.Dispatcher,
		Logger:       svcLogger,
	})

	return &ServiceBundle{
		Task:         task,
		Compliance:   compliance,
		Verification: verification,
		Reminders:    reminders,
		Lifecycle:    lifecycle,
	}, nil
}

// ProvideHub creates the websocket hub and subscribes it to task events.
func ProvideHub(cfg *RealtimeConfig, d dispatcher.Dispatcher, logger *zap.Logger) *websocket.Hub {
	hub := websocket.NewHub(websocket.HubConfig{AllowedOrigins: cfg.AllowedOrigins}, logger)

	broadcast := createBroadcastHandler(hub, logger)
	d.SubscribeNamed(event.TypeTaskCreated, "realtime_broadcast", broadcast)
	d.SubscribeNamed(event.TypeStatusChanged, "realtime_broadcast", broadcast)

	return hub
}

func createBroadcastHandler(hub *websocket.Hub, logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		n, ok := event.ToNotification(evt)
		if !ok {
			return nil
		}
		if err := hub.Broadcast(n); err != nil {
			return fmt.Errorf("broadcast %s: %w", evt.Type, err)
		}
		logger.Debug("Broadcast notification",
			zap.String("event_type", string(evt.Type)),
			zap.Int64("task_id", evt.TaskID),
			zap.Int("clients", hub.ClientCount()))
		return nil
	}
}

type projectUpserter interface {
	Upsert(ctx context.Context, p *entity.Project) error
}

// SeedProjects upserts the configured projects.
func SeedProjects(ctx context.Context, repo projectUpserter, seeds []ProjectSeed, logger *zap.Logger) error {
	for _, s := range seeds {
		p := &entity.Project{
			ID:   s.ID,
			Name: utils.SanitizeString(s.Name),
			Client: entity.ClientContact{
				Name:       utils.SanitizeString(s.ClientName),
				Phone:      utils.NormalizePhone(s.ClientPhone),
				Email:      s.ClientEmail,
				LarkChatID: s.ClientChatID,
			},
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("seed project %d: %w", s.ID, err)
		}
	}
	if len(seeds) > 0 {
		logger.Info("Seeded projects", zap.Int("count", len(seeds)))
	}
	return nil
}
