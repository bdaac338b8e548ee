package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/data/db"
	apphttp "github.com/yungbote/rubric-backend/internal/http"
	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
	"github.com/yungbote/rubric-backend/internal/platform/openai"
	"github.com/yungbote/rubric-backend/internal/vecindex"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Server   *apphttp.Server
	Metrics  *observability.Metrics

	dbService    *db.Service
	index        *vecindex.Index
	continuity   *continuityProvider
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log, cfg := a.Log, a.Cfg

	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     observability.ParseHeaders(cfg.OtelHeaders),
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})
	a.Metrics = observability.Init(log, cfg.MetricsEnabled)

	dbService, err := db.Open(log, db.Config{
		Driver:           cfg.DBDriver,
		DSN:              cfg.DBDSN,
		PostgresHost:     cfg.PostgresHost,
		PostgresPort:     cfg.PostgresPort,
		PostgresUser:     cfg.PostgresUser,
		PostgresPassword: cfg.PostgresPassword,
		PostgresName:     cfg.PostgresName,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.dbService = dbService
	if err := dbService.AutoMigrateAll(); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	a.DB = dbService.DB()

	aiCfg := openai.ConfigFromEnv()
	ai, err := openai.NewClient(log, aiCfg)
	if err != nil {
		return fmt.Errorf("init openai client: %w", err)
	}

	idx, err := openIndex(log, cfg)
	if err != nil {
		return err
	}
	a.index = idx

	continuity, err := wireContinuity(log, cfg)
	if err != nil {
		return err
	}
	a.continuity = continuity

	a.Repos = wireRepos(a.DB, log)
	a.Services = wireServices(a.DB, log, cfg, a.Repos, ai, aiCfg.Model, idx, continuity.Store)
	handlers := wireHandlers(log, a.DB, cfg, a.Services)

	a.Server = apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		ServiceName:     otelServiceName(cfg),
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         a.Metrics,
		HealthHandler:   handlers.Health,
		GenerateHandler: handlers.Generate,
		IngestHandler:   handlers.Ingest,
		LedgerHandler:   handlers.Ledger,
	})
	return nil
}

// otelServiceName enables the gin tracing middleware only when tracing is on.
func otelServiceName(cfg Config) string {
	if !cfg.OtelEnabled {
		return ""
	}
	return cfg.ServiceName
}

// Start launches background collectors bound to ctx.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Metrics.StartDBCollector(ctx, a.Log, a.DB, 15*time.Second)
	if a.continuity != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.continuity.Redis, 15*time.Second)
	}
}

// Run serves HTTP until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Start(ctx)
	a.Log.Info("Server listening", "addr", a.Cfg.Addr)
	return a.Server.Run(ctx, a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.Log.Warn("Index close failed", "error", err)
		}
	}
	if a.continuity != nil {
		if err := a.continuity.Close(); err != nil {
			a.Log.Warn("Continuity store close failed", "error", err)
		}
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
