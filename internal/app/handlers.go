package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/rubric-backend/internal/http/handlers"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Generate *httpH.GenerateHandler
	Ingest   *httpH.IngestHandler
	Ledger   *httpH.LedgerHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(dbPing(db)),
		Generate: httpH.NewGenerateHandler(services.Ingest, cfg.MaxUploadBytes),
		Ingest:   httpH.NewIngestHandler(services.Ingest, cfg.MaxUploadBytes),
		Ledger:   httpH.NewLedgerHandler(services.Ledger),
	}
}

func dbPing(db *gorm.DB) func(ctx context.Context) error {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
