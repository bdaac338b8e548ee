package app

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/learning/generation"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
	"github.com/yungbote/rubric-backend/internal/platform/openai"
	"github.com/yungbote/rubric-backend/internal/services"
	"github.com/yungbote/rubric-backend/internal/vecindex"
)

type Services struct {
	Orchestrator *generation.Orchestrator
	Embedder     *vecindex.Embedder
	Ingest       services.IngestService
	Ledger       services.LedgerService
}

func openIndex(log *logger.Logger, cfg Config) (*vecindex.Index, error) {
	if dir := filepath.Dir(cfg.IndexPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	idx, err := vecindex.Open(cfg.IndexPath, cfg.IndexDim,
		vecindex.WithCompactEvery(cfg.IndexCompactEvery),
		vecindex.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", cfg.IndexPath, err)
	}
	return idx, nil
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, ai openai.Client, model string, idx *vecindex.Index, continuity generation.ContinuityStore) Services {
	log.Info("Wiring services...")

	orchestrator := generation.NewOrchestrator(log, ai, continuity, reposet.GenerationRecord, generation.Config{
		MaxContentChars: cfg.MaxUnitChars,
		CallTimeout:     cfg.CallTimeout(),
		BookConcurrency: cfg.BookConcurrency,
		Model:           model,
	})
	embedder := vecindex.NewEmbedder(log, idx, ai.Embed, cfg.EmbedTimeout())

	ingest := services.NewIngestService(
		log,
		extractor.NewNormalizer(log),
		extractor.NewSegmenter(extractor.Strictness(cfg.SegmentStrictness)),
		orchestrator,
		embedder,
		cfg.MaxUnitChars,
	)
	ledger := services.NewLedgerService(db, log, reposet.ScoreEntry, reposet.RubricDefinition)

	return Services{
		Orchestrator: orchestrator,
		Embedder:     embedder,
		Ingest:       ingest,
		Ledger:       ledger,
	}
}
