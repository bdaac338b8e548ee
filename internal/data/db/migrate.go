package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}

// EnsureLedgerIndexes adds the composite indexes the ledger queries filter on.
// The statements are portable between Postgres and sqlite.
func EnsureLedgerIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_score_entry_learner_lesson
		ON score_entry (learner_id, lesson_title, id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_score_entry_learner_lesson: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rubric_definition_lesson
		ON rubric_definition (lesson_title, id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_rubric_definition_lesson: %w", err)
	}

	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureLedgerIndexes(s.db); err != nil {
		s.log.Error("Ledger index migration failed", "error", err)
		return err
	}
	return nil
}
