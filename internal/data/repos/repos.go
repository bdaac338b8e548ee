package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/data/repos/ledger"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type ScoreEntryRepo = ledger.ScoreEntryRepo
type RubricDefinitionRepo = ledger.RubricDefinitionRepo
type GenerationRecordRepo = ledger.GenerationRecordRepo

func NewScoreEntryRepo(db *gorm.DB, baseLog *logger.Logger) ScoreEntryRepo {
	return ledger.NewScoreEntryRepo(db, baseLog)
}
func NewRubricDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) RubricDefinitionRepo {
	return ledger.NewRubricDefinitionRepo(db, baseLog)
}
func NewGenerationRecordRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRecordRepo {
	return ledger.NewGenerationRecordRepo(db, baseLog)
}

// IsRetryable reports transaction conflicts that may succeed on another attempt.
func IsRetryable(err error) bool {
	return err != nil && ledger.IsRetryable(err)
}
