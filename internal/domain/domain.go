package domain

import (
	"github.com/yungbote/rubric-backend/internal/domain/assessment"
)

type ScoreEntry = assessment.ScoreEntry
type RubricDefinition = assessment.RubricDefinition
type GenerationRecord = assessment.GenerationRecord
type ScoreFilter = assessment.ScoreFilter

// Models lists every persisted table in migration order.
func Models() []any {
	return []any{
		&ScoreEntry{},
		&RubricDefinition{},
		&GenerationRecord{},
	}
}
