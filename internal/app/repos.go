package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/data/repos"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type Repos struct {
	ScoreEntry       repos.ScoreEntryRepo
	RubricDefinition repos.RubricDefinitionRepo
	GenerationRecord repos.GenerationRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ScoreEntry:       repos.NewScoreEntryRepo(db, log),
		RubricDefinition: repos.NewRubricDefinitionRepo(db, log),
		GenerationRecord: repos.NewGenerationRecordRepo(db, log),
	}
}
