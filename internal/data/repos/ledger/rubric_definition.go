package ledger

import (
	"context"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type RubricDefinitionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, defs []*types.RubricDefinition) ([]*types.RubricDefinition, error)
	ListByLesson(ctx context.Context, tx *gorm.DB, lessonTitle string) ([]*types.RubricDefinition, error)
}

type rubricDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRubricDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) RubricDefinitionRepo {
	return &rubricDefinitionRepo{db: db, log: baseLog.With("repo", "RubricDefinitionRepo")}
}

func (r *rubricDefinitionRepo) Create(ctx context.Context, tx *gorm.DB, defs []*types.RubricDefinition) ([]*types.RubricDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(defs) == 0 {
		return []*types.RubricDefinition{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&defs).Error; err != nil {
		return nil, persistenceError(r.log, "create rubric definitions", err)
	}
	return defs, nil
}

// ListByLesson returns definitions in insertion order; an empty title lists all.
func (r *rubricDefinitionRepo) ListByLesson(ctx context.Context, tx *gorm.DB, lessonTitle string) ([]*types.RubricDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.RubricDefinition{})
	if v := strings.TrimSpace(lessonTitle); v != "" {
		q = q.Where("lesson_title = ?", v)
	}
	results := []*types.RubricDefinition{}
	if err := q.Order("id ASC").Find(&results).Error; err != nil {
		return nil, persistenceError(r.log, "list rubric definitions", err)
	}
	return results, nil
}
