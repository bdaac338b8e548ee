package ledger

import (
	"context"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type ScoreEntryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entries []*types.ScoreEntry) ([]*types.ScoreEntry, error)
	List(ctx context.Context, tx *gorm.DB, filter types.ScoreFilter) ([]*types.ScoreEntry, error)
}

type scoreEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScoreEntryRepo(db *gorm.DB, baseLog *logger.Logger) ScoreEntryRepo {
	return &scoreEntryRepo{db: db, log: baseLog.With("repo", "ScoreEntryRepo")}
}

func (r *scoreEntryRepo) Create(ctx context.Context, tx *gorm.DB, entries []*types.ScoreEntry) ([]*types.ScoreEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(entries) == 0 {
		return []*types.ScoreEntry{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&entries).Error; err != nil {
		return nil, persistenceError(r.log, "create score entries", err)
	}
	return entries, nil
}

// List returns matching entries in insertion order.
func (r *scoreEntryRepo) List(ctx context.Context, tx *gorm.DB, filter types.ScoreFilter) ([]*types.ScoreEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.ScoreEntry{})
	if v := strings.TrimSpace(filter.LearnerID); v != "" {
		q = q.Where("learner_id = ?", v)
	}
	if v := strings.TrimSpace(filter.LessonTitle); v != "" {
		q = q.Where("lesson_title = ?", v)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	results := []*types.ScoreEntry{}
	if err := q.Order("id ASC").Find(&results).Error; err != nil {
		return nil, persistenceError(r.log, "list score entries", err)
	}
	return results, nil
}
