package ledger

import (
	"context"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

type GenerationRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, recs []*types.GenerationRecord) ([]*types.GenerationRecord, error)
	ListBySession(ctx context.Context, tx *gorm.DB, session string, limit int) ([]*types.GenerationRecord, error)
}

type generationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRecordRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRecordRepo {
	return &generationRecordRepo{db: db, log: baseLog.With("repo", "GenerationRecordRepo")}
}

func (r *generationRecordRepo) Create(ctx context.Context, tx *gorm.DB, recs []*types.GenerationRecord) ([]*types.GenerationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(recs) == 0 {
		return []*types.GenerationRecord{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&recs).Error; err != nil {
		return nil, persistenceError(r.log, "create generation records", err)
	}
	return recs, nil
}

// ListBySession returns the newest records first.
func (r *generationRecordRepo) ListBySession(ctx context.Context, tx *gorm.DB, session string, limit int) ([]*types.GenerationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("session_key = ?", strings.TrimSpace(session))
	if limit > 0 {
		q = q.Limit(limit)
	}
	results := []*types.GenerationRecord{}
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, persistenceError(r.log, "list generation records", err)
	}
	return results, nil
}
