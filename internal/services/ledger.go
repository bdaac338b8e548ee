package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/data/repos"
	types "github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

// descriptiveQuestionPoints is the top of the fixed 4..1 scale.
const descriptiveQuestionPoints = 4

type LedgerService interface {
	// Record appends one score. Scores are stored as given, without range checks.
	Record(ctx context.Context, entry *types.ScoreEntry) (*types.ScoreEntry, error)
	// Query returns matching scores in insertion order.
	Query(ctx context.Context, filter types.ScoreFilter) ([]*types.ScoreEntry, error)
	DefineRubric(ctx context.Context, defs []*types.RubricDefinition) ([]*types.RubricDefinition, error)
	Definitions(ctx context.Context, lessonTitle string) ([]*types.RubricDefinition, error)
	// RecordRubricFromArtifact stores one definition per assessable item of a validated artifact.
	RecordRubricFromArtifact(ctx context.Context, art *rubric.Artifact) ([]*types.RubricDefinition, error)
}

type ledgerService struct {
	db        *gorm.DB
	log       *logger.Logger
	scoreRepo repos.ScoreEntryRepo
	defRepo   repos.RubricDefinitionRepo
}

func NewLedgerService(db *gorm.DB, log *logger.Logger, scoreRepo repos.ScoreEntryRepo, defRepo repos.RubricDefinitionRepo) LedgerService {
	return &ledgerService{
		db:        db,
		log:       log.With("service", "LedgerService"),
		scoreRepo: scoreRepo,
		defRepo:   defRepo,
	}
}

func (s *ledgerService) Record(ctx context.Context, entry *types.ScoreEntry) (*types.ScoreEntry, error) {
	if entry == nil {
		return nil, apierr.Newf(apierr.KindInvalidInput, "score entry required")
	}
	entry.LearnerID = strings.TrimSpace(entry.LearnerID)
	entry.LessonTitle = strings.TrimSpace(entry.LessonTitle)
	entry.Domain = strings.TrimSpace(entry.Domain)
	switch {
	case entry.LearnerID == "":
		return nil, apierr.Newf(apierr.KindInvalidInput, "learner_id required")
	case entry.LessonTitle == "":
		return nil, apierr.Newf(apierr.KindInvalidInput, "lesson_title required")
	case entry.Domain == "":
		return nil, apierr.Newf(apierr.KindInvalidInput, "domain required")
	}
	entry.ID = 0

	created, err := s.scoreRepo.Create(ctx, nil, []*types.ScoreEntry{entry})
	if err != nil {
		return nil, err
	}
	observability.Current().IncScoresRecorded()
	s.log.Debug("Score recorded", "learner_id", entry.LearnerID, "lesson_title", entry.LessonTitle, "domain", entry.Domain)
	return created[0], nil
}

func (s *ledgerService) Query(ctx context.Context, filter types.ScoreFilter) ([]*types.ScoreEntry, error) {
	return s.scoreRepo.List(ctx, nil, filter)
}

func (s *ledgerService) DefineRubric(ctx context.Context, defs []*types.RubricDefinition) ([]*types.RubricDefinition, error) {
	for i, d := range defs {
		if d == nil || strings.TrimSpace(d.LessonTitle) == "" || strings.TrimSpace(d.Domain) == "" {
			return nil, apierr.Newf(apierr.KindInvalidInput, "definition %d needs lesson_title and domain", i)
		}
		d.ID = 0
	}
	var out []*types.RubricDefinition
	err := s.createDefinitions(ctx, defs, &out)
	if repos.IsRetryable(err) && ctx.Err() == nil {
		s.log.Warn("Rubric definition transaction conflicted, retrying once", "error", err)
		for _, d := range defs {
			d.ID = 0
		}
		err = s.createDefinitions(ctx, defs, &out)
	}
	if err != nil {
		if apierr.KindOf(err) == "" {
			err = apierr.New(apierr.KindPersistenceError, "define rubric", err)
		}
		return nil, err
	}
	return out, nil
}

func (s *ledgerService) createDefinitions(ctx context.Context, defs []*types.RubricDefinition, out *[]*types.RubricDefinition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.defRepo.Create(ctx, tx, defs)
		if err != nil {
			return err
		}
		*out = created
		return nil
	})
}

func (s *ledgerService) Definitions(ctx context.Context, lessonTitle string) ([]*types.RubricDefinition, error) {
	return s.defRepo.ListByLesson(ctx, nil, lessonTitle)
}

func (s *ledgerService) RecordRubricFromArtifact(ctx context.Context, art *rubric.Artifact) ([]*types.RubricDefinition, error) {
	if err := art.Validate(); err != nil {
		return nil, apierr.New(apierr.KindSchemaViolation, "artifact", err)
	}
	defs := DefinitionsFromArtifact(art)
	if len(defs) == 0 {
		return []*types.RubricDefinition{}, nil
	}
	return s.DefineRubric(ctx, defs)
}

// DefinitionsFromArtifact flattens an artifact into per-question definitions in
// canonical domain order. Quantitative items are worth their domain's
// points_per_task; descriptive questions are worth the top of the 4..1 scale.
func DefinitionsFromArtifact(art *rubric.Artifact) []*types.RubricDefinition {
	var defs []*types.RubricDefinition
	title := art.Title()
	switch art.Kind {
	case rubric.KindQuantitative:
		q := art.Quantitative
		points := map[string]float64{}
		for _, o := range q.RubricOverview {
			points[o.Domain] = o.PointsPerTask
		}
		for _, domain := range rubric.Domains {
			for _, item := range q.TaskMatrix[domain] {
				defs = append(defs, &types.RubricDefinition{
					LessonTitle: title,
					Domain:      domain,
					Question:    item.Text(),
					Points:      points[domain],
				})
			}
		}
	case rubric.KindDescriptive:
		for _, domain := range rubric.Domains {
			for _, question := range art.Descriptive.Questions {
				if question.Domain != domain {
					continue
				}
				defs = append(defs, &types.RubricDefinition{
					LessonTitle: title,
					Domain:      domain,
					Question:    question.Stem,
					Points:      descriptiveQuestionPoints,
				})
			}
		}
	}
	return defs
}
