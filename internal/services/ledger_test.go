package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/data/repos"
	"github.com/yungbote/rubric-backend/internal/data/repos/testutil"
	types "github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
)

func newLedger(t *testing.T) LedgerService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return NewLedgerService(db, log, repos.NewScoreEntryRepo(db, log), repos.NewRubricDefinitionRepo(db, log))
}

func TestLedgerRecordAndQuery(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	for _, e := range []*types.ScoreEntry{
		{LearnerID: "a", LessonTitle: "L1", Domain: "Understanding", Question: "q", Score: 3},
		{LearnerID: "b", LessonTitle: "L1", Domain: "Behavior", Question: "q", Score: 99},
		{LearnerID: "a", LessonTitle: "L2", Domain: "Application", Question: "q", Score: -2},
	} {
		_, err := svc.Record(ctx, e)
		require.NoError(t, err)
	}

	got, err := svc.Query(ctx, types.ScoreFilter{LearnerID: "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "L1", got[0].LessonTitle)
	assert.Equal(t, -2.0, got[1].Score)

	got, err = svc.Query(ctx, types.ScoreFilter{LessonTitle: "L1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 99.0, got[1].Score)
}

func TestLedgerRecordShapeChecks(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, nil)
	assert.True(t, apierr.Is(err, apierr.KindInvalidInput))
	_, err = svc.Record(ctx, &types.ScoreEntry{LessonTitle: "L", Domain: "Behavior"})
	assert.True(t, apierr.Is(err, apierr.KindInvalidInput))
	_, err = svc.Record(ctx, &types.ScoreEntry{LearnerID: "a", Domain: "Behavior"})
	assert.True(t, apierr.Is(err, apierr.KindInvalidInput))
}

func TestLedgerRubricFromQuantitativeArtifact(t *testing.T) {
	svc := newLedger(t)
	ctx := context.Background()

	art, err := rubric.Parse(rubric.KindQuantitative, rubric.ExampleQuantitativeJSON)
	require.NoError(t, err)
	art.Quantitative.LessonTitle = "Pre-flight"

	defs, err := svc.RecordRubricFromArtifact(ctx, art)
	require.NoError(t, err)
	require.Len(t, defs, 4)
	assert.Equal(t, rubric.DomainUnderstanding, defs[0].Domain)
	assert.Equal(t, rubric.DomainBehavior, defs[3].Domain)
	for _, d := range defs {
		assert.Equal(t, 10.0, d.Points)
	}

	stored, err := svc.Definitions(ctx, "Pre-flight")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestLedgerRubricFromDescriptiveArtifact(t *testing.T) {
	art, err := rubric.Parse(rubric.KindDescriptive, rubric.ExampleDescriptiveJSON)
	require.NoError(t, err)

	defs := DefinitionsFromArtifact(art)
	require.Len(t, defs, 2)
	assert.Equal(t, "Lesson title", defs[0].LessonTitle)
	assert.Equal(t, float64(descriptiveQuestionPoints), defs[1].Points)
}

func TestLedgerRejectsInvalidArtifact(t *testing.T) {
	svc := newLedger(t)
	art, err := rubric.Parse(rubric.KindQuantitative, rubric.ExampleQuantitativeJSON)
	require.NoError(t, err)
	art.Quantitative.ScoringSystem.TotalPoints = 1

	_, err = svc.RecordRubricFromArtifact(context.Background(), art)
	assert.True(t, apierr.Is(err, apierr.KindSchemaViolation))
}

func TestDefineRubricValidation(t *testing.T) {
	svc := newLedger(t)
	_, err := svc.DefineRubric(context.Background(), []*types.RubricDefinition{{Domain: "Behavior"}})
	assert.True(t, apierr.Is(err, apierr.KindInvalidInput))
}

// conflictingDefRepo fails the first conflicts creates with err, then delegates.
type conflictingDefRepo struct {
	repos.RubricDefinitionRepo
	err       error
	conflicts int
	creates   int
}

func (r *conflictingDefRepo) Create(ctx context.Context, tx *gorm.DB, defs []*types.RubricDefinition) ([]*types.RubricDefinition, error) {
	r.creates++
	if r.creates <= r.conflicts {
		return nil, r.err
	}
	return r.RubricDefinitionRepo.Create(ctx, tx, defs)
}

func newConflictingLedger(t *testing.T, err error, conflicts int) (LedgerService, *conflictingDefRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	defs := &conflictingDefRepo{RubricDefinitionRepo: repos.NewRubricDefinitionRepo(db, log), err: err, conflicts: conflicts}
	return NewLedgerService(db, log, repos.NewScoreEntryRepo(db, log), defs), defs
}

func TestDefineRubricRetriesSerializationFailureOnce(t *testing.T) {
	conflict := apierr.New(apierr.KindPersistenceError, "create rubric definitions", &pgconn.PgError{Code: "40001"})
	svc, defs := newConflictingLedger(t, conflict, 1)
	ctx := context.Background()

	out, err := svc.DefineRubric(ctx, []*types.RubricDefinition{
		{LessonTitle: "Greetings", Domain: "Understanding", Question: "Q1", Points: 5},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, defs.creates)

	stored, err := svc.Definitions(ctx, "Greetings")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestDefineRubricGivesUpAfterSecondConflict(t *testing.T) {
	conflict := apierr.New(apierr.KindPersistenceError, "create rubric definitions", &pgconn.PgError{Code: "40P01"})
	svc, defs := newConflictingLedger(t, conflict, 2)

	_, err := svc.DefineRubric(context.Background(), []*types.RubricDefinition{
		{LessonTitle: "Greetings", Domain: "Understanding", Question: "Q1", Points: 5},
	})
	assert.True(t, apierr.Is(err, apierr.KindPersistenceError))
	assert.Equal(t, 2, defs.creates)
}

func TestDefineRubricDoesNotRetryOtherErrors(t *testing.T) {
	svc, defs := newConflictingLedger(t, errors.New("constraint violated"), 1)

	_, err := svc.DefineRubric(context.Background(), []*types.RubricDefinition{
		{LessonTitle: "Greetings", Domain: "Understanding", Question: "Q1", Points: 5},
	})
	assert.True(t, apierr.Is(err, apierr.KindPersistenceError))
	assert.Equal(t, 1, defs.creates)
}
