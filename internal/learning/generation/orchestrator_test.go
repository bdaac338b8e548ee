package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/openai"
)

// scriptedCompleter replays outputs in order and keeps every conversation it saw.
type scriptedCompleter struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   [][]openai.Message
}

func (s *scriptedCompleter) Chat(ctx context.Context, messages []openai.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]openai.Message(nil), messages...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.outputs) == 0 {
		return "", errors.New("script exhausted")
	}
	out := s.outputs[0]
	if len(s.outputs) > 1 {
		s.outputs = s.outputs[1:]
	}
	return out, nil
}

func (s *scriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type memRecorder struct {
	mu   sync.Mutex
	recs []*domain.GenerationRecord
}

func (m *memRecorder) Create(ctx context.Context, tx *gorm.DB, recs []*domain.GenerationRecord) ([]*domain.GenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, recs...)
	return recs, nil
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key SessionKey) (string, bool, error) {
	return "", false, errors.New("down")
}
func (failingStore) Put(ctx context.Context, key SessionKey, artifact string) error {
	return errors.New("down")
}

func newTestOrchestrator(c Completer, store ContinuityStore, rec Recorder) *Orchestrator {
	return NewOrchestrator(nil, c, store, rec, Config{Model: "stub"})
}

func brokenTotals() string {
	return strings.Replace(rubric.ExampleQuantitativeJSON, `"total_points": 100`, `"total_points": 90`, 1)
}

func TestSynthesizeDescriptiveExample(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := newTestOrchestrator(c, nil, nil)

	art, err := o.Synthesize(context.Background(), Request{Stream: "SEL", Title: "Greetings", Content: "Hello, how are you?"})
	require.NoError(t, err)
	require.Equal(t, rubric.KindDescriptive, art.Kind)
	require.Len(t, art.Descriptive.Rubric, 4)
	for i, row := range art.Descriptive.Rubric {
		assert.Equal(t, rubric.Domains[i], row.Domain)
	}
	assert.NotEmpty(t, art.Descriptive.Questions)
	assert.Equal(t, "SEL", art.Descriptive.Stream)

	require.Equal(t, 1, c.Calls())
	msgs := c.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, openai.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Understanding")
	assert.Contains(t, msgs[1].Content, "Lesson title: Greetings")
	assert.Contains(t, msgs[1].Content, "Hello, how are you?")
}

func TestSynthesizeNotJSONIsSchemaViolation(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{"not json"}}
	o := newTestOrchestrator(c, nil, nil)

	_, err := o.Synthesize(context.Background(), Request{Stream: "SEL", Title: "Greetings", Content: "Hello"})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindSchemaViolation))
	// one bounded retry
	assert.Equal(t, 2, c.Calls())
	last := c.calls[1]
	assert.Equal(t, openai.RoleAssistant, last[len(last)-2].Role)
	assert.Equal(t, "not json", last[len(last)-2].Content)
	assert.Contains(t, last[len(last)-1].Content, "could not be parsed as a JSON object")
}

func TestSynthesizeRetryRecoversFromFencedGarbage(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{"Sure! here it is", "```json\n" + rubric.ExampleDescriptiveJSON + "\n```"}}
	o := newTestOrchestrator(c, nil, nil)

	art, err := o.Synthesize(context.Background(), Request{Content: "x", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "Lesson title", art.Title())
	assert.Equal(t, 2, c.Calls())
}

func TestStreamOutsideSetIsCoercedToSEL(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := newTestOrchestrator(c, nil, nil)

	art, err := o.Synthesize(context.Background(), Request{Stream: "XYZ", Title: "t", Content: "x"})
	require.NoError(t, err)
	assert.Contains(t, c.calls[0][1].Content, "Stream: SEL (School of English Language)")
	assert.NotContains(t, c.calls[0][1].Content, "XYZ")
	assert.Equal(t, "SEL", art.Descriptive.Stream)
}

func TestStreamAWKeptAndModelStreamRespected(t *testing.T) {
	out := strings.Replace(rubric.ExampleDescriptiveJSON, `"SEL | AW"`, `"AW"`, 1)
	c := &scriptedCompleter{outputs: []string{out}}
	o := newTestOrchestrator(c, nil, nil)

	art, err := o.Synthesize(context.Background(), Request{Stream: "aw", Title: "t", Content: "x"})
	require.NoError(t, err)
	assert.Contains(t, c.calls[0][1].Content, "Stream: AW (Academic Wing)")
	assert.Equal(t, "AW", art.Descriptive.Stream)
}

func TestQuantitativeRepairRoundTrip(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{brokenTotals(), rubric.ExampleQuantitativeJSON}}
	rec := &memRecorder{}
	o := newTestOrchestrator(c, nil, rec)

	art, err := o.Synthesize(context.Background(), Request{Kind: rubric.KindQuantitative, Title: "t", Content: "x"})
	require.NoError(t, err)
	assert.Empty(t, art.Quantitative.InvariantProblems())
	require.Equal(t, 2, c.Calls())
	repair := c.calls[1][len(c.calls[1])-1].Content
	assert.Contains(t, repair, "total_points is 90")

	require.Len(t, rec.recs, 1)
	assert.True(t, rec.recs[0].Repaired)
	assert.Equal(t, 2, rec.recs[0].Attempts)
	assert.Equal(t, "quantitative_rubric", rec.recs[0].PromptName)
	assert.Equal(t, "stub", rec.recs[0].Model)
}

func TestQuantitativeRepairOnlyOnce(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{brokenTotals()}}
	o := newTestOrchestrator(c, nil, nil)

	_, err := o.Synthesize(context.Background(), Request{Kind: rubric.KindQuantitative, Title: "t", Content: "x"})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindSchemaViolation))
	assert.ErrorContains(t, err, "still invalid after repair")
	assert.Equal(t, 2, c.Calls())
}

func TestStructuralProblemIsNotRepaired(t *testing.T) {
	out := strings.Replace(rubric.ExampleDescriptiveJSON, `"domain": "Behavior", "criterion"`, `"domain": "Attitude", "criterion"`, 1)
	c := &scriptedCompleter{outputs: []string{out}}
	o := newTestOrchestrator(c, nil, nil)

	_, err := o.Synthesize(context.Background(), Request{Title: "t", Content: "x"})
	assert.True(t, apierr.Is(err, apierr.KindSchemaViolation))
	assert.Equal(t, 1, c.Calls())
}

func TestWrongFamilyCountsAsInvalid(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{rubric.ExampleQuantitativeJSON}}
	o := newTestOrchestrator(c, nil, nil)

	_, err := o.Synthesize(context.Background(), Request{Title: "t", Content: "x"})
	assert.True(t, apierr.Is(err, apierr.KindSchemaViolation))
	assert.Equal(t, 2, c.Calls())
}

func TestModelErrorIsGenerationFailed(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("503")}
	o := newTestOrchestrator(c, nil, nil)

	_, err := o.Synthesize(context.Background(), Request{Title: "t", Content: "x"})
	assert.True(t, apierr.Is(err, apierr.KindGenerationFailed))
}

func TestInputChecks(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := NewOrchestrator(nil, c, nil, nil, Config{MaxContentChars: 5})

	_, err := o.Synthesize(context.Background(), Request{Content: "   "})
	assert.True(t, apierr.Is(err, apierr.KindInvalidInput))

	_, err = o.Synthesize(context.Background(), Request{Content: "ééééééé"})
	assert.True(t, apierr.Is(err, apierr.KindBudgetExceeded))

	_, err = o.Synthesize(context.Background(), Request{Kind: "essay", Content: "x"})
	assert.True(t, apierr.Is(err, apierr.KindInvalidInput))

	assert.Equal(t, 0, c.Calls())
}

func TestContinuityIsPerSession(t *testing.T) {
	store := NewMemoryStore()
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := newTestOrchestrator(c, store, nil)
	ctx := context.Background()

	_, err := o.Synthesize(ctx, Request{Title: "one", Content: "x", Session: "doc-a"})
	require.NoError(t, err)
	assert.Len(t, c.calls[0], 2)

	// same session sees the prior artifact between system and user
	_, err = o.Synthesize(ctx, Request{Title: "two", Content: "y", Session: "doc-a"})
	require.NoError(t, err)
	require.Len(t, c.calls[1], 3)
	assert.Equal(t, openai.RoleAssistant, c.calls[1][1].Role)
	assert.Contains(t, c.calls[1][1].Content, `"lesson":"Lesson title"`)

	// other sessions and the empty key do not
	_, err = o.Synthesize(ctx, Request{Title: "three", Content: "z", Session: "doc-b"})
	require.NoError(t, err)
	assert.Len(t, c.calls[2], 2)
	_, err = o.Synthesize(ctx, Request{Title: "four", Content: "z"})
	require.NoError(t, err)
	assert.Len(t, c.calls[3], 2)

	assert.Equal(t, 2, store.Len())
}

func TestContinuityStoreFailureIsNotFatal(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := newTestOrchestrator(c, failingStore{}, nil)

	_, err := o.Synthesize(context.Background(), Request{Title: "t", Content: "x", Session: "s"})
	assert.NoError(t, err)
}

type blockingCompleter struct{}

func (blockingCompleter) Chat(ctx context.Context, _ []openai.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCallTimeoutBoundsTheCall(t *testing.T) {
	o := NewOrchestrator(nil, blockingCompleter{}, nil, nil, Config{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := o.Synthesize(context.Background(), Request{Title: "t", Content: "x"})
	assert.True(t, apierr.Is(err, apierr.KindGenerationFailed))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSynthesizeBookBestEffortPerUnit(t *testing.T) {
	bad := &selectiveCompleter{failOn: "Lesson 2"}
	o := NewOrchestrator(nil, bad, nil, nil, Config{BookConcurrency: 2})

	units := []extractor.LessonUnit{
		{Ordinal: 1, Content: "one"},
		{Ordinal: 2, Content: "two"},
		{Ordinal: 3, Content: "three"},
	}
	results := o.SynthesizeBook(context.Background(), units, BookRequest{Stream: "AW", Session: "book"})
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, units[i].Ordinal, r.Ordinal)
		assert.Equal(t, i, r.Position)
	}
	require.NoError(t, results[0].Err)
	require.NoError(t, results[2].Err)
	require.NotNil(t, results[0].Artifact)
	assert.Equal(t, "AW", results[0].Artifact.Descriptive.Stream)
	assert.True(t, apierr.Is(results[1].Err, apierr.KindSchemaViolation))
	assert.Nil(t, results[1].Artifact)
}

func TestSynthesizeBookTruncatesAtHandOff(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := NewOrchestrator(nil, c, nil, nil, Config{MaxContentChars: 10})

	results := o.SynthesizeBook(context.Background(), []extractor.LessonUnit{
		{Ordinal: 1, Content: strings.Repeat("a", 50)},
	}, BookRequest{})
	require.NoError(t, results[0].Err)
	assert.Contains(t, c.calls[0][1].Content, strings.Repeat("a", 10))
	assert.NotContains(t, c.calls[0][1].Content, strings.Repeat("a", 11))
}

func TestSynthesizeBookEmpty(t *testing.T) {
	c := &scriptedCompleter{}
	o := newTestOrchestrator(c, nil, nil)
	assert.Empty(t, o.SynthesizeBook(context.Background(), nil, BookRequest{}))
	assert.Equal(t, 0, c.Calls())
}

// selectiveCompleter returns "not json" for conversations mentioning failOn.
type selectiveCompleter struct {
	failOn string
}

func (s *selectiveCompleter) Chat(ctx context.Context, messages []openai.Message) (string, error) {
	for _, m := range messages {
		if m.Role == openai.RoleUser && strings.Contains(m.Content, "Lesson title: "+s.failOn+"\n") {
			return "not json", nil
		}
	}
	return rubric.ExampleDescriptiveJSON, nil
}

func namedLesson(name string) string {
	return strings.Replace(rubric.ExampleDescriptiveJSON, `"lesson": "Lesson title"`, `"lesson": "`+name+`"`, 1)
}

func TestSynthesizeBookChainsUnitsWithinSession(t *testing.T) {
	store := NewMemoryStore()
	c := &scriptedCompleter{outputs: []string{namedLesson("Unit one"), namedLesson("Unit two"), namedLesson("Unit three")}}
	o := NewOrchestrator(nil, c, store, nil, Config{BookConcurrency: 1})

	units := []extractor.LessonUnit{
		{Ordinal: 1, Content: "one"},
		{Ordinal: 2, Content: "two"},
		{Ordinal: 3, Content: "three"},
	}
	results := o.SynthesizeBook(context.Background(), units, BookRequest{Session: "book-1"})
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.Equal(t, 3, c.Calls())

	assert.Len(t, c.calls[0], 2)
	require.Len(t, c.calls[1], 3)
	assert.Equal(t, openai.RoleAssistant, c.calls[1][1].Role)
	assert.Contains(t, c.calls[1][1].Content, `"lesson":"Unit one"`)
	assert.Contains(t, c.calls[1][2].Content, "Lesson title: Lesson 2")
	require.Len(t, c.calls[2], 3)
	assert.Contains(t, c.calls[2][1].Content, `"lesson":"Unit two"`)

	last, ok, err := store.Get(context.Background(), "book-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, last, `"lesson":"Unit three"`)
	assert.Equal(t, 1, store.Len())
}

func TestSynthesizeBookChainSkipsFailedUnit(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "book-1", `{"lesson":"Earlier upload"}`))
	c := &scriptedCompleter{outputs: []string{namedLesson("Unit one"), "not json", "not json", namedLesson("Unit three")}}
	o := NewOrchestrator(nil, c, store, nil, Config{})

	results := o.SynthesizeBook(context.Background(), []extractor.LessonUnit{
		{Ordinal: 1, Content: "one"},
		{Ordinal: 2, Content: "two"},
		{Ordinal: 3, Content: "three"},
	}, BookRequest{Session: "book-1"})
	require.NoError(t, results[0].Err)
	assert.True(t, apierr.Is(results[1].Err, apierr.KindSchemaViolation))
	require.NoError(t, results[2].Err)
	require.Equal(t, 4, c.Calls())

	// the first unit continues from what the session already held
	assert.Equal(t, `{"lesson":"Earlier upload"}`, c.calls[0][1].Content)
	// the failed unit is not a prior
	assert.Contains(t, c.calls[3][1].Content, `"lesson":"Unit one"`)
}

func TestSynthesizeBookWithoutSessionIsIndependent(t *testing.T) {
	store := NewMemoryStore()
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := NewOrchestrator(nil, c, store, nil, Config{BookConcurrency: 2})

	results := o.SynthesizeBook(context.Background(), []extractor.LessonUnit{
		{Ordinal: 1, Content: "one"},
		{Ordinal: 2, Content: "two"},
	}, BookRequest{})
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.Equal(t, 2, c.Calls())
	for _, msgs := range c.calls {
		assert.Len(t, msgs, 2)
	}
	assert.Equal(t, 0, store.Len())
}

func TestExplicitPriorOverridesStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "s", "stored"))
	c := &scriptedCompleter{outputs: []string{rubric.ExampleDescriptiveJSON}}
	o := newTestOrchestrator(c, store, nil)

	_, err := o.Synthesize(context.Background(), Request{Title: "t", Content: "x", Session: "s", Prior: "explicit"})
	require.NoError(t, err)
	require.Len(t, c.calls[0], 3)
	assert.Equal(t, "explicit", c.calls[0][1].Content)
}
