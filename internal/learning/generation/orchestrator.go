package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/learning/prompts"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
	"github.com/yungbote/rubric-backend/internal/platform/openai"
)

// Completer is the generation model boundary. openai.Client satisfies it.
type Completer interface {
	Chat(ctx context.Context, messages []openai.Message) (string, error)
}

// Recorder persists audit rows. repos.GenerationRecordRepo satisfies it.
type Recorder interface {
	Create(ctx context.Context, tx *gorm.DB, recs []*domain.GenerationRecord) ([]*domain.GenerationRecord, error)
}

type Request struct {
	Kind    rubric.Kind
	Stream  string
	Title   string
	Number  int
	Content string
	Session SessionKey
	// Prior overrides the session's stored artifact as continuity context.
	Prior string
}

type Config struct {
	// MaxContentChars is the hard cap on lesson content, in runes.
	MaxContentChars int
	// CallTimeout bounds each Synthesize call on top of the caller's deadline. Zero disables it.
	CallTimeout time.Duration
	// BookConcurrency bounds SynthesizeBook fan-out for session-less books.
	BookConcurrency int
	// Model is recorded on audit rows.
	Model string
}

func (c Config) withDefaults() Config {
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = extractor.MaxUnitChars
	}
	if c.BookConcurrency <= 0 {
		c.BookConcurrency = 2
	}
	return c
}

type Orchestrator struct {
	log        *logger.Logger
	completer  Completer
	continuity ContinuityStore
	recorder   Recorder
	cfg        Config
}

// NewOrchestrator wires a completer with optional continuity and audit storage.
// A nil continuity store gets an in-memory one; a nil recorder skips auditing.
func NewOrchestrator(log *logger.Logger, completer Completer, continuity ContinuityStore, recorder Recorder, cfg Config) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	if continuity == nil {
		continuity = NewMemoryStore()
	}
	return &Orchestrator{
		log:        log.With("service", "GenerationOrchestrator"),
		completer:  completer,
		continuity: continuity,
		recorder:   recorder,
		cfg:        cfg.withDefaults(),
	}
}

func (o *Orchestrator) Config() Config { return o.cfg }

// run tracks one Synthesize call for auditing.
type run struct {
	kind     rubric.Kind
	stream   rubric.Stream
	prompt   prompts.Prompt
	messages []openai.Message
	attempts int
	repaired bool
}

// Synthesize turns one lesson into a validated artifact of req.Kind.
// Malformed JSON gets one retry; a quantitative artifact whose only problem is
// inconsistent totals gets one repair turn. Anything else is a SchemaViolation.
func (o *Orchestrator) Synthesize(ctx context.Context, req Request) (art *rubric.Artifact, err error) {
	start := time.Now()
	kind := req.Kind
	if kind == "" {
		kind = rubric.KindDescriptive
	}
	defer func() {
		observability.Current().ObserveGeneration(string(kind), outcomeOf(err), time.Since(start))
	}()

	if kind != rubric.KindDescriptive && kind != rubric.KindQuantitative {
		return nil, apierr.Newf(apierr.KindInvalidInput, "unknown artifact kind %q", kind)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apierr.Newf(apierr.KindInvalidInput, "no lesson content provided")
	}
	if n := utf8.RuneCountInString(content); n > o.cfg.MaxContentChars {
		return nil, apierr.Newf(apierr.KindBudgetExceeded, "lesson content is %d characters, limit %d", n, o.cfg.MaxContentChars)
	}
	if o.completer == nil {
		return nil, apierr.Newf(apierr.KindGenerationFailed, "no completer configured")
	}

	stream := rubric.NormalizeStream(req.Stream)
	ctx, span := observability.StartSpan(ctx, "generation.Synthesize",
		attribute.String("kind", string(kind)),
		attribute.String("stream", string(stream)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}

	prior := req.Prior
	if prior == "" {
		prior = o.prior(ctx, req.Session)
	}
	p, err := prompts.Build(promptFor(kind), prompts.Input{
		Stream:        string(stream),
		StreamLabel:   stream.Label(),
		LessonTitle:   strings.TrimSpace(req.Title),
		LessonNumber:  req.Number,
		LessonContent: content,
		ExampleJSON:   exampleFor(kind),
	})
	if err != nil {
		return nil, apierr.New(apierr.KindGenerationFailed, "render prompt", err)
	}

	r := &run{
		kind:     kind,
		stream:   stream,
		prompt:   p,
		messages: openai.BuildMessages(p.System, p.User, prior),
	}

	art, err = o.generate(ctx, r, req)
	if err != nil {
		o.log.Warn("Generation failed",
			"kind", kind, "stream", stream, "title", req.Title,
			"attempts", r.attempts, "session_id", string(req.Session), "error", err)
		return nil, err
	}

	serialized, err := rubric.Serialize(art)
	if err != nil {
		return nil, apierr.New(apierr.KindSchemaViolation, "serialize artifact", err)
	}
	if req.Session.Valid() {
		if perr := o.continuity.Put(ctx, req.Session, serialized); perr != nil {
			o.log.Warn("Continuity store write failed", "session_id", string(req.Session), "error", perr)
		}
	}
	o.record(ctx, r, req, serialized, time.Since(start))

	o.log.Info("Artifact generated",
		"kind", kind, "stream", stream, "title", art.Title(),
		"attempts", r.attempts, "repaired", r.repaired, "duration_ms", time.Since(start).Milliseconds())
	return art, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run, req Request) (*rubric.Artifact, error) {
	raw, err := o.call(ctx, r)
	if err != nil {
		return nil, err
	}

	art, perr := rubric.Parse(r.kind, raw)
	if perr != nil {
		observability.Current().IncGenerationRetry(string(r.kind), "invalid_json")
		o.log.Debug("Output did not parse, retrying once", "kind", r.kind, "error", perr)
		if err := o.followUp(r, raw, prompts.PromptInvalidJSONFollowup, prompts.Input{ParseError: perr.Error()}); err != nil {
			return nil, err
		}
		if raw, err = o.call(ctx, r); err != nil {
			return nil, err
		}
		if art, perr = rubric.Parse(r.kind, raw); perr != nil {
			return nil, apierr.New(apierr.KindSchemaViolation, "output is not valid JSON after retry", perr)
		}
	}
	fillFromRequest(art, r.stream, req)

	verr := art.Validate()
	if verr == nil {
		return art, nil
	}
	var ve *rubric.ValidationError
	if !errors.As(verr, &ve) || !ve.InvariantOnly {
		return nil, apierr.New(apierr.KindSchemaViolation, "artifact failed validation", verr)
	}

	observability.Current().IncGenerationRetry(string(r.kind), "repair")
	o.log.Debug("Totals inconsistent, requesting one repair", "problems", ve.Problems)
	if err := o.followUp(r, raw, prompts.PromptRepairFollowup, prompts.Input{Problems: ve.Problems}); err != nil {
		return nil, err
	}
	if raw, err = o.call(ctx, r); err != nil {
		return nil, err
	}
	r.repaired = true
	art, perr = rubric.Parse(r.kind, raw)
	if perr != nil {
		return nil, apierr.New(apierr.KindSchemaViolation, "repaired output is not valid JSON", perr)
	}
	fillFromRequest(art, r.stream, req)
	if verr := art.Validate(); verr != nil {
		return nil, apierr.New(apierr.KindSchemaViolation, "artifact still invalid after repair", verr)
	}
	return art, nil
}

func (o *Orchestrator) call(ctx context.Context, r *run) (string, error) {
	r.attempts++
	out, err := o.completer.Chat(ctx, r.messages)
	if err != nil {
		return "", apierr.New(apierr.KindGenerationFailed, fmt.Sprintf("model call %d", r.attempts), err)
	}
	return out, nil
}

// followUp appends the model's last answer and a corrective user turn.
func (o *Orchestrator) followUp(r *run, lastOutput string, name prompts.PromptName, in prompts.Input) error {
	fp, err := prompts.Build(name, in)
	if err != nil {
		return apierr.New(apierr.KindGenerationFailed, "render follow-up", err)
	}
	r.messages = append(r.messages,
		openai.Message{Role: openai.RoleAssistant, Content: lastOutput},
		openai.Message{Role: openai.RoleUser, Content: fp.User},
	)
	return nil
}

func (o *Orchestrator) prior(ctx context.Context, key SessionKey) string {
	if !key.Valid() {
		return ""
	}
	v, ok, err := o.continuity.Get(ctx, key)
	if err != nil {
		o.log.Warn("Continuity store read failed", "session_id", string(key), "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (o *Orchestrator) record(ctx context.Context, r *run, req Request, serialized string, dur time.Duration) {
	if o.recorder == nil {
		return
	}
	rec := &domain.GenerationRecord{
		Session:           string(req.Session),
		Kind:              string(r.kind),
		Stream:            string(r.stream),
		LessonTitle:       strings.TrimSpace(req.Title),
		Model:             o.cfg.Model,
		PromptName:        r.prompt.Name,
		PromptVersion:     r.prompt.Version,
		PromptFingerprint: r.prompt.Fingerprint(),
		Attempts:          r.attempts,
		Repaired:          r.repaired,
		Artifact:          datatypes.JSON([]byte(serialized)),
		LatencyMS:         dur.Milliseconds(),
	}
	if _, err := o.recorder.Create(ctx, nil, []*domain.GenerationRecord{rec}); err != nil {
		o.log.Warn("Generation record write failed", "kind", r.kind, "error", err)
	}
}

// fillFromRequest supplies header fields the model left blank. The descriptive
// format example shows the stream as "SEL | AW", so anything else is replaced too.
func fillFromRequest(a *rubric.Artifact, stream rubric.Stream, req Request) {
	title := strings.TrimSpace(req.Title)
	switch a.Kind {
	case rubric.KindDescriptive:
		if s := rubric.Stream(strings.TrimSpace(a.Descriptive.Stream)); s != rubric.StreamSEL && s != rubric.StreamAW {
			a.Descriptive.Stream = string(stream)
		}
		if strings.TrimSpace(a.Descriptive.Lesson) == "" {
			a.Descriptive.Lesson = title
		}
	case rubric.KindQuantitative:
		if strings.TrimSpace(a.Quantitative.LessonTitle) == "" {
			a.Quantitative.LessonTitle = title
		}
		if a.Quantitative.LessonNumber == 0 {
			a.Quantitative.LessonNumber = req.Number
		}
	}
}

func promptFor(kind rubric.Kind) prompts.PromptName {
	if kind == rubric.KindQuantitative {
		return prompts.PromptQuantitativeRubric
	}
	return prompts.PromptDescriptiveRubric
}

func exampleFor(kind rubric.Kind) string {
	if kind == rubric.KindQuantitative {
		return rubric.ExampleQuantitativeJSON
	}
	return rubric.ExampleDescriptiveJSON
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if k := apierr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
