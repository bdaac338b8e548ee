package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/learning/generation"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
	"github.com/yungbote/rubric-backend/internal/vecindex"
)

// NearDuplicateScore is the cosine similarity at which a unit is reported as a
// near duplicate of an already indexed one.
const NearDuplicateScore = 0.95

// Synthesizer is the part of generation.Orchestrator the ingest flow drives.
type Synthesizer interface {
	Synthesize(ctx context.Context, req generation.Request) (*rubric.Artifact, error)
	SynthesizeBook(ctx context.Context, units []extractor.LessonUnit, req generation.BookRequest) []generation.UnitResult
}

// Indexer stores unit text in the embedding index and looks up neighbours.
// vecindex.Embedder satisfies it.
type Indexer interface {
	EmbedAndStore(ctx context.Context, text, label string) error
	Similar(ctx context.Context, text string, k int) ([]vecindex.Hit, error)
}

type GenerateRequest struct {
	Kind     rubric.Kind
	Stream   string
	Title    string
	Text     string
	Document *extractor.Document
	Session  generation.SessionKey
}

type BookRequest struct {
	Kind    rubric.Kind
	Stream  string
	Session generation.SessionKey
}

// BookUnit reports one lesson of a book upload. Error fields are set instead of
// Artifact when that unit failed.
type BookUnit struct {
	Position    int              `json:"position"`
	Ordinal     int              `json:"ordinal"`
	Content     string           `json:"content"`
	Artifact    *rubric.Artifact `json:"artifact,omitempty"`
	Error       string           `json:"error,omitempty"`
	ErrorKind   apierr.Kind      `json:"error_kind,omitempty"`
	IndexError  string           `json:"index_error,omitempty"`
	IndexedWith string           `json:"indexed_with,omitempty"`
	// DuplicateOf labels an indexed unit scoring at least NearDuplicateScore.
	DuplicateOf string  `json:"duplicate_of,omitempty"`
	Similarity  float32 `json:"similarity,omitempty"`
}

type BookResult struct {
	Units  []BookUnit `json:"units"`
	Failed int        `json:"failed"`
}

type IngestService interface {
	// Ingest normalizes one document, preserving newlines.
	Ingest(ctx context.Context, doc extractor.Document) (string, error)
	// Generate synthesizes one artifact from raw text or a document.
	Generate(ctx context.Context, req GenerateRequest) (*rubric.Artifact, error)
	// IngestBook segments a multi-lesson document, indexes each unit and
	// synthesizes one artifact per unit. No markers means no units and no model calls.
	IngestBook(ctx context.Context, doc extractor.Document, req BookRequest) (*BookResult, error)
}

type ingestService struct {
	log         *logger.Logger
	normalizer  *extractor.Normalizer
	segmenter   *extractor.Segmenter
	synthesizer Synthesizer
	indexer     Indexer
	maxUnit     int
}

// NewIngestService wires the ingest flow. indexer may be nil to skip indexing.
func NewIngestService(log *logger.Logger, normalizer *extractor.Normalizer, segmenter *extractor.Segmenter, synthesizer Synthesizer, indexer Indexer, maxUnitChars int) IngestService {
	if maxUnitChars <= 0 {
		maxUnitChars = extractor.MaxUnitChars
	}
	return &ingestService{
		log:         log.With("service", "IngestService"),
		normalizer:  normalizer,
		segmenter:   segmenter,
		synthesizer: synthesizer,
		indexer:     indexer,
		maxUnit:     maxUnitChars,
	}
}

func (s *ingestService) Ingest(ctx context.Context, doc extractor.Document) (string, error) {
	format, _ := extractor.DetectFormat(doc.Name)
	text, err := s.normalizer.Normalize(ctx, doc)
	if err != nil {
		observability.Current().IncIngest(string(format), string(apierr.KindOf(err)))
		return "", err
	}
	observability.Current().IncIngest(string(format), "ok")
	return text, nil
}

func (s *ingestService) Generate(ctx context.Context, req GenerateRequest) (*rubric.Artifact, error) {
	text := req.Text
	if req.Document != nil {
		var err error
		if text, err = s.Ingest(ctx, *req.Document); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, apierr.Newf(apierr.KindInvalidInput, "no lesson content provided")
	}
	text = extractor.TruncateRunes(text, s.maxUnit)
	return s.synthesizer.Synthesize(ctx, generation.Request{
		Kind:    req.Kind,
		Stream:  req.Stream,
		Title:   req.Title,
		Content: text,
		Session: req.Session,
	})
}

func (s *ingestService) IngestBook(ctx context.Context, doc extractor.Document, req BookRequest) (*BookResult, error) {
	text, err := s.Ingest(ctx, doc)
	if err != nil {
		return nil, err
	}
	// line starts matter to the loose markers; Segment collapses each unit itself
	units := s.segmenter.Segment(text)
	observability.Current().ObserveSegmentUnits(len(units))

	out := &BookResult{Units: make([]BookUnit, len(units))}
	if len(units) == 0 {
		s.log.Info("No lesson markers found", "name", doc.Name)
		return out, nil
	}

	for i, u := range units {
		out.Units[i] = BookUnit{Position: i, Ordinal: u.Ordinal, Content: u.Content}
		if s.indexer == nil {
			continue
		}
		label := unitLabel(req.Session, doc.Name, i, u.Ordinal)
		s.markDuplicate(ctx, &out.Units[i])
		if err := s.indexer.EmbedAndStore(ctx, u.Content, label); err != nil {
			s.log.Warn("Unit indexing failed", "label", label, "error", err)
			out.Units[i].IndexError = err.Error()
			continue
		}
		out.Units[i].IndexedWith = label
	}

	results := s.synthesizer.SynthesizeBook(ctx, units, generation.BookRequest{
		Kind:    req.Kind,
		Stream:  req.Stream,
		Session: req.Session,
	})
	for _, r := range results {
		if r.Position < 0 || r.Position >= len(out.Units) {
			continue
		}
		unit := &out.Units[r.Position]
		if r.Err != nil {
			unit.Error = r.Err.Error()
			unit.ErrorKind = apierr.KindOf(r.Err)
			out.Failed++
			continue
		}
		unit.Artifact = r.Artifact
	}
	s.log.Info("Book ingested", "name", doc.Name, "units", len(units), "failed", out.Failed)
	return out, nil
}

func (s *ingestService) markDuplicate(ctx context.Context, unit *BookUnit) {
	hits, err := s.indexer.Similar(ctx, unit.Content, 1)
	if err != nil {
		s.log.Debug("Similarity lookup failed", "position", unit.Position, "error", err)
		return
	}
	if len(hits) == 0 || hits[0].Score < NearDuplicateScore {
		return
	}
	unit.DuplicateOf = hits[0].Label
	unit.Similarity = hits[0].Score
	s.log.Info("Near duplicate unit", "position", unit.Position, "duplicate_of", hits[0].Label, "score", hits[0].Score)
}

func unitLabel(session generation.SessionKey, name string, position, ordinal int) string {
	scope := strings.TrimSpace(string(session))
	if scope == "" {
		scope = strings.TrimSpace(name)
	}
	return fmt.Sprintf("%s#%d/lesson-%d", scope, position, ordinal)
}
