package vecindex

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

// EmbedFunc matches openai.Client.Embed.
type EmbedFunc func(ctx context.Context, inputs []string) ([][]float32, error)

// Embedder turns text into vectors through the embedding model and stores them.
type Embedder struct {
	log     *logger.Logger
	index   *Index
	embed   EmbedFunc
	timeout time.Duration

	// the last embedded text, so Similar followed by EmbedAndStore costs one call
	mu       sync.Mutex
	lastText string
	lastVec  []float32
}

// NewEmbedder binds embed to idx. timeout bounds each embedding call; zero
// leaves only the caller's deadline.
func NewEmbedder(log *logger.Logger, idx *Index, embed EmbedFunc, timeout time.Duration) *Embedder {
	if log == nil {
		log = logger.Nop()
	}
	return &Embedder{
		log:     log.With("service", "Embedder"),
		index:   idx,
		embed:   embed,
		timeout: timeout,
	}
}

func (e *Embedder) Index() *Index { return e.index }

// EmbedAndStore embeds text and appends it to the index under label.
// Whitespace-only text is a no-op.
func (e *Embedder) EmbedAndStore(ctx context.Context, text, label string) (err error) {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, span := observability.StartSpan(ctx, "vecindex.EmbedAndStore", attribute.String("label", label))
	defer func() { observability.EndSpan(span, err) }()

	vec, err := e.vectorFor(ctx, text)
	if err != nil {
		return err
	}
	id, err := e.index.Insert(label, vec)
	if err != nil {
		return apierr.New(apierr.KindPersistenceError, "index insert", err)
	}
	e.log.Debug("Embedding stored", "id", id, "label", label, "size", e.index.Len())
	return nil
}

// Similar embeds text and returns the k nearest stored records.
func (e *Embedder) Similar(ctx context.Context, text string, k int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return []Hit{}, nil
	}
	vec, err := e.vectorFor(ctx, text)
	if err != nil {
		return nil, err
	}
	hits, err := e.index.Search(vec, k)
	if err != nil {
		return nil, apierr.New(apierr.KindEmbeddingUnavailable, "search", err)
	}
	return hits, nil
}

func (e *Embedder) vectorFor(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	if e.lastVec != nil && e.lastText == text {
		vec := e.lastVec
		e.mu.Unlock()
		return vec, nil
	}
	e.mu.Unlock()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, apierr.New(apierr.KindEmbeddingUnavailable, "embedding call", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != e.index.Dim() {
		got := 0
		if len(vecs) == 1 {
			got = len(vecs[0])
		}
		return nil, apierr.Newf(apierr.KindEmbeddingUnavailable,
			"malformed embedding: %d vectors, dim %d, want dim %d", len(vecs), got, e.index.Dim())
	}
	e.mu.Lock()
	e.lastText, e.lastVec = text, vecs[0]
	e.mu.Unlock()
	return vecs[0], nil
}
