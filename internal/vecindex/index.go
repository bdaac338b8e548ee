package vecindex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/viant/vec/search"

	"github.com/yungbote/rubric-backend/internal/observability"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

const (
	DefaultDim          = 1536
	DefaultCompactEvery = 64
)

var (
	ErrClosed      = errors.New("vecindex: index closed")
	ErrDimMismatch = errors.New("vecindex: vector dimension mismatch")
	ErrZeroQuery   = errors.New("vecindex: zero-magnitude query")
)

// Record is one stored embedding. ID is its insertion position.
type Record struct {
	ID        int
	Label     string
	Vector    []float32
	magnitude float32
}

func newRecord(id int, label string, vec []float32) Record {
	return Record{ID: id, Label: label, Vector: vec, magnitude: search.Float32s(vec).Magnitude()}
}

// Hit is a search result; Score is cosine similarity in [-1, 1].
type Hit struct {
	ID    int     `json:"id"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

type Option func(*Index)

func WithCompactEvery(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.compactEvery = n
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(i *Index) {
		if log != nil {
			i.log = log
		}
	}
}

// Index is an append-only embedding store persisted as a snapshot file plus a
// write-ahead log (<path>.wal). Insert is durable once it returns.
type Index struct {
	mu sync.RWMutex

	path         string
	dim          int
	records      []Record
	wal          *os.File
	walSize      int64
	compactEvery int
	sinceCompact int
	closed       bool

	log *logger.Logger
}

// Open loads the snapshot at path (if any), replays the WAL on top of it and
// leaves the WAL open for appends. A torn final WAL frame is discarded.
func Open(path string, dim int, opts ...Option) (*Index, error) {
	if dim <= 0 {
		dim = DefaultDim
	}
	idx := &Index{
		path:         path,
		dim:          dim,
		compactEvery: DefaultCompactEvery,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.log = idx.log.With("service", "VectorIndex")

	if err := idx.loadSnapshot(); err != nil {
		return nil, err
	}
	if err := idx.replayWAL(); err != nil {
		return nil, err
	}
	observability.Current().SetIndexSize(len(idx.records))
	idx.log.Info("Vector index opened", "path", path, "dim", dim, "records", len(idx.records))
	return idx, nil
}

func (i *Index) walPath() string { return i.path + ".wal" }

func (i *Index) loadSnapshot() error {
	data, err := os.ReadFile(i.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	dim, recs, err := unmarshalSnapshot(data)
	if err != nil {
		return err
	}
	if len(recs) > 0 && dim != i.dim {
		return fmt.Errorf("%w: snapshot dim %d, configured %d", ErrDimMismatch, dim, i.dim)
	}
	i.records = recs
	return nil
}

func (i *Index) replayWAL() error {
	f, err := os.OpenFile(i.walPath(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("read wal: %w", err)
	}
	recs, good := decodeWAL(data, i.dim)
	if good < len(data) {
		i.log.Warn("Discarding torn WAL tail", "path", i.walPath(), "bytes", len(data)-good)
		if err := f.Truncate(int64(good)); err != nil {
			_ = f.Close()
			return fmt.Errorf("truncate wal: %w", err)
		}
	}
	if _, err := f.Seek(int64(good), io.SeekStart); err != nil {
		_ = f.Close()
		return fmt.Errorf("seek wal: %w", err)
	}
	for _, r := range recs {
		// frames already folded into the snapshot by a compaction that did not
		// get to truncate the WAL
		if r.ID < len(i.records) {
			continue
		}
		r.ID = len(i.records)
		i.records = append(i.records, r)
		i.sinceCompact++
	}
	i.wal = f
	i.walSize = int64(good)
	return nil
}

func (i *Index) Dim() int { return i.dim }

// Len is the number of stored records. It never decreases.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// Insert appends vec under label and fsyncs the WAL before returning its id.
func (i *Index) Insert(label string, vec []float32) (int, error) {
	if len(vec) != i.dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(vec), i.dim)
	}
	cp := append([]float32(nil), vec...)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return 0, ErrClosed
	}
	rec := newRecord(len(i.records), label, cp)
	frame := encodeWALRecord(rec)
	if _, err := i.wal.Write(frame); err != nil {
		i.rewindWAL()
		return 0, fmt.Errorf("append wal: %w", err)
	}
	if err := i.wal.Sync(); err != nil {
		i.rewindWAL()
		return 0, fmt.Errorf("sync wal: %w", err)
	}
	i.walSize += int64(len(frame))
	i.records = append(i.records, rec)
	i.sinceCompact++
	observability.Current().ObserveIndexInsert(len(i.records))

	if i.sinceCompact >= i.compactEvery {
		if err := i.compactLocked(); err != nil {
			// the record is already durable in the WAL
			i.log.Warn("Index compaction failed", "error", err)
		}
	}
	return rec.ID, nil
}

// rewindWAL drops a partially written frame so later appends stay readable.
func (i *Index) rewindWAL() {
	if err := i.wal.Truncate(i.walSize); err != nil {
		i.log.Error("WAL rewind failed", "error", err)
		return
	}
	_, _ = i.wal.Seek(i.walSize, io.SeekStart)
}

// Compact folds the WAL into a fresh snapshot.
func (i *Index) Compact() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	return i.compactLocked()
}

func (i *Index) compactLocked() error {
	if err := writeFileAtomic(i.path, marshalSnapshot(i.dim, i.records)); err != nil {
		observability.Current().IncIndexCompaction("error")
		return err
	}
	if err := i.wal.Truncate(0); err != nil {
		observability.Current().IncIndexCompaction("error")
		return fmt.Errorf("truncate wal: %w", err)
	}
	if _, err := i.wal.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal: %w", err)
	}
	if err := i.wal.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	i.walSize = 0
	i.sinceCompact = 0
	observability.Current().IncIndexCompaction("ok")
	i.log.Debug("Index compacted", "records", len(i.records))
	return nil
}

// Search returns up to k records ordered by decreasing cosine similarity.
func (i *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(query), i.dim)
	}
	q := search.Float32s(query)
	qm := q.Magnitude()
	if qm == 0 {
		return nil, ErrZeroQuery
	}

	i.mu.RLock()
	hits := make([]Hit, 0, len(i.records))
	for _, r := range i.records {
		if r.magnitude == 0 {
			continue
		}
		d := cosineDistanceWithMagnitude(q, r.Vector, qm, r.magnitude)
		hits = append(hits, Hit{ID: r.ID, Label: r.Label, Score: 1 - d})
	}
	i.mu.RUnlock()

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Get returns a copy of the record with id.
func (i *Index) Get(id int) (Record, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if id < 0 || id >= len(i.records) {
		return Record{}, false
	}
	r := i.records[id]
	r.Vector = append([]float32(nil), r.Vector...)
	return r, true
}

// Close compacts and releases the WAL. Further inserts fail with ErrClosed.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	var err error
	if i.sinceCompact > 0 {
		err = i.compactLocked()
	}
	i.closed = true
	return errors.Join(err, i.wal.Close())
}
