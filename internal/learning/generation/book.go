package generation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
)

// BookRequest applies to every unit of a segmented document.
type BookRequest struct {
	Kind    rubric.Kind
	Stream  string
	Session SessionKey
}

// UnitResult is the outcome for one unit; exactly one of Artifact and Err is set.
type UnitResult struct {
	Position int              `json:"position"`
	Ordinal  int              `json:"ordinal"`
	Artifact *rubric.Artifact `json:"artifact,omitempty"`
	Err      error            `json:"-"`
}

// SynthesizeBook generates one artifact per unit. A failing unit does not stop
// the others and results are in unit order.
//
// With a session the units form one continuity chain: they run in order and
// each sees the last successful artifact before it, starting from whatever the
// session already holds. Without a session the units are independent and fan
// out up to BookConcurrency.
func (o *Orchestrator) SynthesizeBook(ctx context.Context, units []extractor.LessonUnit, req BookRequest) []UnitResult {
	results := make([]UnitResult, len(units))
	if len(units) == 0 {
		return results
	}
	for i, u := range units {
		results[i] = UnitResult{Position: i, Ordinal: u.Ordinal}
	}

	if req.Session.Valid() {
		o.chainUnits(ctx, units, req, results)
	} else {
		g := new(errgroup.Group)
		g.SetLimit(o.cfg.BookConcurrency)
		for i, u := range units {
			g.Go(func() error {
				results[i].Artifact, results[i].Err = o.synthesizeUnit(ctx, u, req, "")
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	o.log.Info("Book generation finished", "units", len(units), "failed", failed, "session_id", string(req.Session))
	return results
}

func (o *Orchestrator) chainUnits(ctx context.Context, units []extractor.LessonUnit, req BookRequest, results []UnitResult) {
	prior := o.prior(ctx, req.Session)
	for i, u := range units {
		art, err := o.synthesizeUnit(ctx, u, req, prior)
		results[i].Artifact, results[i].Err = art, err
		if err != nil {
			continue
		}
		if s, serr := rubric.Serialize(art); serr == nil {
			prior = s
		}
	}
}

func (o *Orchestrator) synthesizeUnit(ctx context.Context, u extractor.LessonUnit, req BookRequest, prior string) (*rubric.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.Synthesize(ctx, Request{
		Kind:    req.Kind,
		Stream:  req.Stream,
		Title:   fmt.Sprintf("Lesson %d", u.Ordinal),
		Number:  u.Ordinal,
		Content: extractor.HandOff(u, o.cfg.MaxContentChars),
		Session: req.Session,
		Prior:   prior,
	})
}
