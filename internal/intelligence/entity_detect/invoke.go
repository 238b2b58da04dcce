package entity_detect

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// detectAll runs the normal and the sub-word search of one detector
// concurrently.  Sub-word hits covered by a normal hit are dropped.
func (e *Engine) detectAll(ctx context.Context, spec *DetectorSpec, text string, deps []entity.Entity) (regular, subWord []entity.Entity) {
	var g errgroup.Group
	g.Go(func() error {
		regular = e.detect(ctx, spec, text, deps, false)
		return nil
	})
	g.Go(func() error {
		subWord = e.detect(ctx, spec, text, deps, true)
		return nil
	})
	_ = g.Wait()

	clean := subWord[:0:0]
	for _, s := range subWord {
		covered := false
		for _, r := range regular {
			if r.Overlaps(s) && r.Covers(s) {
				covered = true
				break
			}
		}
		if !covered {
			clean = append(clean, s)
		}
	}
	return regular, clean
}

// detect repeatedly calls the detector on the shrinking remainder of text.
// Each scalar hit moves the window past the hit and the whitespace after it.
// A Many result, an empty result, an error or the iteration cap ends the
// loop; failures keep the entities collected so far.
func (e *Engine) detect(ctx context.Context, spec *DetectorSpec, text string, deps []entity.Entity, withinWords bool) []entity.Entity {
	if text == "" || (withinWords && !supportsSubWords(spec.Detector)) {
		return nil
	}

	began := time.Now()
	limit := e.cfg.MaxIterations
	if limit <= 0 {
		limit = len(text)
	}

	var collected []entity.Entity
	defer func() {
		e.metrics.RecordDetection(ctx, spec.Name, len(collected), time.Since(began))
	}()

	offset := 0
	for i := 0; ; i++ {
		window := text[offset:]
		if window == "" {
			return collected
		}
		if i == limit {
			e.fail(ctx, spec.Name, withinWords,
				errors.New(errors.ErrCodeIterationLimit, "entity detection reached iteration limit").WithDetailf("limit=%d", limit))
			return collected
		}

		res, err := e.call(ctx, spec, Request{
			Text:        window,
			Entities:    windowEntities(deps, offset, len(text)),
			WithinWords: withinWords,
		})
		if err != nil {
			e.fail(ctx, spec.Name, withinWords, err)
			return collected
		}

		found, err := normalize(spec.Name, res.candidates, text, offset)
		if err != nil {
			e.fail(ctx, spec.Name, withinWords, err)
			return collected
		}
		if res.kind == kindMany || len(found) == 0 {
			collected = append(collected, found...)
			return collected
		}

		hit := found[0]
		collected = append(collected, hit)
		offset = hit.End + leadingSpace(text[hit.End:])
	}
}

// call invokes the detector, turning a panic into an error.
func (e *Engine) call(ctx context.Context, spec *DetectorSpec, req Request) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeDetectorFailed, "entity detector panicked").WithDetail(fmt.Sprint(r))
		}
	}()
	res, err = spec.Detector.Detect(ctx, req)
	if err != nil {
		err = errors.Wrap(err, errors.ErrCodeDetectorFailed, "entity detector failed")
	}
	return res, err
}

func (e *Engine) fail(ctx context.Context, name string, withinWords bool, err error) {
	e.logger.WithContext(ctx).WithError(err).Error("entity detection failed",
		logging.String("entity", name),
		logging.Bool("within_words", withinWords),
	)
	e.metrics.RecordDetectorFailure(ctx, name, errors.GetCode(err).String())
}

// windowEntities returns the entities that lie inside text[offset:end],
// rebased to the window.
func windowEntities(deps []entity.Entity, offset, end int) []entity.Entity {
	out := make([]entity.Entity, 0, len(deps))
	for _, d := range deps {
		if d.Start < offset || d.End > end {
			continue
		}
		d.Start -= offset
		d.End -= offset
		out = append(out, d)
	}
	return out
}

// normalize converts candidates found in text[offset:] to entities with
// absolute offsets.  Zero-width spans are dropped.
func normalize(name string, cands []Candidate, text string, offset int) ([]entity.Entity, error) {
	window := text[offset:]
	out := make([]entity.Entity, 0, len(cands))
	for _, c := range cands {
		score := 1.0
		if c.Score != nil && !math.IsNaN(*c.Score) {
			score = math.Max(0, math.Min(1, *c.Score))
		}

		var start, end int
		switch {
		case c.Text != "":
			s, en, ok := indexFold(window, c.Text)
			if !ok {
				return nil, errors.New(errors.ErrCodeCandidateNotFound, "entity detector returned text which cannot be found in the query").
					WithDetailf("entity=%s text=%q", name, c.Text)
			}
			start, end = s, en
		case c.Span != nil:
			start, end = c.Span.Start, c.Span.End
			if start < 0 || start >= len(window) {
				return nil, errors.New(errors.ErrCodeCandidateInvalid, "entity detector returned start out of bounds").
					WithDetailf("entity=%s start=%d length=%d", name, start, len(window))
			}
			if start == end {
				continue
			}
			if end < start || end > len(window) {
				return nil, errors.New(errors.ErrCodeCandidateInvalid, "entity detector returned end out of bounds").
					WithDetailf("entity=%s start=%d end=%d length=%d", name, start, end, len(window))
			}
		default:
			return nil, errors.New(errors.ErrCodeCandidateInvalid, "entity detector should return a text or a span hint").
				WithDetailf("entity=%s", name)
		}

		out = append(out, entity.Entity{
			Entity: name,
			Start:  offset + start,
			End:    offset + end,
			Text:   text[offset+start : offset+end],
			Score:  score,
			Value:  c.Value,
		})
	}
	return out, nil
}

//Personal.AI order the ending
