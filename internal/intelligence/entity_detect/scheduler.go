package entity_detect

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// ResolveOption customises ResolveEntities.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	single   string
	expected []string
	previous []entity.Entity
	subWords *[]entity.Entity
}

// WithSingleEntity requests one entity only.  Waves stop as soon as its
// detector has run and the result holds at most that one entity.
func WithSingleEntity(name string) ResolveOption {
	return func(o *resolveOptions) { o.single = name }
}

// WithExpected marks entity names that win span conflicts.
func WithExpected(names ...string) ResolveOption {
	return func(o *resolveOptions) { o.expected = append(o.expected, names...) }
}

// WithPrevious seeds the pool with entities detected earlier.  Entities
// without text get it sliced from the resolved text.
func WithPrevious(ents ...entity.Entity) ResolveOption {
	return func(o *resolveOptions) { o.previous = append(o.previous, ents...) }
}

// WithSubWords passes a caller-owned sub-word pool.  Its entities are used
// as dependencies and it receives every sub-word hit of the call.
func WithSubWords(pool *[]entity.Entity) ResolveOption {
	return func(o *resolveOptions) { o.subWords = pool }
}

// waveResult is the output of one detector within a wave.
type waveResult struct {
	regular []entity.Entity
	subWord []entity.Entity
}

// ResolveEntities runs every registered detector in dependency order over
// text and returns the non-overlapping entities sorted by start offset.
func (e *Engine) ResolveEntities(ctx context.Context, text string, opts ...ResolveOption) []entity.Entity {
	began := time.Now()
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := e.logger.WithContext(ctx)
	specs := e.snapshot()

	resolved := make(map[string]bool)
	for _, name := range dependentEntities(specs, UnknownDependencies) {
		resolved[entity.Tag(name)] = true
	}

	pool := make([]entity.Entity, 0, len(o.previous))
	for _, p := range o.previous {
		if p.Text == "" && p.Start >= 0 && p.Start <= p.End && p.End <= len(text) {
			p.Text = text[p.Start:p.End]
		}
		pool = append(pool, p)
	}
	var subPool []entity.Entity
	if o.subWords != nil {
		subPool = append(subPool, *o.subWords...)
	}

	pending := specs
	for len(pending) > 0 {
		var ready, waiting []*DetectorSpec
		for _, spec := range pending {
			if allResolved(spec.Dependencies, resolved) {
				ready = append(ready, spec)
			} else {
				waiting = append(waiting, spec)
			}
		}

		if len(ready) == 0 {
			stuck := make([]string, len(waiting))
			for i, spec := range waiting {
				stuck[i] = spec.Name
			}
			log.Warn("ignoring entities because of dependency cycle", logging.Strings("stuck", stuck))
			e.metrics.RecordDependencyCycle(ctx, stuck)
			break
		}

		if o.single != "" {
			for _, spec := range ready {
				if spec.Name == o.single {
					ready = []*DetectorSpec{spec}
					waiting = nil
					break
				}
			}
		}
		pending = waiting

		results := e.runWave(ctx, ready, text, pool, subPool)
		for i, spec := range ready {
			resolved[entity.Tag(spec.Name)] = true
			pool = append(pool, results[i].regular...)
			subPool = append(subPool, results[i].subWord...)
		}
	}

	if o.subWords != nil {
		*o.subWords = subPool
	}

	clean := nonOverlapping(pool, o.expected)
	mode := "all"
	if o.single != "" {
		mode = "single"
		clean = singleOut(clean, o.single)
	}
	e.metrics.RecordResolution(ctx, mode, len(clean), time.Since(began))
	return clean
}

// runWave invokes every ready detector concurrently.  The pools are only
// read during the wave.
func (e *Engine) runWave(ctx context.Context, ready []*DetectorSpec, text string, pool, subPool []entity.Entity) []waveResult {
	e.metrics.RecordWave(ctx, len(ready))
	results := make([]waveResult, len(ready))

	var g errgroup.Group
	for i, spec := range ready {
		i, spec := i, spec
		deps := dependencyEntities(spec, pool, subPool)
		g.Go(func() error {
			results[i].regular, results[i].subWord = e.detectAll(ctx, spec, text, deps)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// dependencyEntities collects the entities whose tag spec depends on, the
// sub-word pool first.
func dependencyEntities(spec *DetectorSpec, pool, subPool []entity.Entity) []entity.Entity {
	if len(spec.Dependencies) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(spec.Dependencies))
	for _, d := range spec.Dependencies {
		wanted[d] = true
	}
	var deps []entity.Entity
	for _, src := range [][]entity.Entity{subPool, pool} {
		for _, ent := range src {
			if wanted[ent.Tag()] {
				deps = append(deps, ent)
			}
		}
	}
	return deps
}

func allResolved(deps []string, resolved map[string]bool) bool {
	for _, d := range deps {
		if !resolved[d] {
			return false
		}
	}
	return true
}

func singleOut(ents []entity.Entity, name string) []entity.Entity {
	if first, ok := entity.First(ents, name); ok {
		return []entity.Entity{first}
	}
	return []entity.Entity{}
}

//Personal.AI order the ending
