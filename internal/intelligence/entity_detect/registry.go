package entity_detect

import (
	"strings"
	"sync"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config tunes the engine.
type Config struct {
	// MaxIterations caps repeated extraction per detector and window.  Zero
	// means the byte length of the text being resolved.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
}

// EngineOption customises NewEngine.
type EngineOption func(*Engine)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithConfig sets the engine configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// ---------------------------------------------------------------------------
// Engine / registry
// ---------------------------------------------------------------------------

// Engine holds the detector registry and resolves texts against it.  It is
// safe for concurrent use; registrations are usually done once at startup.
type Engine struct {
	mu    sync.RWMutex
	order []string
	specs map[string]*DetectorSpec

	cfg     Config
	logger  logging.Logger
	metrics Metrics
}

// NewEngine returns an empty engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		specs:   make(map[string]*DetectorSpec),
		logger:  logging.NewNopLogger(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a callback detector.  Its dependencies come from
// opts.Dependencies.  Registering an existing name replaces the detector in
// place.
func (e *Engine) Register(name string, d Detector, opts Options) error {
	if name == "" {
		return errors.Misconfigured("entity detector name must not be empty")
	}
	if d == nil {
		return errors.Misconfigured("entity detector must not be nil").WithDetailf("entity=%s", name)
	}
	deps := make([]string, 0, len(opts.Dependencies))
	seen := make(map[string]bool, len(opts.Dependencies))
	for _, dep := range opts.Dependencies {
		tag := entity.Tag(dep)
		if !seen[tag] {
			seen[tag] = true
			deps = append(deps, tag)
		}
	}
	e.put(&DetectorSpec{Name: name, Detector: d, Dependencies: deps, Anonymize: opts.Anonymize})
	return nil
}

// RegisterRegexp adds a regex-template detector.  Dependencies are the @NAME
// tags found in pattern.  It fails when opts.ExtractValueFrom is not one of
// them or when the pattern cannot compile.
func (e *Engine) RegisterRegexp(name, pattern string, opts Options) error {
	if name == "" {
		return errors.Misconfigured("entity detector name must not be empty")
	}
	t, err := newRegexTemplate(name, pattern, opts)
	if err != nil {
		return err
	}
	e.put(&DetectorSpec{Name: name, Detector: t, Dependencies: t.dependencies, Anonymize: opts.Anonymize})
	return nil
}

// MustRegister is Register for chained startup wiring; it panics on error.
func (e *Engine) MustRegister(name string, d Detector, opts Options) *Engine {
	if err := e.Register(name, d, opts); err != nil {
		panic(err)
	}
	return e
}

// MustRegisterRegexp is RegisterRegexp for chained startup wiring; it
// panics on error.
func (e *Engine) MustRegisterRegexp(name, pattern string, opts Options) *Engine {
	if err := e.RegisterRegexp(name, pattern, opts); err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) put(spec *DetectorSpec) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.specs[spec.Name]; !exists {
		e.order = append(e.order, spec.Name)
	}
	e.specs[spec.Name] = spec
	e.logger.Debug("entity detector registered",
		logging.String("entity", spec.Name),
		logging.Strings("dependencies", spec.Dependencies),
		logging.Bool("anonymize", spec.Anonymize),
	)
}

// snapshot returns the registered specs in registration order.
func (e *Engine) snapshot() []*DetectorSpec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*DetectorSpec, len(e.order))
	for i, name := range e.order {
		out[i] = e.specs[name]
	}
	return out
}

func (e *Engine) lookup(name string) (*DetectorSpec, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	spec, ok := e.specs[name]
	return spec, ok
}

// Detectors returns the registered entity names in registration order.
func (e *Engine) Detectors() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Spec returns a copy of the registration for name.
func (e *Engine) Spec(name string) (DetectorSpec, bool) {
	spec, ok := e.lookup(name)
	if !ok {
		return DetectorSpec{}, false
	}
	cp := *spec
	cp.Dependencies = append([]string(nil), spec.Dependencies...)
	return cp, true
}

// DependencyFilter selects which dependencies DependentEntities reports.
type DependencyFilter int

const (
	AllDependencies DependencyFilter = iota
	KnownDependencies
	UnknownDependencies
)

// DependentEntities lists every entity some detector depends on.  Known
// entities are reported with their registered name, unknown ones in lower
// case without the leading "@".
func (e *Engine) DependentEntities(filter DependencyFilter) []string {
	return dependentEntities(e.snapshot(), filter)
}

func dependentEntities(specs []*DetectorSpec, filter DependencyFilter) []string {
	known := make(map[string]string, len(specs))
	for _, spec := range specs {
		known[strings.ToLower(spec.Name)] = spec.Name
	}

	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, spec := range specs {
		for _, dep := range spec.Dependencies {
			lower := strings.ToLower(strings.TrimPrefix(dep, "@"))
			name, isKnown := known[lower]
			switch {
			case isKnown && filter != UnknownDependencies:
				add(name)
			case !isKnown && filter != KnownDependencies:
				add(lower)
			}
		}
	}
	return out
}

//Personal.AI order the ending
