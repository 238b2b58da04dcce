// Package resolution provides the application service that fronts the
// entity-detection engine for the HTTP API, the worker and the CLI.
package resolution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/turtacn/entigo/internal/infrastructure/database/redis"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/common"
	"github.com/turtacn/entigo/pkg/types/entity"
)

const cacheName = "resolution"

// Service defines the resolution operations.
type Service interface {
	Resolve(ctx context.Context, input *ResolveInput) (*ResolveOutput, error)
	Entities(ctx context.Context, input *EntitiesInput) ([]entity.Entity, error)
	Value(ctx context.Context, input *ValueInput) (interface{}, error)
	Dependencies(filter entity_detect.DependencyFilter) []string
	Detectors() []DetectorInfo
	Ready(ctx context.Context) error
	SetEngine(engine *entity_detect.Engine)
}

// ResolveInput contains input for resolving an utterance.
type ResolveInput struct {
	Text             string
	ExpectedEntities []string
}

// ResolveOutput is the resolution result of one utterance.
type ResolveOutput struct {
	RequestID string        `json:"request_id"`
	Result    entity.Result `json:"result"`
	Cached    bool          `json:"cached"`
}

// EntitiesInput contains input for raw entity extraction.
type EntitiesInput struct {
	Text             string
	ExpectedEntities []string

	// Entity restricts extraction to one registered entity.
	Entity string
}

// ValueInput contains input for entity value extraction.
type ValueInput struct {
	Entity string
	Text   string
}

// DetectorInfo describes one registered detector.
type DetectorInfo struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
	Anonymize    bool     `json:"anonymize"`
}

// Option customises NewService.
type Option func(*serviceImpl)

// WithCache enables result caching.  A zero ttl uses the cache default.
func WithCache(c redis.Cache, ttl time.Duration) Option {
	return func(s *serviceImpl) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics records cache and resolution metrics into m.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *serviceImpl) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *serviceImpl) {
		if l != nil {
			s.logger = l
		}
	}
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	state    atomic.Pointer[engineState]
	cache    redis.Cache
	cacheTTL time.Duration
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// engineState pairs an engine with the generation its results are cached
// under.  Both are swapped together.
type engineState struct {
	engine     *entity_detect.Engine
	generation uint64
}

// NewService wraps engine.
func NewService(engine *entity_detect.Engine, opts ...Option) Service {
	s := &serviceImpl{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&engineState{engine: engine})
	return s
}

func (s *serviceImpl) current() *entity_detect.Engine {
	return s.state.Load().engine
}

// SetEngine swaps the engine used by subsequent calls.  Cached results of
// the previous engine are no longer served.
func (s *serviceImpl) SetEngine(engine *entity_detect.Engine) {
	var next *engineState
	for {
		prev := s.state.Load()
		next = &engineState{engine: engine, generation: prev.generation + 1}
		if s.state.CompareAndSwap(prev, next) {
			break
		}
	}
	s.logger.Info("entity engine replaced",
		logging.Strings("detectors", engine.Detectors()),
		logging.Int64("generation", int64(next.generation)))
}

// withRequestID returns ctx carrying a request id, generating one when ctx
// has none.
func withRequestID(ctx context.Context) (context.Context, string) {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := string(common.NewRequestID())
	return logging.ContextWithRequestID(ctx, id), id
}

func (s *serviceImpl) Resolve(ctx context.Context, input *ResolveInput) (*ResolveOutput, error) {
	if input == nil || strings.TrimSpace(input.Text) == "" {
		return nil, errors.InvalidParam("text must not be empty")
	}
	ctx, requestID := withRequestID(ctx)
	st := s.state.Load()
	engine := st.engine
	src := entity_detect.Expected(input.ExpectedEntities)

	if s.cache == nil {
		return &ResolveOutput{RequestID: requestID, Result: engine.Resolve(ctx, input.Text, src)}, nil
	}

	var (
		result entity.Result
		loaded bool
	)
	key := cacheKey(st.generation, input.Text, input.ExpectedEntities)
	err := s.cache.GetOrSet(ctx, key, &result, s.cacheTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return engine.Resolve(ctx, input.Text, src), nil
	})
	if err != nil {
		prometheus.RecordCacheError(s.metrics, cacheName, "get_or_set")
		s.logger.WithContext(ctx).WithError(err).Warn("resolution cache unavailable, resolving directly")
		return &ResolveOutput{RequestID: requestID, Result: engine.Resolve(ctx, input.Text, src)}, nil
	}
	prometheus.RecordCacheAccess(s.metrics, cacheName, !loaded)
	if result.Intents == nil {
		result.Intents = []entity.Intent{}
	}
	return &ResolveOutput{RequestID: requestID, Result: result, Cached: !loaded}, nil
}

// cacheKey hashes the normalised text, the sorted expected names and the
// engine generation.  Names are kept verbatim since the engine matches them
// exactly.
func cacheKey(generation uint64, text string, expected []string) string {
	names := append([]string(nil), expected...)
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(normalize(text)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(generation, 10)))
	return "resolve:" + hex.EncodeToString(h.Sum(nil))
}

// normalize mirrors the engine's newline and whitespace handling.
func normalize(text string) string {
	return strings.TrimSpace(strings.Join(strings.FieldsFunc(text, func(r rune) bool {
		return r == '\r' || r == '\n'
	}), " "))
}

func (s *serviceImpl) Entities(ctx context.Context, input *EntitiesInput) ([]entity.Entity, error) {
	if input == nil || strings.TrimSpace(input.Text) == "" {
		return nil, errors.InvalidParam("text must not be empty")
	}
	ctx, _ = withRequestID(ctx)
	engine := s.current()

	opts := []entity_detect.ResolveOption{entity_detect.WithExpected(input.ExpectedEntities...)}
	if input.Entity != "" {
		if _, ok := engine.Spec(input.Entity); !ok {
			return nil, errors.New(errors.ErrCodeEntityUnknown, "entity is not registered").WithDetail("entity=" + input.Entity)
		}
		opts = append(opts, entity_detect.WithSingleEntity(input.Entity))
	}
	return engine.ResolveEntities(ctx, input.Text, opts...), nil
}

func (s *serviceImpl) Value(ctx context.Context, input *ValueInput) (interface{}, error) {
	if input == nil || input.Entity == "" {
		return nil, errors.InvalidParam("entity must not be empty")
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.InvalidParam("text must not be empty")
	}
	ctx, _ = withRequestID(ctx)
	return s.current().ResolveEntityValue(ctx, input.Entity, input.Text), nil
}

func (s *serviceImpl) Dependencies(filter entity_detect.DependencyFilter) []string {
	return s.current().DependentEntities(filter)
}

func (s *serviceImpl) Detectors() []DetectorInfo {
	engine := s.current()
	names := engine.Detectors()
	out := make([]DetectorInfo, 0, len(names))
	for _, name := range names {
		spec, ok := engine.Spec(name)
		if !ok {
			continue
		}
		deps := spec.Dependencies
		if deps == nil {
			deps = []string{}
		}
		out = append(out, DetectorInfo{Name: spec.Name, Dependencies: deps, Anonymize: spec.Anonymize})
	}
	return out
}

// Ready reports whether the service can serve requests.  A configured cache
// must answer a ping.
func (s *serviceImpl) Ready(ctx context.Context) error {
	if s.current() == nil {
		return errors.Unavailable("entity engine not initialised")
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "resolution cache unreachable")
		}
	}
	return nil
}

//Personal.AI order the ending
