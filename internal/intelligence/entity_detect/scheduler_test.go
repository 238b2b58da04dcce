package entity_detect

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/testutil"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// ---------------------------------------------------------------------------
// Mocks and fixtures
// ---------------------------------------------------------------------------

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordWave(ctx context.Context, detectors int) {
	m.Called(ctx, detectors)
}

func (m *mockMetrics) RecordDetection(ctx context.Context, name string, found int, d time.Duration) {
	m.Called(ctx, name, found, d)
}

func (m *mockMetrics) RecordDetectorFailure(ctx context.Context, name, code string) {
	m.Called(ctx, name, code)
}

func (m *mockMetrics) RecordDependencyCycle(ctx context.Context, stuck []string) {
	m.Called(ctx, stuck)
}

func (m *mockMetrics) RecordResolution(ctx context.Context, mode string, n int, d time.Duration) {
	m.Called(ctx, mode, n, d)
}

func newMockMetrics() *mockMetrics {
	m := &mockMetrics{}
	m.On("RecordWave", mock.Anything, mock.Anything).Maybe()
	m.On("RecordDetection", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	return m
}

// priceEngine detects NUMBER with a plain regex and PRICE on top of it.
func priceEngine(opts ...EngineOption) *Engine {
	return NewEngine(opts...).
		MustRegisterRegexp("NUMBER", `\d+`, Options{}).
		MustRegisterRegexp("PRICE", `@NUMBER\s*czk`, Options{})
}

// wordDetector returns a text hint for word while the window contains it.
func wordDetector(word string) DetectorFunc {
	return func(_ context.Context, text string, _ []entity.Entity) (Result, error) {
		if !strings.Contains(strings.ToLower(text), word) {
			return None(), nil
		}
		return One(TextHint(word)), nil
	}
}

func errorCodes(l *testutil.MockLogger) []interface{} {
	var out []interface{}
	for _, msg := range l.MessagesAt("error") {
		code, _ := msg.Field("error_code")
		out = append(out, code)
	}
	return out
}

// ---------------------------------------------------------------------------
// Dependency waves
// ---------------------------------------------------------------------------

func TestResolveEntities_DependentDetectorSeesEarlierWave(t *testing.T) {
	got := priceEngine().ResolveEntities(context.Background(), "order 100 czk now")

	want := []entity.Entity{{Entity: "PRICE", Start: 6, End: 13, Text: "100 czk", Score: 1, Value: "100"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveEntities() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveEntities_ExpectedEntityWins(t *testing.T) {
	got := priceEngine().ResolveEntities(context.Background(), "order 100 czk now", WithExpected("NUMBER"))

	want := []entity.Entity{{Entity: "NUMBER", Start: 6, End: 9, Text: "100", Score: 1, Value: "100"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveEntities() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveEntities_RepeatedHits(t *testing.T) {
	e := NewEngine().MustRegisterRegexp("NUMBER", `\d+`, Options{})
	got := e.ResolveEntities(context.Background(), "1 22  333")

	assert.Equal(t, []string{"1", "22", "333"}, texts(got))
	assert.Equal(t, 6, got[2].Start)
}

func TestResolveEntities_PreviousEntitiesFeedDependents(t *testing.T) {
	e := NewEngine().MustRegisterRegexp("PRICE", `@NUMBER\s*czk`, Options{})
	prev := entity.Entity{Entity: "NUMBER", Start: 6, End: 9, Score: 1, Value: 100}

	got := e.ResolveEntities(context.Background(), "order 100 czk now", WithPrevious(prev))

	require.Len(t, got, 1)
	assert.Equal(t, "PRICE", got[0].Entity)
	assert.Equal(t, 100, got[0].Value)
}

func TestResolveEntities_DependencyCycleWarnsOnce(t *testing.T) {
	logger := testutil.NewMockLogger()
	metrics := newMockMetrics()
	metrics.On("RecordDependencyCycle", mock.Anything, []string{"A", "B"}).Once()
	metrics.On("RecordResolution", mock.Anything, "all", 1, mock.Anything).Once()

	e := NewEngine(WithLogger(logger), WithMetrics(metrics)).
		MustRegister("A", DetectorFunc(noDetection), Options{Dependencies: []string{"B"}}).
		MustRegister("B", DetectorFunc(noDetection), Options{Dependencies: []string{"A"}}).
		MustRegisterRegexp("C", `zzz`, Options{})

	got := e.ResolveEntities(context.Background(), "zzz")

	assert.Equal(t, []string{"C"}, entity.Names(got))
	warns := logger.MessagesAt("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "ignoring entities because of dependency cycle", warns[0].Message)
	stuck, _ := warns[0].Field("stuck")
	assert.Equal(t, []string{"A", "B"}, stuck)
	metrics.AssertExpectations(t)
}

func TestResolveEntities_DetectorsOfOneWaveRunConcurrently(t *testing.T) {
	logger := testutil.NewMockLogger()
	var started sync.WaitGroup
	started.Add(2)

	barrier := func(context.Context, string, []entity.Entity) (Result, error) {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return None(), nil
		case <-time.After(2 * time.Second):
			return None(), errors.New("detectors of one wave ran sequentially")
		}
	}

	e := NewEngine(WithLogger(logger)).
		MustRegister("LEFT", DetectorFunc(barrier), Options{}).
		MustRegister("RIGHT", DetectorFunc(barrier), Options{})

	assert.Empty(t, e.ResolveEntities(context.Background(), "some text"))
	assert.Empty(t, logger.MessagesAt("error"))
}

func TestResolveEntities_SingleEntityStopsEarly(t *testing.T) {
	var calls atomic.Int32
	counting := func(context.Context, string, []entity.Entity) (Result, error) {
		calls.Add(1)
		return None(), nil
	}
	metrics := newMockMetrics()
	metrics.On("RecordResolution", mock.Anything, "single", 1, mock.Anything).Once()

	e := priceEngine(WithMetrics(metrics)).MustRegister("WORD", DetectorFunc(counting), Options{})

	got := e.ResolveEntities(context.Background(), "order 100 czk now", WithSingleEntity("NUMBER"))

	assert.Equal(t, []string{"NUMBER"}, entity.Names(got))
	assert.Zero(t, calls.Load())
	metrics.AssertExpectations(t)
}

func TestResolveEntities_SingleEntityAfterDependencies(t *testing.T) {
	got := priceEngine().ResolveEntities(context.Background(), "order 100 czk and 200 czk", WithSingleEntity("PRICE"))

	require.Len(t, got, 1)
	assert.Equal(t, "100 czk", got[0].Text)
}

// ---------------------------------------------------------------------------
// Sub-word search
// ---------------------------------------------------------------------------

func TestResolveEntities_SubWordHitsArePooledSeparately(t *testing.T) {
	e := NewEngine().MustRegisterRegexp("CAT", `cat`, Options{MatchWholeWords: true})

	var sub []entity.Entity
	got := e.ResolveEntities(context.Background(), "cat concatenate", WithSubWords(&sub))

	want := []entity.Entity{{Entity: "CAT", Start: 0, End: 3, Text: "cat", Score: 1, Value: "cat"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveEntities() mismatch (-want +got):\n%s", diff)
	}
	wantSub := []entity.Entity{{Entity: "CAT", Start: 7, End: 10, Text: "cat", Score: 1, Value: "cat"}}
	if diff := cmp.Diff(wantSub, sub); diff != "" {
		t.Errorf("sub-word pool mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveEntities_PlainFunctionsSkipSubWordPass(t *testing.T) {
	var calls atomic.Int32
	e := NewEngine().MustRegister("X", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
		calls.Add(1)
		return None(), nil
	}), Options{})

	e.ResolveEntities(context.Background(), "text")
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveEntities_SubWordDetectorSeesFlag(t *testing.T) {
	var within atomic.Bool
	e := NewEngine().MustRegister("X", SubWordDetectorFunc(func(_ context.Context, req Request) (Result, error) {
		if req.WithinWords {
			within.Store(true)
		}
		return None(), nil
	}), Options{})

	e.ResolveEntities(context.Background(), "text")
	assert.True(t, within.Load())
}

// ---------------------------------------------------------------------------
// Failure isolation and candidate normalisation
// ---------------------------------------------------------------------------

func TestResolveEntities_FailingDetectorsAreIsolated(t *testing.T) {
	logger := testutil.NewMockLogger()
	metrics := newMockMetrics()
	metrics.On("RecordDetectorFailure", mock.Anything, "BAD", "ENT_002").Once()
	metrics.On("RecordDetectorFailure", mock.Anything, "PANIC", "ENT_002").Once()
	metrics.On("RecordResolution", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()

	e := NewEngine(WithLogger(logger), WithMetrics(metrics)).
		MustRegister("BAD", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
			return None(), errors.New("boom")
		}), Options{}).
		MustRegister("PANIC", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
			panic("kaboom")
		}), Options{}).
		MustRegisterRegexp("GOOD", `ok`, Options{})

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	got := e.ResolveEntities(ctx, "it is ok")

	assert.Equal(t, []string{"GOOD"}, entity.Names(got))
	errs := logger.MessagesAt("error")
	require.Len(t, errs, 2)
	for _, msg := range errs {
		code, _ := msg.Field("error_code")
		assert.Equal(t, "ENT_002", code)
		id, _ := msg.Field("request_id")
		assert.Equal(t, "req-42", id)
	}
	metrics.AssertExpectations(t)
}

func TestResolveEntities_FailureKeepsEarlierHits(t *testing.T) {
	logger := testutil.NewMockLogger()
	var calls atomic.Int32
	e := NewEngine(WithLogger(logger)).MustRegister("X", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
		if calls.Add(1) > 1 {
			return None(), errors.New("second call fails")
		}
		return One(TextHint("a")), nil
	}), Options{})

	got := e.ResolveEntities(context.Background(), "a b")

	want := []entity.Entity{{Entity: "X", Start: 0, End: 1, Text: "a", Score: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveEntities() mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, logger.MessagesAt("error"), 1)
}

func TestResolveEntities_EmptyRegexpMatchIsSilent(t *testing.T) {
	logger := testutil.NewMockLogger()
	e := NewEngine(WithLogger(logger)).MustRegisterRegexp("TAIL", `x?$`, Options{})

	got := e.ResolveEntities(context.Background(), "abc")

	assert.Empty(t, got)
	assert.Empty(t, logger.MessagesAt("error"))
}

func TestResolveEntities_IterationLimit(t *testing.T) {
	logger := testutil.NewMockLogger()
	e := NewEngine(WithLogger(logger), WithConfig(Config{MaxIterations: 2})).
		MustRegister("A", wordDetector("a"), Options{})

	got := e.ResolveEntities(context.Background(), "a a a a")

	assert.Equal(t, []string{"a", "a"}, texts(got))
	assert.Equal(t, []interface{}{"ENT_005"}, errorCodes(logger))
}

func TestResolveEntities_ConsumingTheWholeTextIsNotALimit(t *testing.T) {
	logger := testutil.NewMockLogger()
	e := NewEngine(WithLogger(logger)).MustRegister("CHAR", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
		return One(SpanHint(0, 1)), nil
	}), Options{})

	got := e.ResolveEntities(context.Background(), "abc")

	assert.Equal(t, []string{"a", "b", "c"}, texts(got))
	assert.Empty(t, logger.MessagesAt("error"))
}

func TestResolveEntities_TextHintIsCaseInsensitive(t *testing.T) {
	e := NewEngine().MustRegister("CITY", wordDetector("prague"), Options{})

	got := e.ResolveEntities(context.Background(), "I live in Prague now")

	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].Start)
	assert.Equal(t, 16, got[0].End)
	assert.Equal(t, "Prague", got[0].Text)
}

func TestResolveEntities_ScoresAreClamped(t *testing.T) {
	e := NewEngine().MustRegister("X", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
		return Many(
			SpanHint(0, 1).WithScore(3),
			SpanHint(2, 3).WithScore(-1),
			SpanHint(4, 5).WithScore(math.NaN()),
			SpanHint(6, 7).WithValue("d"),
		), nil
	}), Options{})

	got := e.ResolveEntities(context.Background(), "a b c d")

	require.Len(t, got, 4)
	scores := make([]float64, len(got))
	for i, g := range got {
		scores[i] = g.Score
	}
	assert.Equal(t, []float64{1, 0, 1, 1}, scores)
	assert.Equal(t, "d", got[3].Value)
}

func TestResolveEntities_InvalidCandidates(t *testing.T) {
	tests := []struct {
		name string
		cand Candidate
		code string
	}{
		{"end past the window", SpanHint(0, 100), "ENT_003"},
		{"start past the window", SpanHint(7, 8), "ENT_003"},
		{"negative start", SpanHint(-1, 2), "ENT_003"},
		{"end before start", SpanHint(3, 1), "ENT_003"},
		{"neither text nor span", Candidate{}, "ENT_003"},
		{"text not in the window", TextHint("zzz"), "ENT_004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testutil.NewMockLogger()
			cand := tt.cand
			e := NewEngine(WithLogger(logger)).MustRegister("X", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
				return One(cand), nil
			}), Options{})

			assert.Empty(t, e.ResolveEntities(context.Background(), "a b c d"))
			assert.Equal(t, []interface{}{tt.code}, errorCodes(logger))
		})
	}
}

func TestResolveEntities_ZeroWidthSpanIsDropped(t *testing.T) {
	logger := testutil.NewMockLogger()
	e := NewEngine(WithLogger(logger)).MustRegister("X", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
		return One(SpanHint(2, 2)), nil
	}), Options{})

	assert.Empty(t, e.ResolveEntities(context.Background(), "a b c d"))
	assert.Empty(t, logger.MessagesAt("error"))
}

func TestResolveEntities_EmptyText(t *testing.T) {
	var calls atomic.Int32
	e := NewEngine().MustRegister("X", DetectorFunc(func(context.Context, string, []entity.Entity) (Result, error) {
		calls.Add(1)
		return None(), nil
	}), Options{})

	assert.Empty(t, e.ResolveEntities(context.Background(), ""))
	assert.Zero(t, calls.Load())
}

func texts(ents []entity.Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.Text
	}
	return out
}

//Personal.AI order the ending
