package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	errs "github.com/turtacn/entigo/pkg/errors"
)

// newTestLogger returns a debug-level JSON logger writing to a buffer.
func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelInfo, Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNewDefaultAndDevelopmentLogger_NotNil(t *testing.T) {
	assert.NotNil(t, NewDefaultLogger())
	assert.NotNil(t, NewDevelopmentLogger())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg")
		l.Fatal("msg")
	})
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.WithContext(context.Background()))
	assert.Equal(t, l, l.WithError(errors.New("err")))
	assert.Equal(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_LevelsWrite(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, out, lvl+" msg")
		assert.Contains(t, out, `"level":"`+lvl+`"`)
	}
}

func TestZapLogger_Fields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("entity", "PRICE")).Info("msg",
		Int("start", 6),
		Strings("stuck", []string{"A", "B"}),
		Bool("anonymize", true),
		Duration("took", time.Millisecond),
	)
	out := buf.String()
	assert.Contains(t, out, `"entity":"PRICE"`)
	assert.Contains(t, out, `"start":6`)
	assert.Contains(t, out, `"stuck":["A","B"]`)
	assert.Contains(t, out, `"anonymize":true`)
}

func TestZapLogger_WithContext_ExtractsRequestID(t *testing.T) {
	l, buf := newTestLogger(t)
	ctx := ContextWithRequestID(context.Background(), "req-123")
	l.WithContext(ctx).Info("msg")
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestZapLogger_WithError(t *testing.T) {
	t.Run("app error carries code", func(t *testing.T) {
		l, buf := newTestLogger(t)
		l.WithError(errs.New(errs.ErrCodeDetectorFailed, "detector failed")).Error("msg")
		assert.Contains(t, buf.String(), `"error_code":"ENT_002"`)
		assert.Contains(t, buf.String(), `"error":"[ENT_002] detector failed"`)
	})
	t.Run("standard error", func(t *testing.T) {
		l, buf := newTestLogger(t)
		l.WithError(errors.New("std error")).Error("msg")
		assert.Contains(t, buf.String(), `"error":"std error"`)
		assert.NotContains(t, buf.String(), "error_code")
	})
	t.Run("nil error", func(t *testing.T) {
		l, buf := newTestLogger(t)
		l.WithError(nil).Info("msg")
		assert.NotContains(t, buf.String(), `"error"`)
	})
}

func TestNewLoggerFromCore_Observer(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewLoggerFromCore(core).Named("engine")
	l.Info("dropped")
	l.Warn("dependency cycle", String("stuck", "A"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dependency cycle", entry.Message)
	assert.Equal(t, "engine", entry.LoggerName)
	assert.Equal(t, "A", entry.ContextMap()["stuck"])
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("Error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestLogOperationDuration(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "resolve", time.Now())
	assert.Contains(t, buf.String(), "operation completed")
	assert.Contains(t, buf.String(), `"operation":"resolve"`)
	assert.Contains(t, buf.String(), "duration_ms")

	buf.Reset()
	LogOperationDuration(l, "resolve", time.Now().Add(-2*time.Second))
	assert.Contains(t, buf.String(), "slow operation")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

//Personal.AI order the ending
