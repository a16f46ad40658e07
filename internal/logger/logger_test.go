package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevels(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name          string
		log           func(l *ZapLogger, msg string)
		expectedLevel zapcore.Level
	}{
		{name: "Debug", log: func(l *ZapLogger, msg string) { l.Debug(msg) }, expectedLevel: zapcore.DebugLevel},
		{name: "Info", log: func(l *ZapLogger, msg string) { l.Info(msg) }, expectedLevel: zapcore.InfoLevel},
		{name: "Warn", log: func(l *ZapLogger, msg string) { l.Warn(msg) }, expectedLevel: zapcore.WarnLevel},
		{name: "Error", log: func(l *ZapLogger, msg string) { l.Error(msg) }, expectedLevel: zapcore.ErrorLevel},
		{name: "DebugWithContext", log: func(l *ZapLogger, msg string) { l.DebugWithContext(ctx, msg) }, expectedLevel: zapcore.DebugLevel},
		{name: "InfoWithContext", log: func(l *ZapLogger, msg string) { l.InfoWithContext(ctx, msg) }, expectedLevel: zapcore.InfoLevel},
		{name: "WarnWithContext", log: func(l *ZapLogger, msg string) { l.WarnWithContext(ctx, msg) }, expectedLevel: zapcore.WarnLevel},
		{name: "ErrorWithContext", log: func(l *ZapLogger, msg string) { l.ErrorWithContext(ctx, msg) }, expectedLevel: zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			observerLogger, logs := observer.New(zap.DebugLevel)
			dut := &ZapLogger{zap.New(observerLogger)}
			const testMessage = "ABC"
			tc.log(dut, testMessage)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			require.Equal(t, testMessage, entry.Message)
			require.Equal(t, tc.expectedLevel, entry.Level)
			require.Empty(t, entry.ContextMap())
		})
	}
}

func TestWith(t *testing.T) {
	observerLogger, logs := observer.New(zap.DebugLevel)
	parent := &ZapLogger{zap.New(observerLogger)}
	child := parent.With(zap.Int("worker", 3))

	child.Info("hello")
	parent.Info("plain")

	require.Equal(t, 2, logs.Len())
	require.Equal(t, map[string]interface{}{"worker": int64(3)}, logs.All()[0].ContextMap())
	require.Empty(t, logs.All()[1].ContextMap())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		for _, level := range []string{"debug", "info", "warn", "error", "none"} {
			l, err := NewLogger(format, level)
			require.NoError(t, err, "%s/%s", format, level)
			require.NotNil(t, l)
		}
	}

	_, err := NewLogger("json", "loud")
	require.Error(t, err)
	_, err = NewLogger("xml", "info")
	require.Error(t, err)

	require.Panics(t, func() { MustNewLogger("json", "loud") })
	require.NotPanics(t, func() { NewNoopLogger().Info("dropped") })
}
