package logging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/RyanBlaney/sonido-coach/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*logging.ZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewZapLogger(zap.New(core)), logs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logging.Level{
		"debug":   logging.DebugLevel,
		"INFO":    logging.InfoLevel,
		" warn ":  logging.WarnLevel,
		"warning": logging.WarnLevel,
		"error":   logging.ErrorLevel,
		"fatal":   logging.FatalLevel,
		"bogus":   logging.InfoLevel,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZapLogger_FieldsAreMerged(t *testing.T) {
	logger, logs := newObserved()

	child := logger.WithFields(logging.Fields{"component": "test", "a": 1})
	child.Info("hello", logging.Fields{"a": 2, "b": "x"})

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	ctx := logs.All()[0].ContextMap()
	if ctx["component"] != "test" {
		t.Fatalf("expected component field, got %v", ctx)
	}
	if ctx["a"] != int64(2) {
		t.Fatalf("expected call-site field to win, got %v", ctx["a"])
	}
	if ctx["b"] != "x" {
		t.Fatalf("expected b=x, got %v", ctx["b"])
	}
}

func TestZapLogger_ErrorCarriesError(t *testing.T) {
	logger, logs := newObserved()

	logger.Error(errors.New("boom"), "failed")

	entries := logs.FilterMessage("failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %v", entries[0].Level)
	}
	if entries[0].ContextMap()["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entries[0].ContextMap())
	}
}

func TestZapLogger_SetLevelFilters(t *testing.T) {
	logger, logs := newObserved()
	child := logger.WithFields(logging.Fields{"component": "child"})

	logger.SetLevel(logging.WarnLevel)
	child.Debug("dropped")
	child.Info("dropped")
	child.Warn("kept")

	if logs.Len() != 1 {
		t.Fatalf("expected only the warning, got %d entries", logs.Len())
	}
	if logs.All()[0].Message != "kept" {
		t.Fatalf("unexpected message %q", logs.All()[0].Message)
	}
}

func TestZapLogger_WithContext(t *testing.T) {
	logger, logs := newObserved()

	ctx := logging.ContextWithFields(context.Background(), logging.Fields{"session": "s1"})
	ctx = logging.ContextWithFields(ctx, logging.Fields{"song": "mary"})
	logger.WithContext(ctx).Info("ctx")

	fields := logs.All()[0].ContextMap()
	if fields["session"] != "s1" || fields["song"] != "mary" {
		t.Fatalf("expected context fields, got %v", fields)
	}
}

func TestSetGlobalLogger_NilUsesNoOp(t *testing.T) {
	previous := logging.GetGlobalLogger()
	t.Cleanup(func() { logging.SetGlobalLogger(previous) })

	logging.SetGlobalLogger(nil)
	if _, ok := logging.GetGlobalLogger().(*logging.NoOpLogger); !ok {
		t.Fatalf("expected NoOpLogger, got %T", logging.GetGlobalLogger())
	}
	logging.Info("nothing happens")
}
