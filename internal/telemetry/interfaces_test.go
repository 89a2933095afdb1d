package telemetry

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"swingy/server/logging"
)

func TestWrapZap(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapZap(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		logger := WrapZap(zap.New(core).Sugar())
		logger.Printf("hello %s", "world")
		entries := logs.AllUntimed()
		if len(entries) != 1 || entries[0].Message != "hello world" {
			t.Fatalf("unexpected log output: %+v", entries)
		}
	})
}

func TestNamed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Named(WrapZap(zap.New(core).Sugar()), "hub").Printf("tick %d", 3)
	entries := logs.AllUntimed()
	if len(entries) != 1 || entries[0].LoggerName != "hub" || entries[0].Message != "tick 3" {
		t.Fatalf("unexpected zap entry: %+v", entries)
	}

	var got string
	Named(LoggerFunc(func(format string, args ...any) { got = fmt.Sprintf(format, args...) }), "ws").Printf("closed %s", "a")
	if got != "[ws] closed a" {
		t.Fatalf("expected prefixed line, got %q", got)
	}

	Named(nil, "x").Printf("ignored")
	Discard.Printf("ignored")
}

func TestLoggerFunc(t *testing.T) {
	var got string
	logger := LoggerFunc(func(format string, args ...any) { got = format })
	logger.Printf("tick")
	if got != "tick" {
		t.Fatalf("expected func to be called, got %q", got)
	}
	var nilFunc LoggerFunc
	nilFunc.Printf("ignored")
}

func TestWrapMetrics(t *testing.T) {
	metrics := logging.Metrics{}
	adapter := WrapMetrics(&metrics)

	adapter.Add("test_counter", 2)
	adapter.Store("test_counter", 5)
	adapter.Add("test_counter", 3)

	snapshot := metrics.Snapshot()
	if got := snapshot["test_counter"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}

	// Ensure nil metrics do not panic.
	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
}
