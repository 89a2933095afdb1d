package server

import (
	"fmt"
	"testing"
	"time"

	"swingy/server/internal/telemetry"
)

func TestTelemetryTickBudgetOverrunMetrics(t *testing.T) {
	counters := newTelemetryCounters(false, nil)
	budget := 16 * time.Millisecond

	if streak := counters.RecordTickBudgetOverrun(budget+budget/2, budget); streak != 1 {
		t.Fatalf("expected first streak to be 1, got %d", streak)
	}
	overrunDuration := 4 * budget
	if streak := counters.RecordTickBudgetOverrun(overrunDuration, budget); streak != 2 {
		t.Fatalf("expected second streak to be 2, got %d", streak)
	}

	tickBudget := counters.Snapshot().TickBudget
	if tickBudget.BudgetMillis != budget.Milliseconds() {
		t.Fatalf("unexpected budget millis: got %d want %d", tickBudget.BudgetMillis, budget.Milliseconds())
	}
	if tickBudget.CurrentStreak != 2 || tickBudget.MaxStreak != 2 {
		t.Fatalf("expected streak 2/2, got %d/%d", tickBudget.CurrentStreak, tickBudget.MaxStreak)
	}
	if tickBudget.LastOverrunMillis != overrunDuration.Milliseconds() {
		t.Fatalf("expected last overrun millis %d, got %d", overrunDuration.Milliseconds(), tickBudget.LastOverrunMillis)
	}
	if count := tickBudget.Overruns["over_1_5x"]; count != 1 {
		t.Fatalf("expected over_1_5x bucket to be 1, got %d", count)
	}
	if count := tickBudget.Overruns["over_gt3x"]; count != 1 {
		t.Fatalf("expected over_gt3x bucket to be 1, got %d", count)
	}

	counters.ResetTickBudgetOverrunStreak()
	tickBudget = counters.Snapshot().TickBudget
	if tickBudget.CurrentStreak != 0 {
		t.Fatalf("expected current streak to reset to 0, got %d", tickBudget.CurrentStreak)
	}
	if tickBudget.MaxStreak != 2 {
		t.Fatalf("expected max streak to remain 2, got %d", tickBudget.MaxStreak)
	}
}

func TestTelemetryBroadcastTotals(t *testing.T) {
	var lines []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})
	counters := newTelemetryCounters(true, logger)
	counters.RecordBroadcast(100, 2, 5)
	counters.RecordBroadcast(50, 1, -1)
	counters.RecordSendDropped()
	counters.RecordTickDuration(3 * time.Millisecond)

	snap := counters.Snapshot()
	if snap.BytesSent != 150 || snap.FramesSent != 3 || snap.EntitiesSent != 5 {
		t.Fatalf("unexpected totals %+v", snap)
	}
	if snap.FramesDropped != 1 {
		t.Fatalf("expected one dropped frame, got %d", snap.FramesDropped)
	}
	if snap.TickDuration != 3 {
		t.Fatalf("expected tick duration 3ms, got %d", snap.TickDuration)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one debug telemetry line, got %v", lines)
	}
}
