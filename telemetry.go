package server

import (
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"swingy/server/internal/telemetry"
)

type telemetryCounters struct {
	bytesSent             atomic.Uint64
	framesSent            atomic.Uint64
	framesDropped         atomic.Uint64
	entitiesSent          atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	debug                 bool
	logger                telemetry.Logger

	budgetMu          deadlock.Mutex
	budgetMillis      int64
	currentStreak     uint64
	maxStreak         uint64
	lastOverrunMillis int64
	overruns          map[string]uint64
}

type tickBudgetSnapshot struct {
	BudgetMillis      int64             `json:"budgetMillis"`
	CurrentStreak     uint64            `json:"currentStreak"`
	MaxStreak         uint64            `json:"maxStreak"`
	LastOverrunMillis int64             `json:"lastOverrunMillis"`
	Overruns          map[string]uint64 `json:"overruns"`
}

type telemetrySnapshot struct {
	BytesSent     uint64             `json:"bytesSent"`
	FramesSent    uint64             `json:"framesSent"`
	FramesDropped uint64             `json:"framesDropped"`
	EntitiesSent  uint64             `json:"entitiesSent"`
	TickDuration  int64              `json:"tickDurationMillis"`
	TickBudget    tickBudgetSnapshot `json:"tickBudget"`
}

func newTelemetryCounters(debug bool, logger telemetry.Logger) *telemetryCounters {
	return &telemetryCounters{
		debug:    debug,
		logger:   logger,
		overruns: make(map[string]uint64),
	}
}

// RecordBroadcast accounts for one fan-out. bytes is the total written across
// all sinks.
func (t *telemetryCounters) RecordBroadcast(bytes, frames, entities int) {
	if bytes < 0 {
		bytes = 0
	}
	if frames < 0 {
		frames = 0
	}
	if entities < 0 {
		entities = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.framesSent.Add(uint64(frames))
	t.entitiesSent.Add(uint64(entities))
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastEntities.Store(uint64(entities))
}

func (t *telemetryCounters) RecordSendDropped() {
	t.framesDropped.Add(1)
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug && t.logger != nil {
		t.logger.Printf(
			"[telemetry] tick=%dms bytes=%d totalBytes=%d entities=%d totalEntities=%d",
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.lastBroadcastEntities.Load(),
			t.entitiesSent.Load(),
		)
	}
}

// RecordTickBudgetOverrun buckets an overrun by its ratio to budget and
// returns the current consecutive-overrun streak.
func (t *telemetryCounters) RecordTickBudgetOverrun(duration, budget time.Duration) uint64 {
	t.budgetMu.Lock()
	defer t.budgetMu.Unlock()
	t.budgetMillis = budget.Milliseconds()
	t.lastOverrunMillis = duration.Milliseconds()
	t.currentStreak++
	if t.currentStreak > t.maxStreak {
		t.maxStreak = t.currentStreak
	}
	t.overruns[overrunBucket(duration, budget)]++
	return t.currentStreak
}

func (t *telemetryCounters) ResetTickBudgetOverrunStreak() {
	t.budgetMu.Lock()
	t.currentStreak = 0
	t.budgetMu.Unlock()
}

func overrunBucket(duration, budget time.Duration) string {
	if budget <= 0 {
		return "over_gt3x"
	}
	ratio := float64(duration) / float64(budget)
	switch {
	case ratio <= 1.5:
		return "over_1_5x"
	case ratio <= 2:
		return "over_2x"
	case ratio <= 3:
		return "over_3x"
	default:
		return "over_gt3x"
	}
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	t.budgetMu.Lock()
	overruns := make(map[string]uint64, len(t.overruns))
	for k, v := range t.overruns {
		overruns[k] = v
	}
	budget := tickBudgetSnapshot{
		BudgetMillis:      t.budgetMillis,
		CurrentStreak:     t.currentStreak,
		MaxStreak:         t.maxStreak,
		LastOverrunMillis: t.lastOverrunMillis,
		Overruns:          overruns,
	}
	t.budgetMu.Unlock()

	return telemetrySnapshot{
		BytesSent:     t.bytesSent.Load(),
		FramesSent:    t.framesSent.Load(),
		FramesDropped: t.framesDropped.Load(),
		EntitiesSent:  t.entitiesSent.Load(),
		TickDuration:  t.tickDurationMillis.Load(),
		TickBudget:    budget,
	}
}
