package sim

import (
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"

	"swingy/server/internal/telemetry"
	"swingy/server/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	// DefaultTickInterval is the fixed simulation cadence.
	DefaultTickInterval = 16 * time.Millisecond

	ticksMetricKey       = "sim_ticks_total"
	applyErrorsMetricKey = "sim_apply_errors_total"
	disconnectsMetricKey = "sim_disconnects_staged_total"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickInterval    time.Duration
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// DefaultLoopConfig returns the sizing used by the live server.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickInterval:    DefaultTickInterval,
		CommandCapacity: 1024,
		PerActorLimit:   32,
		WarningStep:     256,
	}
}

// LoopTickContext describes the tick about to run.
type LoopTickContext struct {
	Tick uint64
	Now  time.Time
}

// LoopStepResult reports what a single Advance produced.
type LoopStepResult struct {
	Tick     uint64
	Snapshot Snapshot
	Removed  []Removal
	Duration time.Duration
	Budget   time.Duration
}

// LoopHooks are optional callbacks invoked from the loop goroutine.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnQueueWarning func(int)
	OnCommandDrop  func(string, Command)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
// Enqueue and EnqueueDisconnect are safe from any goroutine; Advance and Run
// must only be driven by one.
type Loop struct {
	core    EngineCore
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	tick    atomic.Uint64

	queueMu       deadlock.Mutex
	disconnects   []Command
	perActorCount map[SessionID]int
	dropCounts    map[SessionID]uint64
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	deps := core.Deps()
	loop := &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		perActorCount: make(map[SessionID]int),
		dropCounts:    make(map[SessionID]uint64),
	}
	loop.tick.Store(core.Tick())
	return loop
}

// Deps returns the injected dependencies for the underlying engine.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

// Config returns the loop sizing in effect.
func (l *Loop) Config() LoopConfig {
	if l == nil {
		return LoopConfig{}
	}
	return l.config
}

// Tick reports the last completed tick. Safe from any goroutine.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// Capacity reports the size of the bounded command ring.
func (l *Loop) Capacity() int {
	if l == nil {
		return 0
	}
	return l.buffer.Capacity()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.Type == CommandDisconnect {
		l.EnqueueDisconnect(cmd.ActorID, cmd.IssuedAt)
		return true, ""
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
			if l.config.PerActorLimit > 0 {
				l.perActorCount[cmd.ActorID]--
			}
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// EnqueueDisconnect stages removal of a session's player. Disconnects bypass
// the bounded ring and are never dropped; they apply after the tick's other
// commands.
func (l *Loop) EnqueueDisconnect(id SessionID, at time.Time) {
	if l == nil {
		return
	}
	l.queueMu.Lock()
	l.disconnects = append(l.disconnects, Command{
		OriginTick: l.tick.Load(),
		ActorID:    id,
		Type:       CommandDisconnect,
		IssuedAt:   at,
	})
	delete(l.dropCounts, id)
	l.queueMu.Unlock()
	if l.metrics != nil {
		l.metrics.Add(disconnectsMetricKey, 1)
	}
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands, disconnects := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	l.apply(ctx.Now, commands)
	l.apply(ctx.Now, disconnects)
	l.core.Step(ctx.Now)

	tick := l.core.Tick()
	l.tick.Store(tick)
	if l.metrics != nil {
		l.metrics.Add(ticksMetricKey, 1)
	}
	return LoopStepResult{
		Tick:     tick,
		Snapshot: l.core.Snapshot(),
		Removed:  l.core.DrainRemovals(),
	}
}

// Run drives the fixed-timestep loop until the stop channel closes. Each
// tick is stamped one interval after the previous tick's start, so a slow
// AfterStep does not push later ticks back. When the clock runs more than an
// interval past the schedule the schedule restarts from the clock.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	interval := l.config.TickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	scheduled := clock.Now()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			scheduled = scheduled.Add(interval)
			if now := clock.Now(); now.Sub(scheduled) > interval {
				scheduled = now
			}

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.Tick() + 1, Now: scheduled})
			result.Duration = clock.Now().Sub(start)
			result.Budget = interval

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) apply(now time.Time, cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	if err := l.core.Apply(now, cmds); err != nil {
		if l.metrics != nil {
			l.metrics.Add(applyErrorsMetricKey, 1)
		}
		if l.logger != nil {
			l.logger.Printf("[sim] apply failed: %v", err)
		}
	}
}

func (l *Loop) drainCommands() ([]Command, []Command) {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[SessionID]int)
	}
	disconnects := l.disconnects
	l.disconnects = nil
	return commands, disconnects
}

func (l *Loop) incrementDropLocked(actorID SessionID) uint64 {
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count > 0 && count&(count-1) == 0 && l.logger != nil {
		l.logger.Printf(
			"[backpressure] dropping command actor=%d type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			l.config.PerActorLimit,
		)
	}
}
