package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"swingy/server/internal/net/intake"
	"swingy/server/internal/net/proto"
	"swingy/server/internal/sim"
	"swingy/server/internal/telemetry"
	"swingy/server/logging"
	"swingy/server/logging/lifecycle"
	"swingy/server/logging/network"
	"swingy/server/logging/simulation"
)

const (
	sendDroppedMetricKey      = "hub_send_dropped_total"
	commandsRejectedMetricKey = "hub_commands_rejected_total"
	malformedFramesMetricKey  = "hub_malformed_frames_total"
	sessionsMetricKey         = "hub_sessions"
)

// HubConfig captures the knobs used to construct a Hub.
type HubConfig struct {
	Tuning         sim.Tuning
	Loop           sim.LoopConfig
	WelcomePos     sim.Vec2
	Logger         telemetry.Logger
	Metrics        *logging.Metrics
	Clock          logging.Clock
	Rand           *rand.Rand
	DebugTelemetry bool
}

// DefaultHubConfig returns the live-server defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Tuning:     sim.DefaultTuning(),
		Loop:       sim.DefaultLoopConfig(),
		WelcomePos: sim.V(400, 400),
	}
}

// Hub ties the session registry to the simulation loop and fans each tick's
// output out to every registered sink.
type Hub struct {
	config    HubConfig
	engine    *sim.Loop
	registry  *Registry
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   *logging.Metrics
	clock     logging.Clock
	telemetry *telemetryCounters

	latest atomic.Pointer[sim.Snapshot]
}

// NewHub wires a hub around a fresh simulation. A nil publisher discards
// events.
func NewHub(cfg HubConfig, publisher logging.Publisher) (*Hub, error) {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &logging.Metrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}

	hub := &Hub{
		config:    cfg,
		registry:  NewRegistry(cfg.Rand),
		publisher: publisher,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		telemetry: newTelemetryCounters(cfg.DebugTelemetry, cfg.Logger),
	}

	engine, err := sim.NewEngine(
		cfg.Tuning,
		sim.WithDeps(sim.Deps{
			Logger:    cfg.Logger,
			Metrics:   telemetry.WrapMetrics(cfg.Metrics),
			Clock:     cfg.Clock,
			Publisher: publisher,
		}),
		sim.WithLoopConfig(cfg.Loop),
		sim.WithLoopHooks(sim.LoopHooks{
			AfterStep:      hub.afterStep,
			OnQueueWarning: hub.queueWarning,
		}),
	)
	if err != nil {
		return nil, err
	}
	hub.engine = engine
	return hub, nil
}

// Register assigns an identity to sink and sends it the welcome payload.
func (h *Hub) Register(sink Sink, remote string) sim.SessionID {
	var sendErr error
	id := h.registry.Register(sink, remote, h.clock.Now(), func(id sim.SessionID) {
		data, err := proto.Encode(sink.Encoding(), proto.NewWelcome(id, h.config.WelcomePos))
		if err != nil {
			h.logger.Printf("failed to encode welcome for %d: %v", id, err)
			return
		}
		sendErr = sink.Send(data)
	})
	if sendErr != nil {
		h.sendDropped(id, "welcome", sendErr)
	}
	sessions := h.registry.Len()
	h.metrics.Store(sessionsMetricKey, uint64(sessions))

	lifecycle.SessionRegistered(
		context.Background(),
		h.publisher,
		h.engine.Tick(),
		sessionRef(id),
		lifecycle.SessionRegisteredPayload{Sessions: sessions, Encoding: string(sink.Encoding()), Remote: remote},
		nil,
	)
	return id
}

// Unregister drops the session and schedules its player's removal for the
// next tick. Unknown ids are ignored.
func (h *Hub) Unregister(id sim.SessionID) {
	if !h.registry.Unregister(id) {
		return
	}
	h.metrics.Store(sessionsMetricKey, uint64(h.registry.Len()))
	h.engine.EnqueueDisconnect(id, h.clock.Now())
}

// HandleClientMessage stages a decoded frame from id.
func (h *Hub) HandleClientMessage(id sim.SessionID, msg proto.ClientMessage) (sim.Command, bool, string) {
	cmd, ok, reason := intake.StageClientCommand(intake.CommandContext{
		Engine:     h.engine,
		HasSession: h.registry.Has,
		Tick:       h.engine.Tick,
		Now:        h.clock.Now,
	}, id, msg)
	if !ok {
		h.metrics.Add(commandsRejectedMetricKey, 1)
		network.CommandRejected(
			context.Background(),
			h.publisher,
			h.engine.Tick(),
			sessionRef(id),
			network.CommandRejectedPayload{Command: msg.Kind(), Reason: reason},
			nil,
		)
	}
	return cmd, ok, reason
}

// HandleMalformedFrame records an inbound frame that failed to decode. The
// session stays open.
func (h *Hub) HandleMalformedFrame(id sim.SessionID, size int, err error) {
	h.metrics.Add(malformedFramesMetricKey, 1)
	message := ""
	if err != nil {
		message = err.Error()
	}
	network.MalformedFrame(
		context.Background(),
		h.publisher,
		h.engine.Tick(),
		sessionRef(id),
		network.MalformedFramePayload{Bytes: size, Error: message},
		nil,
	)
}

// RunSimulation drives the tick loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.engine.Run(stop)
}

// Advance runs one tick at now and performs the same fan-out as the live
// loop.
func (h *Hub) Advance(now time.Time) sim.LoopStepResult {
	result := h.engine.Advance(sim.LoopTickContext{Tick: h.engine.Tick() + 1, Now: now})
	h.afterStep(result)
	return result
}

func (h *Hub) afterStep(result sim.LoopStepResult) {
	h.telemetry.RecordTickDuration(result.Duration)
	if result.Budget > 0 && result.Duration > result.Budget {
		streak := h.telemetry.RecordTickBudgetOverrun(result.Duration, result.Budget)
		simulation.TickBudgetOverrun(
			context.Background(),
			h.publisher,
			result.Tick,
			simulation.TickBudgetOverrunPayload{
				DurationMillis: result.Duration.Milliseconds(),
				BudgetMillis:   result.Budget.Milliseconds(),
				Ratio:          float64(result.Duration) / float64(result.Budget),
				Streak:         streak,
			},
			nil,
		)
	} else {
		h.telemetry.ResetTickBudgetOverrunStreak()
	}

	for _, removal := range result.Removed {
		h.Broadcast(proto.Death{Death: uint64(removal.ID)}, "death", 0)
	}

	snap := result.Snapshot
	h.latest.Store(&snap)
	entities := len(snap.Players) + 1
	for _, group := range snap.Bullets {
		entities += len(group.Bullets)
	}
	h.Broadcast(proto.SnapshotFromSim(snap), "snapshot", entities)
}

// Broadcast encodes payload once per encoding in use and offers it to every
// sink. A failing sink, or every sink of an encoding that cannot represent
// payload, is skipped. It returns the number of sinks that
// accepted the frame.
func (h *Hub) Broadcast(payload any, kind string, entities int) int {
	sinks := h.registry.sinks()
	if len(sinks) == 0 {
		return 0
	}
	encoded := make(map[proto.Encoding][]byte, 2)
	failed := make(map[proto.Encoding]error)
	delivered, bytes := 0, 0
	for _, target := range sinks {
		enc := target.sink.Encoding()
		if err, bad := failed[enc]; bad {
			h.sendDropped(target.id, kind, err)
			continue
		}
		data, ok := encoded[enc]
		if !ok {
			var err error
			data, err = proto.Encode(enc, payload)
			if err != nil {
				h.logger.Printf("failed to encode %s as %s: %v", kind, enc, err)
				failed[enc] = err
				h.sendDropped(target.id, kind, err)
				continue
			}
			encoded[enc] = data
		}
		if err := target.sink.Send(data); err != nil {
			h.sendDropped(target.id, kind, err)
			continue
		}
		delivered++
		bytes += len(data)
	}
	h.telemetry.RecordBroadcast(bytes, delivered, entities)
	return delivered
}

func (h *Hub) sendDropped(id sim.SessionID, kind string, err error) {
	h.metrics.Add(sendDroppedMetricKey, 1)
	h.telemetry.RecordSendDropped()
	reason := "error"
	switch {
	case errors.Is(err, ErrSinkFull):
		reason = "full"
	case errors.Is(err, ErrSinkClosed):
		reason = "closed"
	}
	network.SendDropped(
		context.Background(),
		h.publisher,
		h.engine.Tick(),
		sessionRef(id),
		network.SendDroppedPayload{Kind: kind, Reason: reason},
		nil,
	)
}

func (h *Hub) queueWarning(length int) {
	h.logger.Printf("[backpressure] command queue length=%d", length)
}

// LatestSnapshot returns the snapshot produced by the most recent tick.
func (h *Hub) LatestSnapshot() (sim.Snapshot, bool) {
	snap := h.latest.Load()
	if snap == nil {
		return sim.Snapshot{}, false
	}
	return *snap, true
}

// Sessions reports the number of live sessions.
func (h *Hub) Sessions() int {
	return h.registry.Len()
}

// HasSession reports whether id is registered.
func (h *Hub) HasSession(id sim.SessionID) bool {
	return h.registry.Has(id)
}

// Tick reports the last completed simulation tick.
func (h *Hub) Tick() uint64 {
	return h.engine.Tick()
}

// TickInterval reports the loop cadence.
func (h *Hub) TickInterval() time.Duration {
	return h.engine.Config().TickInterval
}

// TelemetrySnapshot exposes broadcast and tick-budget counters.
func (h *Hub) TelemetrySnapshot() telemetrySnapshot {
	return h.telemetry.Snapshot()
}

// Diagnostics is the payload served by the diagnostics endpoint.
type Diagnostics struct {
	Tick            uint64            `json:"tick"`
	TickIntervalMs  int64             `json:"tickIntervalMillis"`
	PendingCommands int               `json:"pendingCommands"`
	CommandCapacity int               `json:"commandCapacity"`
	Players         int               `json:"players"`
	DemonHealth     uint8             `json:"demonHealth"`
	Sessions        []sessionInfo     `json:"sessions"`
	Telemetry       telemetrySnapshot `json:"telemetry"`
	Metrics         map[string]uint64 `json:"metrics"`
}

// DiagnosticsSnapshot gathers runtime state for operators.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	diag := Diagnostics{
		Tick:            h.engine.Tick(),
		TickIntervalMs:  h.TickInterval().Milliseconds(),
		PendingCommands: h.engine.Pending(),
		CommandCapacity: h.engine.Capacity(),
		Sessions:        h.registry.describe(),
		Telemetry:       h.telemetry.Snapshot(),
		Metrics:         h.metrics.Snapshot(),
	}
	if snap, ok := h.LatestSnapshot(); ok {
		diag.Players = len(snap.Players)
		diag.DemonHealth = snap.Demon.Health
	}
	return diag
}

func sessionKey(id sim.SessionID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func sessionRef(id sim.SessionID) logging.EntityRef {
	return logging.EntityRef{ID: sessionKey(id), Kind: logging.EntityKindSession}
}
