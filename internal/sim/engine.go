package sim

import "time"

// Engine defines the minimal surface area exposed to non-simulation callers.
type Engine interface {
	Apply(time.Time, []Command) error
	Step(time.Time)
	Snapshot() Snapshot
	DrainRemovals() []Removal
	Tick() uint64
}

// EngineCore is an Engine that also exposes its injected dependencies.
type EngineCore interface {
	Engine
	Deps() Deps
}

var _ EngineCore = (*World)(nil)
