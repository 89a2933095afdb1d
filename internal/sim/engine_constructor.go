package sim

import "errors"

var (
	// ErrMissingEngineCore indicates WithCore supplied a nil engine core.
	ErrMissingEngineCore = errors.New("sim: engine core is nil")
	// ErrInvalidTickInterval indicates a negative tick interval.
	ErrInvalidTickInterval = errors.New("sim: tick interval must not be negative")
)

// EngineOption configures NewEngine behaviour.
//
// Options are applied in order; later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	deps       Deps
	loopConfig LoopConfig
	loopHooks  LoopHooks
	core       EngineCore
	coreSet    bool
}

// WithDeps injects shared infrastructure dependencies used by the world and
// loop orchestration.
func WithDeps(deps Deps) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.deps = deps
	})
}

// WithLoopConfig overrides the default command queue and tick loop sizing.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies custom loop callbacks.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = hooks
	})
}

// WithCore replaces the World with a caller-provided engine. Tuning and
// deps are ignored when set.
func WithCore(core EngineCore) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.core = core
		cfg.coreSet = true
	})
}

// NewEngine constructs a World from tuning and wraps it in a Loop configured
// by the supplied options.
func NewEngine(tuning Tuning, opts ...EngineOption) (*Loop, error) {
	cfg := engineConfig{loopConfig: DefaultLoopConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	if cfg.loopConfig.TickInterval < 0 {
		return nil, ErrInvalidTickInterval
	}

	core := cfg.core
	if cfg.coreSet {
		if core == nil {
			return nil, ErrMissingEngineCore
		}
	} else {
		core = NewWorld(tuning, cfg.deps)
	}

	loop := NewLoop(core, cfg.loopConfig, cfg.loopHooks)
	if loop == nil {
		return nil, ErrMissingEngineCore
	}
	return loop, nil
}
