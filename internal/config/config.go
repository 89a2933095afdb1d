// Package config assembles server settings from defaults, an optional .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"swingy/server/internal/sim"
	"swingy/server/logging"
)

// LogConfig selects the zap backend and the event router sinks.
type LogConfig struct {
	Level    string
	Format   string
	Sinks    []string
	JSONPath string
	// Sample keeps one of every N router events per event type.
	Sample map[logging.EventType]uint64
}

// SSHConfig enables the terminal spectator when Addr is set.
type SSHConfig struct {
	Addr        string
	HostKeyPath string
}

// Config is the full server configuration.
type Config struct {
	Addr            string
	StaticDir       string
	TickInterval    time.Duration
	CommandCapacity int
	PerSessionLimit int
	SendQueue       int
	EnablePprof     bool
	DebugTelemetry  bool
	Log             LogConfig
	SSH             SSHConfig
	Tuning          sim.Tuning
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	loop := sim.DefaultLoopConfig()
	return Config{
		Addr:            ":8080",
		TickInterval:    loop.TickInterval,
		CommandCapacity: loop.CommandCapacity,
		PerSessionLimit: loop.PerActorLimit,
		SendQueue:       64,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Sinks:  logging.DefaultConfig().EnabledSinks,
		},
		SSH: SSHConfig{
			HostKeyPath: ".ssh/spectator_ed25519",
		},
		Tuning: sim.DefaultTuning(),
	}
}

// LookupFunc reads one variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv merges .env style files into the process environment. Missing
// files are not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, []error) {
	return Load(os.LookupEnv)
}

// Load applies overrides from lookup on top of Default. Invalid values are
// reported and the default is kept.
func Load(lookup LookupFunc) (Config, []error) {
	cfg := Default()
	if lookup == nil {
		return cfg, nil
	}
	l := loader{lookup: lookup}

	if port, ok := l.get("PORT"); ok {
		cfg.Addr = ":" + port
	}
	l.str("ADDR", &cfg.Addr)
	l.str("STATIC_DIR", &cfg.StaticDir)
	l.millis("TICK_INTERVAL_MS", &cfg.TickInterval)
	l.positive("COMMAND_CAPACITY", &cfg.CommandCapacity)
	l.positive("PER_SESSION_LIMIT", &cfg.PerSessionLimit)
	l.positive("SEND_QUEUE", &cfg.SendQueue)
	l.boolean("ENABLE_PPROF", &cfg.EnablePprof)
	l.boolean("DEBUG_TELEMETRY", &cfg.DebugTelemetry)

	if level, ok := l.get("LOG_LEVEL"); ok {
		if severity, err := logging.ParseSeverity(level); err != nil {
			l.fail("LOG_LEVEL", level, err)
		} else {
			cfg.Log.Level = severity.String()
		}
	}
	if format, ok := l.get("LOG_FORMAT"); ok {
		switch strings.ToLower(format) {
		case "json", "console":
			cfg.Log.Format = strings.ToLower(format)
		default:
			l.fail("LOG_FORMAT", format, errors.New("want json or console"))
		}
	}
	if sinks, ok := l.get("LOG_SINKS"); ok {
		cfg.Log.Sinks = logging.ParseSinks(sinks)
	}
	l.str("LOG_JSON_PATH", &cfg.Log.JSONPath)
	if sample, ok := l.get("LOG_SAMPLE"); ok {
		if rates, err := logging.ParseSampling(sample); err != nil {
			l.fail("LOG_SAMPLE", sample, err)
		} else {
			cfg.Log.Sample = rates
		}
	}

	l.str("SSH_ADDR", &cfg.SSH.Addr)
	l.str("SSH_HOST_KEY", &cfg.SSH.HostKeyPath)

	l.millis("SHOT_COOLDOWN_MS", &cfg.Tuning.ShotCooldown)
	l.millis("SHIELD_COOLDOWN_MS", &cfg.Tuning.ShieldCooldown)
	l.millis("BULLET_LIFETIME_MS", &cfg.Tuning.BulletLifetime)
	l.count("VOLLEY_EVERY", &cfg.Tuning.VolleyEvery)
	l.count("REGEN_EVERY", &cfg.Tuning.RegenEvery)
	var volleyCount int
	if l.positive("VOLLEY_COUNT", &volleyCount) {
		cfg.Tuning.VolleyCount = volleyCount
	}
	cfg.Tuning = cfg.Tuning.Normalized()

	return cfg, l.errs
}

// LoopConfig derives the simulation loop sizing.
func (c Config) LoopConfig() sim.LoopConfig {
	loop := sim.DefaultLoopConfig()
	loop.TickInterval = c.TickInterval
	loop.CommandCapacity = c.CommandCapacity
	loop.PerActorLimit = c.PerSessionLimit
	return loop
}

type loader struct {
	lookup LookupFunc
	errs   []error
}

func (l *loader) get(key string) (string, bool) {
	raw, ok := l.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (l *loader) fail(key, raw string, err error) {
	l.errs = append(l.errs, fmt.Errorf("invalid %s=%q: %w", key, raw, err))
}

func (l *loader) str(key string, dst *string) {
	if raw, ok := l.get(key); ok {
		*dst = raw
	}
}

func (l *loader) boolean(key string, dst *bool) {
	raw, ok := l.get(key)
	if !ok {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		l.fail(key, raw, err)
		return
	}
	*dst = value
}

func (l *loader) positive(key string, dst *int) bool {
	raw, ok := l.get(key)
	if !ok {
		return false
	}
	value, err := strconv.Atoi(raw)
	if err == nil && value <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		l.fail(key, raw, err)
		return false
	}
	*dst = value
	return true
}

func (l *loader) count(key string, dst *uint64) {
	raw, ok := l.get(key)
	if !ok {
		return
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err == nil && value == 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		l.fail(key, raw, err)
		return
	}
	*dst = value
}

func (l *loader) millis(key string, dst *time.Duration) {
	raw, ok := l.get(key)
	if !ok {
		return
	}
	value, err := strconv.Atoi(raw)
	if err == nil && value <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		l.fail(key, raw, err)
		return
	}
	*dst = time.Duration(value) * time.Millisecond
}
