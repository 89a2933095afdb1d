package logging

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sink names accepted in Config.EnabledSinks.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkMemory  = "memory"
	SinkZap     = "zap"
)

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
	// SampleEvery keeps one of every N events of a type. Zero or one keeps all.
	SampleEvery map[EventType]uint64
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkZap},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

// ParseSinks splits a comma separated sink list, dropping blanks and duplicates.
func ParseSinks(list string) []string {
	var sinks []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sinks = append(sinks, name)
	}
	return sinks
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

func (c Config) CloneSampling() map[EventType]uint64 {
	if len(c.SampleEvery) == 0 {
		return nil
	}
	cloned := make(map[EventType]uint64, len(c.SampleEvery))
	for k, v := range c.SampleEvery {
		cloned[k] = v
	}
	return cloned
}

// ParseSampling reads "type=N" pairs separated by commas, for example
// "combat.damage=10,lifecycle.player_joined=1".
func ParseSampling(list string) (map[EventType]uint64, error) {
	rates := make(map[EventType]uint64)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("sampling entry %q must be type=N", part)
		}
		every, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil || every == 0 {
			return nil, fmt.Errorf("sampling rate for %s must be a positive integer", name)
		}
		rates[EventType(strings.TrimSpace(name))] = every
	}
	return rates, nil
}
