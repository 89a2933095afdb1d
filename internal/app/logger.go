package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swingy/server/internal/config"
	"swingy/server/logging"
	loggingSinks "swingy/server/logging/sinks"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// routerConfig maps the operator log settings onto the event router.
func routerConfig(cfg config.LogConfig) logging.Config {
	logConfig := logging.DefaultConfig()
	if len(cfg.Sinks) > 0 {
		logConfig.EnabledSinks = cfg.Sinks
	}
	if severity, err := logging.ParseSeverity(cfg.Level); err == nil {
		logConfig.MinimumSeverity = severity
	}
	logConfig.JSON.FilePath = cfg.JSONPath
	logConfig.Console.UseColor = cfg.Format != "json"
	logConfig.Fields = map[string]any{"service": "swingy"}
	logConfig.SampleEvery = cfg.Sample
	return logConfig
}

// openJSONSink is swapped in tests to observe sink lifetimes.
var openJSONSink = func(path string, flushInterval time.Duration) (logging.Sink, error) {
	return loggingSinks.OpenJSONFile(path, flushInterval)
}

// buildSinks constructs the router sinks named in logConfig. The returned
// sinks are owned by the router once it is created.
func buildSinks(logConfig logging.Config, logger *zap.Logger) (named []logging.NamedSink, err error) {
	defer func() {
		if err != nil {
			closeSinks(named)
			named = nil
		}
	}()
	for _, name := range logConfig.EnabledSinks {
		var sink logging.Sink
		switch name {
		case logging.SinkConsole:
			sink = loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)
		case logging.SinkJSON:
			if logConfig.JSON.FilePath == "" {
				return named, fmt.Errorf("json sink requires LOG_JSON_PATH")
			}
			jsonSink, openErr := openJSONSink(logConfig.JSON.FilePath, logConfig.JSON.FlushInterval)
			if openErr != nil {
				return named, fmt.Errorf("open json sink: %w", openErr)
			}
			sink = jsonSink
		case logging.SinkMemory:
			sink = loggingSinks.NewMemorySink()
		case logging.SinkZap:
			sink = loggingSinks.NewZap(logger.Named("events"))
		default:
			return named, fmt.Errorf("unknown log sink %q", name)
		}
		named = append(named, logging.NamedSink{Name: name, Sink: sink})
	}
	return named, nil
}

func closeSinks(named []logging.NamedSink) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, n := range named {
		_ = n.Sink.Close(ctx)
	}
}
