package taskgraph

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the CLI-facing verbosity knob, mapped onto a zap level.
// It replaces the teacher's hand-rolled Logger/DefaultLogger types
// (iapetus's logging.go) with a thin adapter onto zap, since this
// module standardizes on zap everywhere else (AMBIENT STACK, §Logging).
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel converts a CLI/config string ("debug", "info", "warn",
// "error") into a LogLevel. Unknown values default to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger builds a console-encoded zap.Logger at the given level,
// the way the CLI entrypoint (cmd/taskgraph) wires up observability
// for a run. Library code never calls this; it exists for cmd/ and for
// tests that want readable output instead of a no-op logger.
func NewLogger(level LogLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
