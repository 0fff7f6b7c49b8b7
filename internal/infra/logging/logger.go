package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// loggerAttrKey is the attribute carrying the logger name. ConsoleHandler uses it
// to apply the per-package levels configured in LoggerConfig.Filter.
const loggerAttrKey = "logger"

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

//nolint:gochecknoglobals
var logLevelStrToLevel = map[string]Level{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// AppName is the application identifier added to all log entries
	AppName string

	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" default:"stderr"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" default:"info"`

	// Filter specifies package-level logging overrides ("pkg:level,pkg:level")
	Filter string `env:"FILTER" default:""`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" default:"false"`

	// Source adds the calling file and line to JSON records
	Source bool `env:"SOURCE" default:"false"`

	OutputHandle io.Writer
}

// loggerState is the resolved configuration every GetLogger call builds from.
type loggerState struct {
	cfg       LoggerConfig
	level     Level
	pkgLevels map[string]Level
}

//nolint:gochecknoglobals
var (
	Group      = slog.Group
	GroupValue = slog.GroupValue

	state     loggerState
	stateLock sync.RWMutex
)

// Configure sets up global logging configuration for the application.
// Loggers obtained before the call keep discarding their output.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) {
	resolved := configure(cfg, appName)

	GetLogger("infra.logging").With(Group("config",
		"appName", resolved.AppName,
		"output", resolved.Output,
		"level", resolved.Level,
		"filter", resolved.Filter,
		"json", resolved.JSON,
	)).DebugContext(ctx, "logging configured")
}

func configure(cfg LoggerConfig, appName string) LoggerConfig {
	cfg.AppName = appName

	if cfg.OutputHandle == nil {
		cfg.OutputHandle = openOutput(cfg.Output)
	}

	next := loggerState{
		cfg:       cfg,
		level:     parseLogLevel(cfg.Level, LevelInfo),
		pkgLevels: parsePkgLevels(cfg.Filter),
	}

	stateLock.Lock()
	state = next
	stateLock.Unlock()

	slog.SetLogLoggerLevel(next.level)

	return cfg
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "discard":
		return io.Discard
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(fmt.Errorf("failed to open log file: %w", err))
	}

	return file
}

// GetLogLogger creates a standard library *log.Logger that writes through a slog.Logger.
// http.Server uses it for connection level errors.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	handler := logger.With("stdlog", true).Handler()

	return slog.NewLogLogger(handler, level)
}

// GetLogger returns a logger named after the calling component, e.g.
// "svc.ledgersvc.ledger_service". The name selects the per-package level
// from LoggerConfig.Filter.
func GetLogger(name string) Logger {
	stateLock.RLock()
	current := state
	stateLock.RUnlock()

	if current.cfg.OutputHandle == nil || current.cfg.OutputHandle == io.Discard {
		return NewNopLogger()
	}

	logger := slog.New(NewTracingHandler(current.handler()))

	if current.cfg.AppName != "" {
		logger = logger.With("app", current.cfg.AppName)
	}

	return logger.With(loggerAttrKey, name)
}

func (s loggerState) handler() slog.Handler {
	if s.cfg.JSON {
		//nolint:exhaustruct
		return slog.NewJSONHandler(s.cfg.OutputHandle, &slog.HandlerOptions{
			AddSource: s.cfg.Source,
			Level:     s.level,
		})
	}

	//nolint:exhaustruct
	return &ConsoleHandler{
		Output:    s.cfg.OutputHandle,
		Level:     s.level,
		PkgLevels: s.pkgLevels,
	}
}

func parsePkgLevels(filter string) map[string]Level {
	levels := make(map[string]Level)

	for _, pkgLevel := range strings.Split(filter, ",") {
		pkg, level, ok := strings.Cut(strings.TrimSpace(pkgLevel), ":")
		if !ok {
			continue
		}

		levels[pkg] = parseLogLevel(level, LevelDebug)
	}

	return levels
}

func parseLogLevel(levelStr string, fallback Level) Level {
	levelStr = strings.TrimSpace(levelStr)
	levelStr = strings.ToLower(levelStr)

	level, ok := logLevelStrToLevel[levelStr]
	if !ok {
		return fallback
	}

	return level
}
