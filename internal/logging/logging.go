// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "alligator-trader", "logs", "alligator.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithPhase adds a lifecycle phase to the logger context.
func WithPhase(logger zerolog.Logger, phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

// LogPhaseChange logs a state machine phase transition.
func LogPhaseChange(logger zerolog.Logger, from, to, cause string) {
	logger.Info().
		Str("event", "phase_change").
		Str("from", from).
		Str("to", to).
		Str("cause", cause).
		Msg("Phase transition")
}

// LogRegimeChange logs an edge-triggered regime flag change.
func LogRegimeChange(logger zerolog.Logger, symbol, regime string) {
	logger.Info().
		Str("event", "regime_change").
		Str("symbol", symbol).
		Str("regime", regime).
		Msg("Regime changed")
}

// LogTrade logs an executed trade.
func LogTrade(logger zerolog.Logger, symbol, side string, volume, entry, stopLoss, takeProfit float64) {
	logger.Info().
		Str("event", "trade").
		Str("symbol", symbol).
		Str("side", side).
		Float64("volume", volume).
		Float64("entry", entry).
		Float64("stop_loss", stopLoss).
		Float64("take_profit", takeProfit).
		Msg("Trade executed")
}

// LogOrderAttempt logs one fill-mode attempt of the order cascade.
func LogOrderAttempt(logger zerolog.Logger, symbol, side, fillMode, reason string, accepted bool) {
	event := logger.Debug().
		Str("event", "order_attempt").
		Str("symbol", symbol).
		Str("side", side).
		Str("fill_mode", fillMode).
		Bool("accepted", accepted)
	if accepted {
		event.Msg("Order accepted")
	} else {
		event.Str("reason", reason).Msg("Order attempt rejected")
	}
}

// LogSkippedTick logs a tick skipped for lack of usable data.
func LogSkippedTick(logger zerolog.Logger, symbol, cause string) {
	logger.Debug().
		Str("event", "tick_skipped").
		Str("symbol", symbol).
		Str("cause", cause).
		Msg("Tick skipped")
}
