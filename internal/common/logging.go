// Package common provides shared utilities for Tally
package common

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// Logger wraps log.Logger to provide a consistent interface
type Logger struct {
	log.Logger
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLogger creates a console logger with the specified level
func NewLogger(level string) *Logger {
	return &Logger{Logger: log.Logger{
		Level:      parseLevel(level),
		TimeFormat: time.RFC3339,
		Writer: &log.ConsoleWriter{
			Writer:      os.Stderr,
			ColorOutput: true,
		},
	}}
}

// NewLoggerWithOutput creates a JSON logger writing to a specific output
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	return &Logger{Logger: log.Logger{
		Level:      parseLevel(level),
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: w},
	}}
}

// NewLoggerFromConfig builds a logger from the [logging] config section.
// Outputs may contain "console" and/or "file"; level "disabled" discards everything.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	if strings.EqualFold(cfg.Level, "disabled") {
		return NewSilentLogger()
	}

	var writers log.MultiEntryWriter
	for _, out := range cfg.Outputs {
		switch out {
		case "console":
			if cfg.Format == "json" {
				writers = append(writers, &log.IOWriter{Writer: os.Stderr})
			} else {
				writers = append(writers, &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: true})
			}
		case "file":
			if cfg.FilePath == "" {
				continue
			}
			writers = append(writers, &log.FileWriter{
				Filename:     cfg.FilePath,
				MaxSize:      int64(cfg.MaxSizeMB) * 1024 * 1024,
				MaxBackups:   cfg.MaxBackups,
				EnsureFolder: true,
				LocalTime:    true,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, &log.ConsoleWriter{Writer: os.Stderr})
	}

	return &Logger{Logger: log.Logger{
		Level:      parseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Writer:     &writers,
	}}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger() *Logger {
	return NewLogger("info")
}

// NewSilentLogger creates a logger that discards all output
func NewSilentLogger() *Logger {
	return &Logger{Logger: log.Logger{
		Level:  log.ErrorLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}}
}
