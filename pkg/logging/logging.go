// Package logging provides the core's structured logging surface,
// grounded on the teacher repo's pkg/reporting.Logger but backed
// directly by zerolog rather than a second abstraction layer.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level names a logging verbosity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format names a logging output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures a Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger is a structured logger wrapping zerolog.
type Logger struct {
	zl zerolog.Logger
}

// New creates a Logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var output io.Writer = cfg.Output
	if cfg.Format == FormatText {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).With().Timestamp().Logger()
	switch cfg.Level {
	case LevelDebug:
		zl = zl.Level(zerolog.DebugLevel)
	case LevelWarn:
		zl = zl.Level(zerolog.WarnLevel)
	case LevelError:
		zl = zl.Level(zerolog.ErrorLevel)
	default:
		zl = zl.Level(zerolog.InfoLevel)
	}
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards every record.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) event(e *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

// Debug logs msg at debug level with alternating key/value fields.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.event(l.zl.Debug(), msg, fields) }

// Info logs msg at info level with alternating key/value fields.
func (l *Logger) Info(msg string, fields ...interface{}) { l.event(l.zl.Info(), msg, fields) }

// Warn logs msg at warn level with alternating key/value fields.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.event(l.zl.Warn(), msg, fields) }

// Error logs msg at error level with alternating key/value fields.
func (l *Logger) Error(msg string, fields ...interface{}) { l.event(l.zl.Error(), msg, fields) }

// With returns a child Logger with an additional field attached to
// every subsequent record.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}
