// Package logger wraps zerolog behind typed fields so call sites stay
// uniform across the codebase.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(l.zl.Error(), msg, fields) }

func (l *Logger) log(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

// Field adds one typed key/value to an event.
type Field interface {
	AddTo(event *zerolog.Event)
}

type stringField struct {
	key, value string
}

func (f stringField) AddTo(event *zerolog.Event) { event.Str(f.key, f.value) }

type intField struct {
	key   string
	value int
}

func (f intField) AddTo(event *zerolog.Event) { event.Int(f.key, f.value) }

type float64Field struct {
	key   string
	value float64
}

func (f float64Field) AddTo(event *zerolog.Event) { event.Float64(f.key, f.value) }

type errorField struct {
	value error
}

func (f errorField) AddTo(event *zerolog.Event) { event.Err(f.value) }

func String(key, value string) Field { return stringField{key: key, value: value} }

func Int(key string, value int) Field { return intField{key: key, value: value} }

func Float64(key string, value float64) Field { return float64Field{key: key, value: value} }

func Error(err error) Field { return errorField{value: err} }

// Duration logs as integer milliseconds.
func Duration(key string, value time.Duration) Field {
	return intField{key: key, value: int(value / time.Millisecond)}
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}
