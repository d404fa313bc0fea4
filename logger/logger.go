// Package logger provides the structured logging interface used across the
// server, backed by zerolog, with optional daily-rotated file output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Field represents a key-value pair for structured log output.
type Field struct {
	Key   string
	Value any
}

// Logger is an interface for structured logging. Loggers may be derived with
// With for session-scoped or component-scoped fields.
type Logger interface {
	// Debug logs a message at debug level with optional structured fields.
	Debug(msg string, fields ...Field)

	// Info logs a message at info level with optional structured fields.
	Info(msg string, fields ...Field)

	// Warn logs a message at warn level with optional structured fields.
	Warn(msg string, fields ...Field)

	// Error logs a message at error level with optional structured fields.
	Error(msg string, fields ...Field)

	// With returns a new Logger that includes the given fields in all
	// subsequent log entries. The original Logger is unchanged.
	With(fields ...Field) Logger

	// Close releases resources held by the logger (e.g. file handles).
	// It is safe to call multiple times.
	Close() error
}

// Options configures New.
type Options struct {
	// Service is added as the "service" field of every entry.
	Service string
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
	// Console switches stdout output to zerolog's human-readable writer.
	Console bool
	// Dir, when set, also writes JSON entries to daily-rotated files in Dir.
	Dir string
}

// zerologLogger is the zerolog-based implementation of Logger.
type zerologLogger struct {
	logger         zerolog.Logger
	fileWriter     *DailyFileWriter
	ownsFileWriter bool
}

// New builds a Logger from opts.
//
// Returns:
//   - The Logger
//   - An error if the level is unknown or the log directory cannot be used
func New(opts Options) (Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}

		level = parsed
	}

	var stdout io.Writer = os.Stdout
	if opts.Console {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
	}

	var fileWriter *DailyFileWriter
	out := stdout
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fw, err := NewDailyFileWriter(opts.Service, opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create file writer: %w", err)
		}

		fileWriter = fw
		out = io.MultiWriter(stdout, fw)
	}

	return &zerologLogger{
		logger:         zerolog.New(out).With().Str("service", opts.Service).Timestamp().Logger().Level(level),
		fileWriter:     fileWriter,
		ownsFileWriter: fileWriter != nil,
	}, nil
}

// NewZerologLogger wraps an existing zerolog.Logger, adding the service name
// and a timestamp to all entries.
func NewZerologLogger(l zerolog.Logger, serviceName string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger: l.With().Str("service", serviceName).Timestamp().Logger().Level(level),
	}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.write(zerolog.DebugLevel, msg, fields)
}

func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.write(zerolog.InfoLevel, msg, fields)
}

func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.write(zerolog.WarnLevel, msg, fields)
}

func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.write(zerolog.ErrorLevel, msg, fields)
}

// write emits one entry with fields in the order given.
func (z *zerologLogger) write(level zerolog.Level, msg string, fields []Field) {
	e := z.logger.WithLevel(level)
	if e == nil {
		return
	}

	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			e = e.AnErr(f.Key, err)
			continue
		}
		e = e.Interface(f.Key, f.Value)
	}

	e.Msg(msg)
}

// With derives a logger sharing the parent's file writer. Closing the
// derived logger leaves the writer open.
func (z *zerologLogger) With(fields ...Field) Logger {
	ctx := z.logger.With()
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ctx = ctx.AnErr(f.Key, err)
			continue
		}
		ctx = ctx.Interface(f.Key, f.Value)
	}

	return &zerologLogger{logger: ctx.Logger(), fileWriter: z.fileWriter}
}

func (z *zerologLogger) Close() error {
	if !z.ownsFileWriter {
		return nil
	}

	return z.fileWriter.Close()
}
