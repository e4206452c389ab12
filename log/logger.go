// Package log provides structured logging with run context.
//
// All entries carry the run identity (run_id, attempt) so log lines from
// interleaved streams can be correlated after the fact. Output defaults to
// stderr; SplitFile routes entries to a rotating run log file instead,
// keeping the terminal free for the live transfer display.
package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/milmillin/copyem/types"
)

// Logger provides structured logging with run context.
type Logger struct {
	zap *zap.Logger
}

// NewLogger creates a logger with run context, writing to os.Stderr.
func NewLogger(runMeta *types.RunMeta) *Logger {
	return NewLoggerWithWriter(runMeta, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to the given writer.
func NewLoggerWithWriter(runMeta *types.RunMeta, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)

	fields := []zap.Field{
		zap.String("run_id", runMeta.RunID),
		zap.Int("attempt", runMeta.Attempt),
	}

	return &Logger{zap: zap.New(core).With(fields...)}
}

// NewFileLogger creates a logger writing to a rotating log file at path.
// The file is size-capped rather than age-capped: one transfer run can be
// long but its log is bounded.
func NewFileLogger(runMeta *types.RunMeta, path string) *Logger {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 1,
	}
	return NewLoggerWithWriter(runMeta, rotator)
}

// DefaultLogPath returns the timestamped run log filename,
// e.g. "copyem_20250101_120000.log".
func DefaultLogPath(now time.Time) string {
	return fmt.Sprintf("copyem_%s.log", now.Format("20060102_150405"))
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// WithStream returns a logger with the stream index attached.
func (l *Logger) WithStream(stream int) *Logger {
	return &Logger{zap: l.zap.With(zap.Int("stream", stream))}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries. Best effort on process exit.
func (l *Logger) Sync() { _ = l.zap.Sync() }
