// Package session writes the structured host session log: every command
// sent, every response received, system notes and errors, one JSON object
// per line, closed by a summary entry.
package session

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created inside the log directory.
const FileName = "vcore_log.json"

// Entry types.
const (
	TypeCommand  = "command"
	TypeResponse = "response"
	TypeSystem   = "system"
	TypeError    = "error"
)

// Summary counts entries by type.
type Summary struct {
	TotalEntries int `json:"total_entries"`
	Commands     int `json:"commands"`
	Responses    int `json:"responses"`
	Errors       int `json:"errors"`
}

// Logger is safe for concurrent use.
type Logger struct {
	z     *zap.Logger
	file  *os.File
	path  string
	mu    sync.Mutex
	sum   Summary
	close sync.Once
}

// Open creates dir if needed and starts a fresh log file in it.
func Open(dir string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.DebugLevel)

	l := New(core)
	l.file = f
	l.path = path
	l.System("logger initialized")
	return l, nil
}

// New wraps an existing core (tests, alternative sinks).
func New(core zapcore.Core) *Logger {
	return &Logger{z: zap.New(core)}
}

// Nop discards everything but still counts.
func Nop() *Logger { return New(zapcore.NewNopCore()) }

// Path returns the log file path, empty for non-file loggers.
func (l *Logger) Path() string { return l.path }

func (l *Logger) Command(cmd any) {
	l.count(TypeCommand)
	l.z.Info("command", zap.String("type", TypeCommand), zap.Any("data", cmd))
}

func (l *Logger) Response(resp any) {
	l.count(TypeResponse)
	l.z.Info("response", zap.String("type", TypeResponse), zap.Any("data", resp))
}

func (l *Logger) System(msg string, fields ...zap.Field) {
	l.count(TypeSystem)
	l.z.Info(msg, append([]zap.Field{zap.String("type", TypeSystem)}, fields...)...)
}

func (l *Logger) Error(msg string, err error, fields ...zap.Field) {
	l.count(TypeError)
	fs := append([]zap.Field{zap.String("type", TypeError)}, fields...)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	l.z.Error(msg, fs...)
}

func (l *Logger) count(typ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sum.TotalEntries++
	switch typ {
	case TypeCommand:
		l.sum.Commands++
	case TypeResponse:
		l.sum.Responses++
	case TypeError:
		l.sum.Errors++
	}
}

// Summary returns the counts so far.
func (l *Logger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sum
}

// Close writes the session summary and releases the file.
func (l *Logger) Close() error {
	var err error
	l.close.Do(func() {
		l.System("session summary", zap.Any("data", l.Summary()))
		_ = l.z.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
