// Package desktop holds the toolkit-independent state behind the fyne client.
package desktop

import (
	"strings"
	"sync"

	"fyne.io/fyne/v2/data/binding"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCapture keeps the last lines written to it in a string binding so a
// label can display them.
type LogCapture struct {
	mu      sync.Mutex
	lines   []string
	limit   int
	binding binding.String
}

func NewLogCapture(b binding.String, limit int) *LogCapture {
	if limit <= 0 {
		limit = 300
	}
	return &LogCapture{binding: b, limit: limit}
}

func (l *LogCapture) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	for _, part := range strings.Split(text, "\n") {
		if part == "" {
			continue
		}
		l.lines = append(l.lines, part)
	}
	if len(l.lines) > l.limit {
		l.lines = l.lines[len(l.lines)-l.limit:]
	}
	_ = l.binding.Set(strings.Join(l.lines, "\n"))
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer.
func (l *LogCapture) Sync() error { return nil }

// NewLogger tees zap output to the capture in a compact console format and
// to other, usually stderr.
func NewLogger(capture *LogCapture, other zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "T"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.CallerKey = ""
	enc := zapcore.NewConsoleEncoder(encCfg)
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(capture), level),
		zapcore.NewCore(enc, other, level),
	)
	return zap.New(core)
}
