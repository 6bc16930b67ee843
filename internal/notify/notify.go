// Package notify carries user-facing notifications raised by the realtime
// channel: server errors, server notifications, pipeline errors and the
// terminal "connection lost" state.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel maps a server-supplied level onto a Level. Unknown or empty
// values become LevelInfo.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelSuccess, LevelWarning, LevelError:
		return Level(s)
	case "warn":
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Notification is one user-facing message.
type Notification struct {
	Level   Level
	Title   string
	Message string
	// Persistent notifications stay visible until dismissed.
	Persistent bool
}

// Sink receives notifications. Implementations must be safe for
// concurrent use.
type Sink interface {
	Notify(Notification)
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "notify")}
}

// Notify implements Sink.
func (s *LogSink) Notify(n Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, n.Message,
		"title", n.Title,
		"level", string(n.Level),
		"persistent", n.Persistent,
	)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

// Notify implements Sink.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.list = append(r.list, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.list))
	copy(out, r.list)
	return out
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// Reset discards all recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.list = nil
	r.mu.Unlock()
}

// Discard drops every notification.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(Notification) {}
