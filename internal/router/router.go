// Package router decodes inbound frames and fans them out to the
// handlers registered in a subscription.Registry.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aios-edge/fleet-realtime/internal/connection"
	"github.com/aios-edge/fleet-realtime/internal/message"
	"github.com/aios-edge/fleet-realtime/internal/notify"
	"github.com/aios-edge/fleet-realtime/internal/subscription"
)

// Router parses raw frames and invokes subscribers synchronously, in
// registration order. It never buffers: a frame with no subscriber for
// its kind is dropped.
type Router struct {
	registry *subscription.Registry
	sink     notify.Sink
	logger   *slog.Logger

	mu                sync.RWMutex
	received          int64
	dispatched        int64
	handlerCalls      int64
	parseErrors       int64
	unknownKinds      int64
	handlerPanics     int64
	notificationsSent int64
	dropped           int64
}

// NewRouter creates a Router over registry. A nil sink discards
// notifications.
func NewRouter(registry *subscription.Registry, sink notify.Sink, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.Discard
	}

	return &Router{
		registry: registry,
		sink:     sink,
		logger:   logger.With("component", "router"),
	}
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived:   r.received,
		MessagesDispatched: r.dispatched,
		HandlerCalls:       r.handlerCalls,
		ParseErrors:        r.parseErrors,
		UnknownKinds:       r.unknownKinds,
		HandlerPanics:      r.handlerPanics,
		NotificationsSent:  r.notificationsSent,
		Dropped:            r.dropped,
	}
}

// Dispatch implements connection.Dispatcher.
func (r *Router) Dispatch(raw connection.RawMessage) {
	r.count(&r.received)

	env, err := message.Parse(raw.Data)
	if err != nil {
		r.logger.Warn("failed to parse message", "error", err, "size", len(raw.Data))
		r.count(&r.parseErrors)
		return
	}

	payload, err := env.Decode()
	if errors.Is(err, message.ErrUnknownKind) {
		r.logger.Warn("unknown message kind", "kind", env.Kind.String())
		r.count(&r.unknownKinds)
		return
	}
	if err != nil {
		r.logger.Warn("failed to decode payload", "kind", env.Kind.String(), "error", err)
		r.count(&r.parseErrors)
		return
	}

	r.raise(payload)

	handlers := r.registry.Handlers(env.Kind)
	if len(handlers) == 0 {
		r.count(&r.dropped)
		return
	}

	for _, h := range handlers {
		r.invoke(env.Kind, h, payload)
	}

	r.mu.Lock()
	r.dispatched++
	r.handlerCalls += int64(len(handlers))
	r.mu.Unlock()
}

// invoke runs one handler. A panic is logged and does not stop delivery
// to the remaining handlers.
func (r *Router) invoke(kind message.Kind, h subscription.Handler, p message.Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked",
				"kind", kind.String(),
				"panic", fmt.Sprint(rec),
			)
			r.count(&r.handlerPanics)
		}
	}()
	h(p)
}

// raise emits the user notification tied to error, notification and
// pipeline_error messages.
func (r *Router) raise(p message.Payload) {
	var n notify.Notification

	switch v := p.(type) {
	case message.ServerError:
		n = notify.Notification{
			Level:   notify.LevelError,
			Title:   "Server error",
			Message: v.Message,
		}
	case message.Notification:
		n = notify.Notification{
			Level:   notify.ParseLevel(v.Level),
			Title:   v.Title,
			Message: v.Message,
		}
	case message.PipelineError:
		msg := v.ErrorMessage
		if v.PipelineID != "" {
			msg = fmt.Sprintf("Pipeline %s: %s", v.PipelineID, v.ErrorMessage)
		}
		n = notify.Notification{
			Level:   notify.LevelError,
			Title:   "Pipeline error",
			Message: msg,
		}
	default:
		return
	}

	r.sink.Notify(n)
	r.count(&r.notificationsSent)
}

func (r *Router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}
