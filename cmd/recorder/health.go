package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/connection"
	"github.com/aios-edge/fleet-realtime/internal/monitor"
	"github.com/aios-edge/fleet-realtime/internal/realtime"
	"github.com/aios-edge/fleet-realtime/internal/writer"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

type healthDeps struct {
	channel func() realtime.Stats
	monitor *monitor.Monitor
	db      pinger                      // nil when the writer is disabled
	writer  func() writer.WriterMetrics // nil when the writer is disabled
	logger  *slog.Logger
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(deps healthDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		stats := deps.channel()
		health.Components["realtime"] = map[string]any{
			"state":             stats.Connection.State.String(),
			"generation":        stats.Connection.Generation,
			"reconnect_attempt": stats.Reconnect.Attempt,
			"last_close_code":   stats.Connection.LastCloseCode,
			"messages":          stats.Router.MessagesReceived,
			"parse_errors":      stats.Router.ParseErrors,
		}
		switch stats.Connection.State {
		case connection.StateOpen:
		case connection.StateFailed, connection.StateClosed:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		if deps.db != nil {
			if err := deps.db.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		}

		if deps.writer != nil {
			m := deps.writer()
			health.Components["writer"] = map[string]any{
				"inserts":    m.Inserts,
				"flushes":    m.Flushes,
				"errors":     m.Errors,
				"last_flush": m.LastFlush,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			deps.logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/debug/pipelines", func(w http.ResponseWriter, r *http.Request) {
		snap := deps.monitor.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"taken_at":  snap.TakenAt,
			"count":     len(snap.Pipelines),
			"pipelines": snap.Pipelines,
			"devices":   snap.Devices,
			"system":    snap.System,
			"events":    snap.Events,
		})
	})

	return mux
}
