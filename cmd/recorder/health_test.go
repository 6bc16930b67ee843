package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/clock"
	"github.com/aios-edge/fleet-realtime/internal/connection"
	"github.com/aios-edge/fleet-realtime/internal/message"
	"github.com/aios-edge/fleet-realtime/internal/monitor"
	"github.com/aios-edge/fleet-realtime/internal/realtime"
	"github.com/aios-edge/fleet-realtime/internal/subscription"
	"github.com/aios-edge/fleet-realtime/internal/writer"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func statsIn(state connection.State) func() realtime.Stats {
	return func() realtime.Stats {
		var s realtime.Stats
		s.Connection.State = state
		return s
	}
}

type healthBody struct {
	Status     string                     `json:"status"`
	Components map[string]json.RawMessage `json:"components"`
}

func getHealth(t *testing.T, h http.Handler) (int, healthBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body healthBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return rec.Code, body
}

func TestHealth_States(t *testing.T) {
	tests := []struct {
		state    connection.State
		wantCode int
		want     string
	}{
		{connection.StateOpen, http.StatusOK, "healthy"},
		{connection.StateConnecting, http.StatusOK, "degraded"},
		{connection.StateIdle, http.StatusOK, "degraded"},
		{connection.StateFailed, http.StatusServiceUnavailable, "unhealthy"},
		{connection.StateClosed, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := createHealthHandler(healthDeps{
				channel: statsIn(tt.state),
				monitor: monitor.New(nil, slog.Default()),
				logger:  slog.Default(),
			})

			code, body := getHealth(t, h)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.want {
				t.Errorf("status = %q, want %q", body.Status, tt.want)
			}
			if _, ok := body.Components["realtime"]; !ok {
				t.Error("missing realtime component")
			}
			if _, ok := body.Components["timescaledb"]; ok {
				t.Error("timescaledb reported with writer disabled")
			}
		})
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := createHealthHandler(healthDeps{
		channel: statsIn(connection.StateOpen),
		monitor: monitor.New(nil, slog.Default()),
		db:      fakePinger{err: errors.New("connection refused")},
		writer:  func() writer.WriterMetrics { return writer.WriterMetrics{Flushes: 3} },
		logger:  slog.Default(),
	})

	code, body := getHealth(t, h)
	if code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", code)
	}
	if body.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", body.Status)
	}

	var db map[string]string
	if err := json.Unmarshal(body.Components["timescaledb"], &db); err != nil {
		t.Fatalf("decode timescaledb: %v", err)
	}
	if db["error"] != "connection refused" {
		t.Errorf("db error = %q", db["error"])
	}

	var w map[string]any
	if err := json.Unmarshal(body.Components["writer"], &w); err != nil {
		t.Fatalf("decode writer: %v", err)
	}
	if w["flushes"] != float64(3) {
		t.Errorf("writer flushes = %v, want 3", w["flushes"])
	}
}

func TestDebugPipelines(t *testing.T) {
	reg := subscription.NewRegistry()
	mon := monitor.New(clock.Fake(time.Unix(1700000000, 0)), slog.Default())
	mon.Attach(reg)

	for _, h := range reg.Handlers(message.KindPipelineFrameUpdate) {
		h(message.PipelineFrameUpdate{
			PipelineID: "p-1",
			FrameData:  message.FrameData{FrameID: 7, FPS: 10, DetectionsCount: 2},
		})
	}

	h := createHealthHandler(healthDeps{
		channel: statsIn(connection.StateOpen),
		monitor: mon,
		logger:  slog.Default(),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pipelines", nil))

	var body struct {
		Count     int `json:"count"`
		Pipelines []struct {
			PipelineID string
			Frames     int64
			Detections int64
		} `json:"pipelines"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Pipelines) != 1 {
		t.Fatalf("count = %d, pipelines = %d, want 1", body.Count, len(body.Pipelines))
	}
	p := body.Pipelines[0]
	if p.PipelineID != "p-1" || p.Frames != 1 || p.Detections != 2 {
		t.Errorf("pipeline = %+v", p)
	}
}
