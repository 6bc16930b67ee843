// Package monitor keeps running aggregates of the realtime channel: what
// each pipeline and device last reported, and counters derived from
// frame updates.
package monitor

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/clock"
	"github.com/aios-edge/fleet-realtime/internal/message"
	"github.com/aios-edge/fleet-realtime/internal/subscription"
)

// PipelineStats are the aggregates for one pipeline.
type PipelineStats struct {
	PipelineID string
	Name       string
	Status     string

	// Derived from pipeline_frame_update.
	Frames            int64
	Detections        int64
	LastFrameID       int64
	LastFPS           float64
	AvgProcessingTime float64

	Errors    int64
	LastError string

	// Latest executor counters reported by the backend.
	Reported message.ExecutionStats

	UpdatedAt time.Time
}

// DeviceState is the last reported state of a device.
type DeviceState struct {
	DeviceID  string
	Name      string
	Status    string
	LastSeen  string
	UpdatedAt time.Time
}

// Snapshot is a point-in-time copy of the monitor.
type Snapshot struct {
	TakenAt   time.Time
	Pipelines []PipelineStats // sorted by PipelineID
	Devices   []DeviceState   // sorted by DeviceID
	System    message.SystemStats
	Events    int64
}

// Monitor aggregates realtime messages.
type Monitor struct {
	clock  clock.Clock
	logger *slog.Logger

	mu        sync.RWMutex
	pipelines map[string]*PipelineStats
	devices   map[string]*DeviceState
	system    message.SystemStats
	events    int64
}

// New creates an empty Monitor. A nil clock uses the real clock.
func New(clk clock.Clock, logger *slog.Logger) *Monitor {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		clock:     clk,
		logger:    logger.With("component", "monitor"),
		pipelines: make(map[string]*PipelineStats),
		devices:   make(map[string]*DeviceState),
	}
}

// Attach subscribes the monitor to every kind it aggregates. The returned
// function removes those subscriptions.
func (m *Monitor) Attach(reg *subscription.Registry) (detach func()) {
	subs := []*subscription.Subscription{
		subscription.On(reg, m.onFrame),
		subscription.On(reg, m.onStatus),
		subscription.On(reg, m.onStats),
		subscription.On(reg, m.onPipeline),
		subscription.On(reg, m.onPipelineError),
		subscription.On(reg, m.onDevice),
		subscription.On(reg, m.onSystem),
		subscription.On(reg, m.onEvent),
	}
	return func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}
}

// Pipeline returns the aggregates for one pipeline.
func (m *Monitor) Pipeline(id string) (PipelineStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[id]
	if !ok {
		return PipelineStats{}, false
	}
	return *p, true
}

// Device returns the last reported state of one device.
func (m *Monitor) Device(id string) (DeviceState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return DeviceState{}, false
	}
	return *d, true
}

// Snapshot copies the current aggregates.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		TakenAt:   m.clock.Now(),
		Pipelines: make([]PipelineStats, 0, len(m.pipelines)),
		Devices:   make([]DeviceState, 0, len(m.devices)),
		System:    m.system,
		Events:    m.events,
	}
	for _, p := range m.pipelines {
		s.Pipelines = append(s.Pipelines, *p)
	}
	for _, d := range m.devices {
		s.Devices = append(s.Devices, *d)
	}
	sort.Slice(s.Pipelines, func(i, j int) bool { return s.Pipelines[i].PipelineID < s.Pipelines[j].PipelineID })
	sort.Slice(s.Devices, func(i, j int) bool { return s.Devices[i].DeviceID < s.Devices[j].DeviceID })
	return s
}

// pipelineLocked returns the entry for id, creating it. m.mu must be held.
func (m *Monitor) pipelineLocked(id string) *PipelineStats {
	p, ok := m.pipelines[id]
	if !ok {
		p = &PipelineStats{PipelineID: id}
		m.pipelines[id] = p
	}
	p.UpdatedAt = m.clock.Now()
	return p
}

func (m *Monitor) onFrame(u message.PipelineFrameUpdate) {
	if u.PipelineID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pipelineLocked(u.PipelineID)
	p.Frames++
	p.Detections += int64(u.FrameData.DetectionsCount)
	p.LastFrameID = u.FrameData.FrameID
	p.LastFPS = u.FrameData.FPS
	// Running mean over observed frames.
	p.AvgProcessingTime += (u.FrameData.ProcessingTime - p.AvgProcessingTime) / float64(p.Frames)
}

func (m *Monitor) onStatus(u message.PipelineStatusUpdate) {
	if u.PipelineID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pipelineLocked(u.PipelineID)
	if u.Status != "" {
		p.Status = u.Status
	}
	if stats, ok := u.Stats(); ok {
		p.Reported = stats
	}
}

func (m *Monitor) onStats(u message.PipelineStatsUpdate) {
	if u.PipelineID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelineLocked(u.PipelineID).Reported = u.Stats
}

func (m *Monitor) onPipeline(u message.PipelineUpdate) {
	if u.PipelineID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.Action == "deleted" {
		delete(m.pipelines, u.PipelineID)
		m.logger.Debug("pipeline removed", "pipeline_id", u.PipelineID)
		return
	}

	p := m.pipelineLocked(u.PipelineID)
	if u.Status != "" {
		p.Status = u.Status
	}
	if u.Name != "" {
		p.Name = u.Name
	}
}

func (m *Monitor) onPipelineError(u message.PipelineError) {
	if u.PipelineID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pipelineLocked(u.PipelineID)
	p.Errors++
	p.LastError = u.ErrorMessage
}

func (m *Monitor) onDevice(u message.DeviceUpdate) {
	if u.DeviceID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[u.DeviceID]
	if !ok {
		d = &DeviceState{DeviceID: u.DeviceID}
		m.devices[u.DeviceID] = d
	}
	if u.Status != "" {
		d.Status = u.Status
	}
	if u.Name != "" {
		d.Name = u.Name
	}
	if u.LastSeen != "" {
		d.LastSeen = u.LastSeen
	}
	d.UpdatedAt = m.clock.Now()
}

func (m *Monitor) onSystem(u message.SystemStatsUpdate) {
	m.mu.Lock()
	m.system = u.Stats
	m.mu.Unlock()
}

func (m *Monitor) onEvent(message.EventUpdate) {
	m.mu.Lock()
	m.events++
	m.mu.Unlock()
}
