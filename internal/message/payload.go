package message

import "encoding/json"

// Payload is implemented by every catalog payload type. The unexported
// method keeps the set closed to this package.
type Payload interface {
	Kind() Kind
	payload()
}

// DeviceUpdate reports a device status change.
type DeviceUpdate struct {
	DeviceID string         `json:"device_id"`
	Status   string         `json:"status"`
	Name     string         `json:"name,omitempty"`
	LastSeen string         `json:"last_seen,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EventUpdate reports a newly detected event or alert.
type EventUpdate struct {
	ID          string         `json:"id"`
	EventType   string         `json:"event_type,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Message     string         `json:"message,omitempty"`
	DeviceID    string         `json:"device_id,omitempty"`
	PipelineID  string         `json:"pipeline_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PipelineUpdate reports a pipeline lifecycle change (created, started,
// stopped, deleted, ...).
type PipelineUpdate struct {
	PipelineID string `json:"pipeline_id"`
	Action     string `json:"action,omitempty"`
	Status     string `json:"status,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ExecutionStats are the running counters of one pipeline executor.
type ExecutionStats struct {
	TotalFramesProcessed  int64   `json:"total_frames_processed"`
	FramesPerSecond       float64 `json:"frames_per_second"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	TotalDetections       int64   `json:"total_detections"`
	ErrorsCount           int64   `json:"errors_count"`
	Uptime                float64 `json:"uptime"`
}

// NodeStatus is the per-node entry of a detailed pipeline status.
type NodeStatus struct {
	IsRunning bool `json:"is_running"`
}

// DetailedStatus is the executor status attached to status updates.
type DetailedStatus struct {
	Status string                `json:"status,omitempty"`
	Stats  ExecutionStats        `json:"stats"`
	Nodes  map[string]NodeStatus `json:"nodes,omitempty"`
}

// StatusMetadata accompanies a pipeline status update.
type StatusMetadata struct {
	EventType      string          `json:"event_type,omitempty"`
	DetailedStatus *DetailedStatus `json:"detailed_status,omitempty"`
}

// PipelineStatusUpdate reports a pipeline status transition, optionally
// carrying the executor's statistics.
type PipelineStatusUpdate struct {
	PipelineID string         `json:"pipeline_id"`
	Status     string         `json:"status"`
	Metadata   StatusMetadata `json:"metadata"`
}

// Stats returns the nested execution statistics, if present.
func (p PipelineStatusUpdate) Stats() (ExecutionStats, bool) {
	if p.Metadata.DetailedStatus == nil {
		return ExecutionStats{}, false
	}
	return p.Metadata.DetailedStatus.Stats, true
}

// NodeResult is the outcome of one node for one frame.
type NodeResult struct {
	Success        bool    `json:"success"`
	ProcessingTime float64 `json:"processing_time"`
}

// FrameData holds the per-frame throughput, latency and detection counters.
type FrameData struct {
	FrameID         int64                 `json:"frame_id"`
	Timestamp       float64               `json:"timestamp"`
	FPS             float64               `json:"fps"`
	DetectionsCount int                   `json:"detections_count"`
	ProcessingTime  float64               `json:"processing_time"`
	NodeResults     map[string]NodeResult `json:"node_results"`
}

// PipelineFrameUpdate reports one processed frame.
type PipelineFrameUpdate struct {
	PipelineID string    `json:"pipeline_id"`
	FrameData  FrameData `json:"frame_data"`
}

// AnalyticsSummary is the node-specific aggregate sent by analytics nodes.
// Counting fields are only set by the node types that produce them.
type AnalyticsSummary struct {
	NodeID         string         `json:"node_id"`
	NodeType       string         `json:"node_type,omitempty"`
	Timestamp      float64        `json:"timestamp,omitempty"`
	Results        map[string]any `json:"results,omitempty"`
	PeopleCount    *int           `json:"people_count,omitempty"`
	Trend          string         `json:"trend,omitempty"`
	NewCrossings   *int           `json:"new_crossings,omitempty"`
	TotalCrossings *int           `json:"total_crossings,omitempty"`
	NewIntrusions  *int           `json:"new_intrusions,omitempty"`
	ActiveZones    *int           `json:"active_zones,omitempty"`
}

// PipelineAnalytics carries aggregated metrics of one analytics node.
type PipelineAnalytics struct {
	PipelineID string           `json:"pipeline_id"`
	Analytics  AnalyticsSummary `json:"analytics"`
}

// PipelineError reports a pipeline failure.
type PipelineError struct {
	PipelineID   string `json:"pipeline_id"`
	ErrorMessage string `json:"error_message"`
	Severity     string `json:"severity"`
}

// PipelineStatsUpdate carries a full statistics snapshot of one pipeline.
type PipelineStatsUpdate struct {
	PipelineID  string                     `json:"pipeline_id"`
	Stats       ExecutionStats             `json:"stats"`
	NodesStatus map[string]json.RawMessage `json:"nodes_status,omitempty"`
}

// SystemStats are the fleet-wide counters.
type SystemStats struct {
	TotalPipelines       int     `json:"total_pipelines"`
	RunningPipelines     int     `json:"running_pipelines"`
	TotalFramesProcessed int64   `json:"total_frames_processed"`
	TotalDetections      int64   `json:"total_detections"`
	TotalErrors          int64   `json:"total_errors"`
	SystemUptime         float64 `json:"system_uptime"`
	MemoryUsage          float64 `json:"memory_usage"`
	CPUUsage             float64 `json:"cpu_usage"`
}

// SystemStatsUpdate carries the fleet-wide counters.
type SystemStatsUpdate struct {
	Stats SystemStats `json:"stats"`
}

// Notification is a generic server-pushed notice for the user.
type Notification struct {
	Level   string `json:"level,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// ServerError is a server-pushed error.
type ServerError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (DeviceUpdate) Kind() Kind         { return KindDeviceUpdate }
func (EventUpdate) Kind() Kind          { return KindEventUpdate }
func (PipelineUpdate) Kind() Kind       { return KindPipelineUpdate }
func (PipelineStatusUpdate) Kind() Kind { return KindPipelineStatusUpdate }
func (PipelineFrameUpdate) Kind() Kind  { return KindPipelineFrameUpdate }
func (PipelineAnalytics) Kind() Kind    { return KindPipelineAnalytics }
func (PipelineError) Kind() Kind        { return KindPipelineError }
func (PipelineStatsUpdate) Kind() Kind  { return KindPipelineStatsUpdate }
func (SystemStatsUpdate) Kind() Kind    { return KindSystemStatsUpdate }
func (Notification) Kind() Kind         { return KindNotification }
func (ServerError) Kind() Kind          { return KindError }

func (DeviceUpdate) payload()         {}
func (EventUpdate) payload()          {}
func (PipelineUpdate) payload()       {}
func (PipelineStatusUpdate) payload() {}
func (PipelineFrameUpdate) payload()  {}
func (PipelineAnalytics) payload()    {}
func (PipelineError) payload()        {}
func (PipelineStatsUpdate) payload()  {}
func (SystemStatsUpdate) payload()    {}
func (Notification) payload()         {}
func (ServerError) payload()          {}
