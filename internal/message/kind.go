package message

// Kind is the discriminator carried by every envelope.
type Kind string

const (
	KindDeviceUpdate         Kind = "device_update"
	KindEventUpdate          Kind = "event_update"
	KindPipelineUpdate       Kind = "pipeline_update"
	KindPipelineStatusUpdate Kind = "pipeline_status_update"
	KindPipelineFrameUpdate  Kind = "pipeline_frame_update"
	KindPipelineAnalytics    Kind = "pipeline_analytics"
	KindPipelineError        Kind = "pipeline_error"
	KindPipelineStatsUpdate  Kind = "pipeline_stats_update"
	KindSystemStatsUpdate    Kind = "system_stats_update"
	KindNotification         Kind = "notification"
	KindError                Kind = "error"
)

// KindAuth is the outbound handshake kind. It is never dispatched.
const KindAuth Kind = "auth"

// Catalog lists every inbound kind in a stable order.
var Catalog = []Kind{
	KindDeviceUpdate,
	KindEventUpdate,
	KindPipelineUpdate,
	KindPipelineStatusUpdate,
	KindPipelineFrameUpdate,
	KindPipelineAnalytics,
	KindPipelineError,
	KindPipelineStatsUpdate,
	KindSystemStatsUpdate,
	KindNotification,
	KindError,
}

// Known reports whether k is part of the inbound catalog.
func (k Kind) Known() bool {
	_, ok := decoders[k]
	return ok
}

func (k Kind) String() string { return string(k) }
