// Package message defines the wire vocabulary of the realtime channel.
//
// Every inbound frame is an Envelope whose kind selects one payload type
// from a closed catalog:
//   - device_update, event_update
//   - pipeline_update, pipeline_status_update, pipeline_frame_update
//   - pipeline_analytics, pipeline_error, pipeline_stats_update
//   - system_stats_update, notification, error
//
// Kinds outside the catalog decode to ErrUnknownKind.
package message
