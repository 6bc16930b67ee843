package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Errors
var (
	ErrEmptyKind   = errors.New("envelope has no kind")
	ErrUnknownKind = errors.New("unknown message kind")
)

// Envelope is one inbound frame, split into its kind and raw payload.
type Envelope struct {
	Kind      Kind
	Data      json.RawMessage
	Timestamp string // ISO-8601 or the server's numeric clock, verbatim
}

// wireEnvelope accepts both "type" (what the backend emits) and "kind".
type wireEnvelope struct {
	Type      string          `json:"type"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Parse decodes the outer envelope of a frame. When the frame has no
// "data" member the whole frame is treated as the payload, which is how
// the backend sends pipeline broadcasts.
func Parse(frame []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(frame, &w); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}

	kind := w.Type
	if kind == "" {
		kind = w.Kind
	}
	if kind == "" {
		return Envelope{}, ErrEmptyKind
	}

	data := w.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = json.RawMessage(frame)
	}

	return Envelope{
		Kind:      Kind(kind),
		Data:      data,
		Timestamp: timestampText(w.Timestamp),
	}, nil
}

// Decode returns the typed payload selected by the envelope's kind.
// Kinds outside the catalog return an error wrapping ErrUnknownKind.
func (e Envelope) Decode() (Payload, error) {
	decode, ok := decoders[e.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	p, err := decode(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return p, nil
}

var decoders = map[Kind]func(json.RawMessage) (Payload, error){
	KindDeviceUpdate:         decodeAs[DeviceUpdate],
	KindEventUpdate:          decodeAs[EventUpdate],
	KindPipelineUpdate:       decodeAs[PipelineUpdate],
	KindPipelineStatusUpdate: decodeAs[PipelineStatusUpdate],
	KindPipelineFrameUpdate:  decodeAs[PipelineFrameUpdate],
	KindPipelineAnalytics:    decodeAs[PipelineAnalytics],
	KindPipelineError:        decodeAs[PipelineError],
	KindPipelineStatsUpdate:  decodeAs[PipelineStatsUpdate],
	KindSystemStatsUpdate:    decodeAs[SystemStatsUpdate],
	KindNotification:         decodeAs[Notification],
	KindError:                decodeAs[ServerError],
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func timestampText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Handshake is the first frame the client sends after the socket opens.
type Handshake struct {
	Type           Kind   `json:"type"`
	Token          string `json:"token"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// NewHandshake builds the auth frame for the given credentials.
func NewHandshake(token, organizationID string) Handshake {
	return Handshake{
		Type:           KindAuth,
		Token:          token,
		OrganizationID: organizationID,
	}
}
