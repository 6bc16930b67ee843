package message

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse_DataEnvelope(t *testing.T) {
	frame := `{"kind":"device_update","data":{"device_id":"cam-1","status":"online"},"timestamp":"2026-01-15T12:00:00Z"}`

	env, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if env.Kind != KindDeviceUpdate {
		t.Errorf("Kind = %s, want %s", env.Kind, KindDeviceUpdate)
	}
	if env.Timestamp != "2026-01-15T12:00:00Z" {
		t.Errorf("Timestamp = %q, want 2026-01-15T12:00:00Z", env.Timestamp)
	}

	p, err := env.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	dev, ok := p.(DeviceUpdate)
	if !ok {
		t.Fatalf("payload type = %T, want DeviceUpdate", p)
	}
	if dev.DeviceID != "cam-1" || dev.Status != "online" {
		t.Errorf("payload = %+v, want cam-1/online", dev)
	}
}

func TestParse_TypeAlias(t *testing.T) {
	env, err := Parse([]byte(`{"type":"notification","data":{"message":"hello"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if env.Kind != KindNotification {
		t.Errorf("Kind = %s, want notification", env.Kind)
	}
}

func TestParse_FlatFrame(t *testing.T) {
	frame := `{"type":"pipeline_error","pipeline_id":"p9","error_message":"camera offline","severity":"error","timestamp":1234.5}`

	env, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if env.Timestamp != "1234.5" {
		t.Errorf("Timestamp = %q, want 1234.5", env.Timestamp)
	}

	p, err := env.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	pe := p.(PipelineError)
	if pe.PipelineID != "p9" {
		t.Errorf("PipelineID = %s, want p9", pe.PipelineID)
	}
	if pe.ErrorMessage != "camera offline" {
		t.Errorf("ErrorMessage = %s, want camera offline", pe.ErrorMessage)
	}
}

func TestParse_FrameUpdate(t *testing.T) {
	frame := `{"kind":"pipeline_frame_update","data":{"pipeline_id":"p1","frame_data":{"fps":12.5,"detections_count":3,"processing_time":80,"frame_id":7,"timestamp":1000,"node_results":{"det":{"success":true,"processing_time":41.5}}}}}`

	env, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p, err := env.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	fu := p.(PipelineFrameUpdate)
	if fu.PipelineID != "p1" {
		t.Errorf("PipelineID = %s, want p1", fu.PipelineID)
	}
	if fu.FrameData.FPS != 12.5 {
		t.Errorf("FPS = %v, want 12.5", fu.FrameData.FPS)
	}
	if fu.FrameData.DetectionsCount != 3 {
		t.Errorf("DetectionsCount = %d, want 3", fu.FrameData.DetectionsCount)
	}
	if fu.FrameData.FrameID != 7 {
		t.Errorf("FrameID = %d, want 7", fu.FrameData.FrameID)
	}
	if r := fu.FrameData.NodeResults["det"]; !r.Success || r.ProcessingTime != 41.5 {
		t.Errorf("NodeResults[det] = %+v", r)
	}
}

func TestParse_StatusWithStats(t *testing.T) {
	frame := `{"type":"pipeline_status_update","pipeline_id":"p2","status":"running","metadata":{"event_type":"status_change","detailed_status":{"status":"running","stats":{"total_frames_processed":50,"frames_per_second":9.5,"total_detections":12,"errors_count":1}}}}`

	env, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p, err := env.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	su := p.(PipelineStatusUpdate)
	stats, ok := su.Stats()
	if !ok {
		t.Fatal("expected nested stats")
	}
	if stats.TotalFramesProcessed != 50 || stats.TotalDetections != 12 || stats.ErrorsCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if _, ok := (PipelineStatusUpdate{}).Stats(); ok {
		t.Error("zero status update should report no stats")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{name: "not json", frame: `{not json`},
		{name: "no kind", frame: `{"data":{}}`, wantErr: ErrEmptyKind},
		{name: "array", frame: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.frame))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	env, err := Parse([]byte(`{"type":"heartbeat","timestamp":1}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = env.Decode()
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("error = %v, want ErrUnknownKind", err)
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	env, err := Parse([]byte(`{"kind":"pipeline_frame_update","data":{"frame_data":"oops"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = env.Decode()
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrUnknownKind) {
		t.Error("malformed payload must not be reported as unknown kind")
	}
}

func TestCatalog_KindsMatchPayloads(t *testing.T) {
	if len(Catalog) != len(decoders) {
		t.Fatalf("catalog has %d kinds, decoders %d", len(Catalog), len(decoders))
	}
	for _, k := range Catalog {
		if !k.Known() {
			t.Errorf("%s not known", k)
		}
		p, err := Envelope{Kind: k, Data: json.RawMessage(`{}`)}.Decode()
		if err != nil {
			t.Errorf("decode empty %s: %v", k, err)
			continue
		}
		if p.Kind() != k {
			t.Errorf("payload for %s reports kind %s", k, p.Kind())
		}
	}
	if KindAuth.Known() {
		t.Error("auth must not be an inbound kind")
	}
}

func TestNewHandshake(t *testing.T) {
	data, err := json.Marshal(NewHandshake("tok-123", "org-9"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"type":"auth","token":"tok-123","organization_id":"org-9"}`
	if string(data) != want {
		t.Errorf("handshake = %s, want %s", data, want)
	}
}
