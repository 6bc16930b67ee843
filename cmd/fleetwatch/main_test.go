package main

import (
	"strings"
	"testing"

	"github.com/aios-edge/fleet-realtime/internal/message"
)

func TestParseKinds(t *testing.T) {
	all, err := parseKinds(nil)
	if err != nil {
		t.Fatalf("parseKinds(nil): %v", err)
	}
	if len(all) != len(message.Catalog) {
		t.Errorf("default kinds = %d, want %d", len(all), len(message.Catalog))
	}

	got, err := parseKinds([]string{"pipeline_error", " device_update"})
	if err != nil {
		t.Fatalf("parseKinds: %v", err)
	}
	if len(got) != 2 || got[0] != message.KindPipelineError || got[1] != message.KindDeviceUpdate {
		t.Errorf("parseKinds = %v", got)
	}

	if _, err := parseKinds([]string{"auth"}); err == nil {
		t.Error("expected error for outbound-only kind")
	}
	if _, err := parseKinds([]string{"bogus"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		payload message.Payload
		want    string
	}{
		{
			message.PipelineFrameUpdate{PipelineID: "p-1", FrameData: message.FrameData{FrameID: 4, FPS: 12.5, DetectionsCount: 3}},
			"p-1 frame=4 fps=12.5 detections=3",
		},
		{message.PipelineError{PipelineID: "p-2", ErrorMessage: "decoder stalled"}, `p-2 error="decoder stalled"`},
		{message.DeviceUpdate{DeviceID: "cam-7", Status: "offline"}, "cam-7 status=offline"},
		{message.ServerError{Message: "bad auth"}, `"message":"bad auth"`},
	}

	for _, tt := range tests {
		if got := summary(tt.payload); !strings.Contains(got, tt.want) {
			t.Errorf("summary(%T) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
