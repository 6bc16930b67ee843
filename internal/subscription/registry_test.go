package subscription

import (
	"testing"

	"github.com/aios-edge/fleet-realtime/internal/message"
)

func TestRegistry_SubscribeOrder(t *testing.T) {
	r := NewRegistry()
	var order []string

	r.Subscribe(message.KindDeviceUpdate, func(message.Payload) { order = append(order, "a") })
	r.Subscribe(message.KindDeviceUpdate, func(message.Payload) { order = append(order, "b") })
	r.Subscribe(message.KindEventUpdate, func(message.Payload) { order = append(order, "other") })

	for _, h := range r.Handlers(message.KindDeviceUpdate) {
		h(message.DeviceUpdate{})
	}

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestRegistry_UnsubscribeRestoresPriorState(t *testing.T) {
	r := NewRegistry()
	r.Subscribe(message.KindPipelineError, func(message.Payload) {})
	before := r.Len(message.KindPipelineError)

	sub := r.Subscribe(message.KindPipelineError, func(message.Payload) {})
	if got := r.Len(message.KindPipelineError); got != before+1 {
		t.Fatalf("Len after subscribe = %d, want %d", got, before+1)
	}

	sub.Unsubscribe()
	if got := r.Len(message.KindPipelineError); got != before {
		t.Errorf("Len after unsubscribe = %d, want %d", got, before)
	}
}

func TestRegistry_UnsubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	calls := 0
	keep := func(message.Payload) { calls++ }

	r.Subscribe(message.KindNotification, keep)
	sub := r.Subscribe(message.KindNotification, func(message.Payload) {})

	sub.Unsubscribe()
	sub.Unsubscribe()

	handlers := r.Handlers(message.KindNotification)
	if len(handlers) != 1 {
		t.Fatalf("len(handlers) = %d, want 1", len(handlers))
	}
	handlers[0](message.Notification{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRegistry_DuplicateHandlersIndependent(t *testing.T) {
	r := NewRegistry()
	calls := 0
	h := func(message.Payload) { calls++ }

	first := r.Subscribe(message.KindDeviceUpdate, h)
	r.Subscribe(message.KindDeviceUpdate, h)

	first.Unsubscribe()

	handlers := r.Handlers(message.KindDeviceUpdate)
	if len(handlers) != 1 {
		t.Fatalf("len(handlers) = %d, want 1", len(handlers))
	}
	handlers[0](message.DeviceUpdate{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRegistry_SnapshotUnaffectedByUnsubscribe(t *testing.T) {
	r := NewRegistry()
	a := r.Subscribe(message.KindEventUpdate, func(message.Payload) {})
	r.Subscribe(message.KindEventUpdate, func(message.Payload) {})

	snapshot := r.Handlers(message.KindEventUpdate)
	a.Unsubscribe()

	if len(snapshot) != 2 {
		t.Errorf("snapshot len = %d, want 2", len(snapshot))
	}
	if got := r.Len(message.KindEventUpdate); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestRegistry_NoHandlers(t *testing.T) {
	r := NewRegistry()
	if h := r.Handlers(message.KindSystemStatsUpdate); h != nil {
		t.Errorf("Handlers = %v, want nil", h)
	}
}

func TestOn_Typed(t *testing.T) {
	r := NewRegistry()
	var got message.PipelineFrameUpdate

	sub := On(r, func(u message.PipelineFrameUpdate) { got = u })
	if sub.Kind() != message.KindPipelineFrameUpdate {
		t.Fatalf("Kind = %q, want %q", sub.Kind(), message.KindPipelineFrameUpdate)
	}

	for _, h := range r.Handlers(message.KindPipelineFrameUpdate) {
		h(message.PipelineFrameUpdate{PipelineID: "p-1"})
	}
	if got.PipelineID != "p-1" {
		t.Errorf("PipelineID = %q, want p-1", got.PipelineID)
	}

	sub.Unsubscribe()
	if r.Len(message.KindPipelineFrameUpdate) != 0 {
		t.Error("expected typed handler removed")
	}
}
