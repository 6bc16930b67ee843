package reconnect

import (
	"math"
	"testing"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPolicy_Defaults(t *testing.T) {
	p := New(Config{}, clock.Fake(epoch))
	if p.cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", p.cfg.BaseDelay)
	}
	if p.MaxAttempts() != 5 {
		t.Errorf("MaxAttempts = %d, want 5", p.MaxAttempts())
	}
}

func TestPolicy_BackoffSequence(t *testing.T) {
	clk := clock.Fake(epoch)
	p := New(Config{BaseDelay: time.Second, MaxAttempts: 5}, clk)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for i, w := range want {
		fired := false
		delay, ok := p.Schedule(func() { fired = true })
		if !ok {
			t.Fatalf("attempt %d: Schedule returned false", i)
		}
		if delay != w {
			t.Errorf("attempt %d: delay = %v, want %v", i, delay, w)
		}

		st := p.State()
		if st.Attempt != i+1 {
			t.Errorf("attempt %d: State.Attempt = %d, want %d", i, st.Attempt, i+1)
		}
		if !st.ScheduledAt.Equal(clk.Now().Add(w)) {
			t.Errorf("attempt %d: ScheduledAt = %v, want %v", i, st.ScheduledAt, clk.Now().Add(w))
		}

		clk.Advance(w - time.Millisecond)
		if fired {
			t.Fatalf("attempt %d: fired early", i)
		}
		clk.Advance(time.Millisecond)
		if !fired {
			t.Fatalf("attempt %d: did not fire after %v", i, w)
		}
		if p.State().Pending() {
			t.Errorf("attempt %d: still pending after firing", i)
		}
	}

	if _, ok := p.Schedule(func() { t.Error("sixth retry fired") }); ok {
		t.Fatal("Schedule after MaxAttempts returned true")
	}
	if !p.Exhausted() {
		t.Error("Exhausted = false, want true")
	}
	clk.Advance(time.Hour)
}

func TestPolicy_DelaySaturates(t *testing.T) {
	p := New(Config{BaseDelay: time.Second, MaxAttempts: 100}, clock.Fake(epoch))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{-1, time.Second},
		{30, time.Second << 30},
		{33, time.Second << 33},
		{34, time.Duration(math.MaxInt64)},
		{40, time.Duration(math.MaxInt64)},
		{63, time.Duration(math.MaxInt64)},
		{200, time.Duration(math.MaxInt64)},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	prev := time.Duration(0)
	for i := 0; i < 80; i++ {
		d := p.Delay(i)
		if d < prev {
			t.Fatalf("Delay(%d) = %v is below Delay(%d) = %v", i, d, i-1, prev)
		}
		prev = d
	}
}

func TestPolicy_Cancel(t *testing.T) {
	clk := clock.Fake(epoch)
	p := New(Config{}, clk)

	p.Schedule(func() { t.Error("cancelled retry fired") })
	p.Cancel()

	if p.State().Pending() {
		t.Error("pending after Cancel")
	}
	if p.State().Attempt != 1 {
		t.Errorf("Attempt = %d, want 1 (Cancel keeps the counter)", p.State().Attempt)
	}
	clk.Advance(time.Minute)
}

func TestPolicy_Reset(t *testing.T) {
	clk := clock.Fake(epoch)
	p := New(Config{}, clk)

	for i := 0; i < 3; i++ {
		p.Schedule(func() {})
		clk.Advance(time.Minute)
	}
	p.Reset()

	if got := p.State().Attempt; got != 0 {
		t.Errorf("Attempt = %d, want 0", got)
	}
	delay, ok := p.Schedule(func() {})
	if !ok || delay != time.Second {
		t.Errorf("Schedule after Reset = (%v, %v), want (1s, true)", delay, ok)
	}
}

func TestPolicy_ScheduleReplacesPending(t *testing.T) {
	clk := clock.Fake(epoch)
	p := New(Config{}, clk)

	calls := 0
	p.Schedule(func() { t.Error("replaced retry fired") })
	p.Schedule(func() { calls++ })

	if clk.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", clk.PendingCount())
	}
	clk.Advance(time.Minute)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
