package reconnect

import (
	"math"
	"sync"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/clock"
)

// Defaults used when Config fields are zero.
const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
)

// Config configures a Policy.
type Config struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// State is a snapshot of the policy.
type State struct {
	// Attempt is the number of retries scheduled since the last Reset.
	Attempt int
	// ScheduledAt is when the pending retry fires. Zero when none is pending.
	ScheduledAt time.Time
}

// Pending reports whether a retry timer is armed.
func (s State) Pending() bool { return !s.ScheduledAt.IsZero() }

// Policy arms at most one retry timer at a time.
type Policy struct {
	cfg   Config
	clock clock.Clock

	mu          sync.Mutex
	attempt     int
	timer       *clock.Timer
	seq         uint64
	scheduledAt time.Time
}

// New creates a Policy. A nil clock uses the real clock.
func New(cfg Config, clk clock.Clock) *Policy {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Policy{cfg: cfg, clock: clk}
}

// Delay returns the wait before retry number attempt: BaseDelay doubled
// attempt times, saturating at the largest Duration.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.cfg.BaseDelay
	}
	if attempt >= 63 || p.cfg.BaseDelay > time.Duration(math.MaxInt64>>uint(attempt)) {
		return time.Duration(math.MaxInt64)
	}
	return p.cfg.BaseDelay << uint(attempt)
}

// MaxAttempts returns the configured retry limit.
func (p *Policy) MaxAttempts() int { return p.cfg.MaxAttempts }

// Schedule arms a timer that calls fn after the current backoff delay and
// increments the attempt counter. Any timer already pending is replaced.
// It returns false, without arming anything, once MaxAttempts retries
// have been scheduled.
func (p *Policy) Schedule(fn func()) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempt >= p.cfg.MaxAttempts {
		return 0, false
	}

	p.stopLocked()

	delay := p.Delay(p.attempt)
	p.attempt++
	p.seq++
	seq := p.seq
	p.scheduledAt = p.clock.Now().Add(delay)
	p.timer = p.clock.AfterFunc(delay, func() {
		p.mu.Lock()
		if seq != p.seq {
			// Cancelled or replaced after the timer started firing.
			p.mu.Unlock()
			return
		}
		p.timer = nil
		p.scheduledAt = time.Time{}
		p.mu.Unlock()

		fn()
	})

	return delay, true
}

// Cancel stops the pending timer, if any. The attempt counter is kept.
func (p *Policy) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Reset cancels the pending timer and zeroes the attempt counter.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.attempt = 0
}

// Exhausted reports whether no further retry can be scheduled.
func (p *Policy) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt >= p.cfg.MaxAttempts
}

// State returns a snapshot of the attempt counter and pending timer.
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{Attempt: p.attempt, ScheduledAt: p.scheduledAt}
}

func (p *Policy) stopLocked() {
	p.seq++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.scheduledAt = time.Time{}
}
