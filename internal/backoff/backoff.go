// Package backoff adapts the teacher's adaptive rate limiter
// (internal/ratelimit) away from a domain-sharded token bucket and circuit
// breaker toward the simpler per-kit shape spec.md §4.2 calls for: a poll
// delay that doubles on each consecutive failure, caps at a maximum, and
// resets to the base delay on the next success.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Config bounds the delay a Backoff computes.
type Config struct {
	Base       time.Duration
	Max        time.Duration
	JitterFrac float64 // fraction of the computed delay to randomize, e.g. 0.1
}

// DefaultConfig matches spec.md §4.2: a 5s base poll doubling up to 5 minutes.
func DefaultConfig() Config {
	return Config{Base: 5 * time.Second, Max: 5 * time.Minute, JitterFrac: 0.1}
}

// Backoff tracks one kit's consecutive-failure streak and derives its next
// poll delay. Safe for concurrent use; each kit owns exactly one instance.
type Backoff struct {
	cfg  Config
	mu   sync.Mutex
	fails int
}

// New returns a Backoff starting at zero consecutive failures.
func New(cfg Config) *Backoff {
	if cfg.Base <= 0 {
		cfg.Base = DefaultConfig().Base
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultConfig().Max
	}
	return &Backoff{cfg: cfg}
}

// RecordSuccess resets the failure streak, so the next Delay call returns
// the base poll interval again.
func (b *Backoff) RecordSuccess() {
	b.mu.Lock()
	b.fails = 0
	b.mu.Unlock()
}

// RecordFailure extends the failure streak by one.
func (b *Backoff) RecordFailure() {
	b.mu.Lock()
	b.fails++
	b.mu.Unlock()
}

// ConsecutiveFailures returns the current streak length.
func (b *Backoff) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fails
}

// Delay returns the poll interval to wait before the next attempt:
// base·2^failures, capped at Max, with symmetric jitter applied.
func (b *Backoff) Delay() time.Duration {
	b.mu.Lock()
	fails := b.fails
	b.mu.Unlock()

	d := b.cfg.Base
	for i := 0; i < fails && d < b.cfg.Max; i++ {
		d *= 2
	}
	if d > b.cfg.Max {
		d = b.cfg.Max
	}
	if b.cfg.JitterFrac <= 0 {
		return d
	}
	jitter := time.Duration(float64(d) * b.cfg.JitterFrac * (rand.Float64()*2 - 1))
	d += jitter
	if d < 0 {
		d = b.cfg.Base
	}
	return d
}

// SleepWithContext waits for d or for done to close, whichever comes first,
// returning true if the full delay elapsed and false if done closed first.
func SleepWithContext(done <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
