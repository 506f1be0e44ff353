// Package workerpool adapts the teacher's resource manager bounded semaphore
// (internal/resources.Manager.Acquire/Release) into a standalone primitive
// for capping concurrent work: the HTTP collector runs each kit's fetch and
// JSON decoding inside a Pool slot.
package workerpool

import "context"

// Pool bounds concurrent access to a limited resource (a CPU budget, a
// connection limit) to maxInFlight simultaneous holders.
type Pool struct {
	slots chan struct{}
}

// New creates a Pool allowing up to maxInFlight concurrent Acquire holders.
// maxInFlight <= 0 means unbounded.
func New(maxInFlight int) *Pool {
	p := &Pool{}
	if maxInFlight > 0 {
		p.slots = make(chan struct{}, maxInFlight)
	}
	return p
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if p.slots == nil {
		return nil
	}
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously returned by Acquire.
func (p *Pool) Release() {
	if p.slots == nil {
		return
	}
	select {
	case <-p.slots:
	default:
	}
}

// InFlight returns the number of slots currently held.
func (p *Pool) InFlight() int {
	if p.slots == nil {
		return 0
	}
	return len(p.slots)
}

// Do runs fn while holding a slot, blocking on Acquire first.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn()
}

// QueueDepth tracks a producer/consumer queue's backlog for the high/low
// water-mark backpressure the Persistence Writer and ingest loops share
// (spec.md §5): collectors pause at HighWater and resume at LowWater.
type QueueDepth struct {
	HighWater int
	LowWater  int
}

// NewQueueDepth returns a QueueDepth tracker with the given watermarks.
func NewQueueDepth(high, low int) *QueueDepth {
	return &QueueDepth{HighWater: high, LowWater: low}
}

// ShouldPause reports whether producers should stop enqueueing given the
// current backlog size.
func (q *QueueDepth) ShouldPause(current int) bool { return current >= q.HighWater }

// ShouldResume reports whether a paused producer may resume.
func (q *QueueDepth) ShouldResume(current int) bool { return current <= q.LowWater }
