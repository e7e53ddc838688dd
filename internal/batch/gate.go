package batch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate bounding the number of fetch attempts
// that are active at the same time. Waiters are admitted in FIFO order.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int

	active atomic.Int64
	peak   atomic.Int64
}

// NewGate creates a gate with the given number of slots. Capacity below 1
// is raised to 1.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is available or ctx is done. It returns the
// context error when ctx ends first, in which case no slot is held.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release returns a slot previously obtained with Acquire.
func (g *Gate) Release() {
	g.active.Add(-1)
	g.sem.Release(1)
}

// Capacity returns the number of slots.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Active returns the number of slots currently held.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Peak returns the highest number of slots held simultaneously so far.
func (g *Gate) Peak() int {
	return int(g.peak.Load())
}
