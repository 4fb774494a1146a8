// Package conc provides the small concurrency primitives (component C7)
// clients use around the store: a reusable barrier, a counting semaphore,
// an auto/manual-reset event, and a scoped lock guard. The store itself
// performs no internal locking above the single-writer transaction
// discipline described in spec §5 — these exist for client code, such as
// cmd/pathfind's concurrent directory walk.
package conc

import "sync"

// Barrier is a reusable N-goroutine rendezvous point, the Go analogue of a
// POSIX/Windows barrier: N callers must all call Wait before any of them
// proceeds, after which the barrier resets for its next generation.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	waiting    int
	generation uint64
}

// NewBarrier builds a barrier for exactly n participants.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		n = 1
	}
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n goroutines have called Wait for the current
// generation, then releases all of them and starts a new generation.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}

// N reports the number of participants this barrier was built for.
func (b *Barrier) N() int { return b.n }
