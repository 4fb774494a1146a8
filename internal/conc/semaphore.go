package conc

import "time"

// Semaphore is a bounded counting semaphore: Acquire blocks (optionally
// with a timeout) until a token is available, Release(n) returns n tokens.
type Semaphore struct {
	tokens chan struct{}
	max    int
}

// NewSemaphore creates a semaphore with the given maximum count and initial
// token count (0 <= initialCount <= maxCount).
func NewSemaphore(maxCount, initialCount int) *Semaphore {
	if maxCount <= 0 {
		maxCount = 1
	}
	if initialCount < 0 {
		initialCount = 0
	}
	if initialCount > maxCount {
		initialCount = maxCount
	}
	s := &Semaphore{tokens: make(chan struct{}, maxCount), max: maxCount}
	for i := 0; i < initialCount; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Acquire blocks until a token is available or timeout elapses. A
// non-positive timeout blocks forever. ok is false if the timeout expired;
// expiry is reported only through that result, never as an error.
func (s *Semaphore) Acquire(timeout time.Duration) (ok bool) {
	if timeout <= 0 {
		<-s.tokens
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.tokens:
		return true
	case <-timer.C:
		return false
	}
}

// Release returns n tokens to the semaphore, up to its maximum count;
// excess releases beyond the maximum are dropped rather than blocking.
func (s *Semaphore) Release(n int) {
	for i := 0; i < n; i++ {
		select {
		case s.tokens <- struct{}{}:
		default:
			return
		}
	}
}

// Count returns the number of tokens currently available.
func (s *Semaphore) Count() int { return len(s.tokens) }
