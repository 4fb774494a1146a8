package conc

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBarrierReleasesAllParticipants(t *testing.T) {
	const n = 8
	b := NewBarrier(n)
	var arrived atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			arrived.Add(1)
			b.Wait()
		}()
	}
	wg.Wait()
	require.EqualValues(t, n, arrived.Load())
}

func TestBarrierIsReusable(t *testing.T) {
	b := NewBarrier(2)
	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			go func() {
				defer wg.Done()
				b.Wait()
			}()
		}
		wg.Wait()
	}
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	sem := NewSemaphore(2, 2)
	require.True(t, sem.Acquire(0))
	require.True(t, sem.Acquire(0))
	ok := sem.Acquire(10 * time.Millisecond)
	require.False(t, ok, "third acquire should time out")
	sem.Release(1)
	require.True(t, sem.Acquire(10*time.Millisecond))
}

func TestAutoResetEventWakesOneWaiter(t *testing.T) {
	e := NewEvent(false, false)
	var woke atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if e.Wait(time.Second) {
			woke.Add(1)
		}
	}()
	time.Sleep(10 * time.Millisecond)
	e.Signal()
	wg.Wait()
	require.EqualValues(t, 1, woke.Load())
}

func TestManualResetEventStaysSignaled(t *testing.T) {
	e := NewEvent(true, false)
	e.Signal()
	require.True(t, e.Wait(time.Second))
	require.True(t, e.Wait(time.Second))
	e.Reset()
	require.False(t, e.Wait(10*time.Millisecond))
}

func TestLockGuard(t *testing.T) {
	var mu sync.Mutex
	locked := false
	func() {
		defer Lock(&mu).Unlock()
		locked = true
	}()
	require.True(t, locked)
	// Lock must have been released by the deferred Unlock.
	require.True(t, mu.TryLock())
	mu.Unlock()
}
