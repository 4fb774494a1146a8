package conc

import "sync"

// Guard is a scoped lock acquisition: Lock acquires and returns a Guard
// whose Unlock releases it, the RAII analogue from spec §9's DESIGN NOTES,
// expressed the idiomatic Go way as `defer conc.Lock(&mu).Unlock()`.
type Guard struct {
	l sync.Locker
}

// Lock acquires l and returns a Guard for releasing it later.
func Lock(l sync.Locker) Guard {
	l.Lock()
	return Guard{l: l}
}

// Unlock releases the lock this guard holds.
func (g Guard) Unlock() {
	g.l.Unlock()
}
