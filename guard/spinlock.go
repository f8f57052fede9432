package guard

import (
	"runtime"
	"sync/atomic"
)

// spinBudget is the number of failed polls between relax calls on single-CPU processes
const spinBudget = 128

// SpinlockStats reports spinlock contention
type SpinlockStats struct {
	Acquisitions uint64
	Spins        uint64
}

// Spinlock is a cross-core critical section guard.
//
// Enter busy-waits until the lock is free; it never sleeps and never parks
// the goroutine. While held, the holder is locked to its OS thread so the
// critical section cannot migrate between threads. Critical sections must be
// short and must never block: there is no fairness, and a waiter can starve
// under heavy multi-core contention.
//
// With GOMAXPROCS == 1 spinning would only burn the single processor the
// holder needs, so the spin loop yields after spinBudget failed polls.
type Spinlock struct {
	state        atomic.Uint32
	acquisitions atomic.Uint64
	spins        atomic.Uint64
	singleCore   bool
}

// NewSpinlock creates an unlocked spinlock sized for the current GOMAXPROCS
func NewSpinlock() *Spinlock {
	return &Spinlock{singleCore: runtime.GOMAXPROCS(0) == 1}
}

// Enter acquires the critical section, spinning until it is free
func (s *Spinlock) Enter() {
	runtime.LockOSThread()
	miss := 0
	for !s.state.CompareAndSwap(0, 1) {
		// test-and-test-and-set: poll with plain loads until release
		for s.state.Load() != 0 {
			s.spins.Add(1)
			if !s.singleCore {
				continue
			}
			if miss++; miss >= spinBudget {
				miss = 0
				runtime.Gosched()
			}
		}
	}
	s.acquisitions.Add(1)
}

// TryEnter acquires the critical section only if it is free
func (s *Spinlock) TryEnter() bool {
	runtime.LockOSThread()
	if s.state.CompareAndSwap(0, 1) {
		s.acquisitions.Add(1)
		return true
	}
	runtime.UnlockOSThread()
	return false
}

// Exit releases the critical section. It panics when the lock is not held.
func (s *Spinlock) Exit() {
	if !s.state.CompareAndSwap(1, 0) {
		panic("guard: exit of free spinlock")
	}
	runtime.UnlockOSThread()
}

// Held reports whether the critical section is currently taken
func (s *Spinlock) Held() bool {
	return s.state.Load() != 0
}

// Stats returns contention counters
func (s *Spinlock) Stats() SpinlockStats {
	return SpinlockStats{
		Acquisitions: s.acquisitions.Load(),
		Spins:        s.spins.Load(),
	}
}
