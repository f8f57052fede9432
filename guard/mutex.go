package guard

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Mutex is a blocking, priority-aware mutual exclusion lock.
//
// TryLock never waits. Lock and LockTimeout queue the caller; on Unlock the
// lock is handed directly to the highest priority waiter (FIFO among equal
// priorities), so a free lock is never observed while waiters exist.
// Priority inheritance is not implemented.
type Mutex struct {
	mu      sync.Mutex
	held    bool
	owner   string
	seq     uint64
	waiters waiterQueue
}

type waiter struct {
	owner    string
	priority int
	seq      uint64
	index    int
	granted  bool
	ready    chan struct{}
}

// NewMutex creates an unlocked mutex
func NewMutex() *Mutex {
	return &Mutex{}
}

// TryLock acquires the lock only if it is free and returns immediately
func (m *Mutex) TryLock(owner string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return false
	}
	m.held = true
	m.owner = owner
	return true
}

// Lock blocks until the lock is acquired or ctx is done.
func (m *Mutex) Lock(ctx context.Context, owner string, priority int) error {
	w := m.enqueue(owner, priority)
	if w == nil {
		return nil
	}
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if m.abandon(w) {
			return ctx.Err()
		}
		// granted concurrently with cancellation
		return nil
	}
}

// LockTimeout waits up to wait for the lock. A zero wait is equivalent to TryLock,
// a negative wait blocks without a deadline.
func (m *Mutex) LockTimeout(owner string, priority int, wait time.Duration) bool {
	if wait == 0 {
		return m.TryLock(owner)
	}
	ctx := context.Background()
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	return m.Lock(ctx, owner, priority) == nil
}

// Unlock releases the lock, handing it over to the next waiter if any.
// It panics when the lock is not held.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		panic("guard: unlock of unlocked mutex")
	}
	if m.waiters.Len() == 0 {
		m.held = false
		m.owner = ""
		return
	}
	next := heap.Pop(&m.waiters).(*waiter)
	next.granted = true
	m.owner = next.owner
	close(next.ready)
}

// Owner returns the current holder name, empty when unlocked
func (m *Mutex) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Locked reports whether the lock is currently held
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// Waiting returns the number of blocked acquirers
func (m *Mutex) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Len()
}

// enqueue takes the lock when free (returning nil) or registers a waiter
func (m *Mutex) enqueue(owner string, priority int) *waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		m.held = true
		m.owner = owner
		return nil
	}
	m.seq++
	w := &waiter{owner: owner, priority: priority, seq: m.seq, ready: make(chan struct{})}
	heap.Push(&m.waiters, w)
	return w
}

// abandon removes a cancelled waiter; it returns false when the lock was already granted
func (m *Mutex) abandon(w *waiter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.granted {
		return false
	}
	heap.Remove(&m.waiters, w.index)
	return true
}

// waiterQueue orders waiters by priority (desc) then arrival (asc)
type waiterQueue []*waiter

func (q waiterQueue) Len() int { return len(q) }

func (q waiterQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q waiterQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waiterQueue) Push(x any) {
	w := x.(*waiter)
	w.index = len(*q)
	*q = append(*q, w)
}

func (q *waiterQueue) Pop() any {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*q = old[:n-1]
	return w
}
