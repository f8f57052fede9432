// Package counter holds the shared state mutated by periodic tasks: one
// counter guarded by a blocking mutex and one guarded by a spinlock.
//
// Each value is read or written only while its guard is held; the two
// counters never share a guard.
package counter

import (
	"context"

	"github.com/viant/coretask/guard"
)

const (
	// Blocking names the mutex guarded counter in observations
	Blocking = "blocking"
	// Critical names the spinlock guarded counter in observations
	Critical = "critical"
)

// BlockingCounter is an integer guarded by a blocking mutex
type BlockingCounter struct {
	value int64
	guard *guard.Mutex
}

// NewBlockingCounter creates a counter with its guard
func NewBlockingCounter() *BlockingCounter {
	return &BlockingCounter{guard: guard.NewMutex()}
}

// TryIncrement increments the counter without waiting for the guard.
// It returns the new value and true on success, or false when the guard is
// held elsewhere; a missed attempt is not retried.
func (c *BlockingCounter) TryIncrement(owner string) (int64, bool) {
	if !c.guard.TryLock(owner) {
		return 0, false
	}
	c.value++
	value := c.value
	c.guard.Unlock()
	return value, true
}

// Load waits for the guard and returns the current value
func (c *BlockingCounter) Load(ctx context.Context) (int64, error) {
	if err := c.guard.Lock(ctx, "load", 0); err != nil {
		return 0, err
	}
	value := c.value
	c.guard.Unlock()
	return value, nil
}

// Guard exposes the mutex, mainly to hold it from tests and diagnostics
func (c *BlockingCounter) Guard() *guard.Mutex {
	return c.guard
}

// SpinlockCounter is an integer guarded by a cross-core spinlock
type SpinlockCounter struct {
	value int64
	guard *guard.Spinlock
}

// NewSpinlockCounter creates a counter with its guard
func NewSpinlockCounter() *SpinlockCounter {
	return &SpinlockCounter{guard: guard.NewSpinlock()}
}

// Increment enters the critical section, increments and returns the new value
func (c *SpinlockCounter) Increment() int64 {
	c.guard.Enter()
	c.value++
	value := c.value
	c.guard.Exit()
	return value
}

// Load returns the current value read inside the critical section
func (c *SpinlockCounter) Load() int64 {
	c.guard.Enter()
	value := c.value
	c.guard.Exit()
	return value
}

// Guard exposes the spinlock
func (c *SpinlockCounter) Guard() *guard.Spinlock {
	return c.guard
}

// TryIncrementBlocking is the best-effort blocking counter update
func TryIncrementBlocking(c *BlockingCounter) bool {
	_, ok := c.TryIncrement("")
	return ok
}

// IncrementCritical is the always-succeeding spinlock counter update
func IncrementCritical(c *SpinlockCounter) int64 {
	return c.Increment()
}
