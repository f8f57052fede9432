// Package guard provides the two synchronization disciplines used by the
// runtime: a blocking, priority-aware Mutex with a zero-wait TryLock, and a
// cross-core Spinlock critical section for short, non-blocking updates.
//
// A goroutine must hold at most one guard at a time.
package guard
