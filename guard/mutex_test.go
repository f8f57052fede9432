package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_TryLock(t *testing.T) {
	m := NewMutex()
	assert.True(t, m.TryLock("a"))
	assert.Equal(t, "a", m.Owner())
	assert.True(t, m.Locked())

	started := time.Now()
	assert.False(t, m.TryLock("b"))
	assert.Less(t, time.Since(started), 50*time.Millisecond)
	assert.Equal(t, "a", m.Owner())

	m.Unlock()
	assert.False(t, m.Locked())
	assert.Equal(t, "", m.Owner())
	assert.True(t, m.TryLock("b"))
	m.Unlock()
}

func TestMutex_UnlockUnlocked(t *testing.T) {
	m := NewMutex()
	assert.Panics(t, func() { m.Unlock() })
}

func TestMutex_LockHandOffByPriority(t *testing.T) {
	m := NewMutex()
	require.True(t, m.TryLock("holder"))

	var mux sync.Mutex
	var order []string
	var wg sync.WaitGroup
	start := func(name string, priority int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Lock(context.Background(), name, priority))
			mux.Lock()
			order = append(order, name)
			mux.Unlock()
			m.Unlock()
		}()
	}
	start("low", 1)
	waitFor(t, func() bool { return m.Waiting() == 1 })
	start("high", 5)
	waitFor(t, func() bool { return m.Waiting() == 2 })
	start("low-2", 1)
	waitFor(t, func() bool { return m.Waiting() == 3 })

	m.Unlock()
	wg.Wait()
	assert.Equal(t, []string{"high", "low", "low-2"}, order)
	assert.False(t, m.Locked())
}

func TestMutex_LockCancelled(t *testing.T) {
	m := NewMutex()
	require.True(t, m.TryLock("holder"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Lock(ctx, "waiter", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, m.Waiting())
	assert.Equal(t, "holder", m.Owner())
	m.Unlock()
	assert.False(t, m.Locked())
}

func TestMutex_LockTimeout(t *testing.T) {
	m := NewMutex()
	assert.True(t, m.LockTimeout("a", 0, 0))
	assert.False(t, m.LockTimeout("b", 0, 0))
	assert.False(t, m.LockTimeout("b", 0, 10*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Unlock()
	}()
	assert.True(t, m.LockTimeout("c", 0, time.Second))
	assert.Equal(t, "c", m.Owner())
	m.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
