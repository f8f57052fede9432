package counter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementCritical_NoLostUpdates(t *testing.T) {
	testCases := []struct {
		name    string
		callers int
		calls   int
	}{
		{name: "single caller", callers: 1, calls: 500},
		{name: "few callers", callers: 4, calls: 1000},
		{name: "many callers", callers: 32, calls: 250},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewSpinlockCounter()
			var wg sync.WaitGroup
			for i := 0; i < tc.callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < tc.calls; j++ {
						IncrementCritical(c)
					}
				}()
			}
			wg.Wait()
			assert.EqualValues(t, tc.callers*tc.calls, c.Load())
		})
	}
}

func TestIncrementCritical_ReturnsNewValue(t *testing.T) {
	c := NewSpinlockCounter()
	assert.EqualValues(t, 1, IncrementCritical(c))
	assert.EqualValues(t, 2, IncrementCritical(c))
	assert.EqualValues(t, 2, c.Load())
}

func TestTryIncrementBlocking(t *testing.T) {
	c := NewBlockingCounter()
	assert.True(t, TryIncrementBlocking(c))
	value, ok := c.TryIncrement("task")
	assert.True(t, ok)
	assert.EqualValues(t, 2, value)
}

func TestTryIncrementBlocking_FailsFastWhenHeld(t *testing.T) {
	c := NewBlockingCounter()
	require.True(t, c.Guard().TryLock("holder"))

	for i := 0; i < 100; i++ {
		started := time.Now()
		ok := TryIncrementBlocking(c)
		elapsed := time.Since(started)
		assert.False(t, ok)
		assert.Less(t, elapsed, 10*time.Millisecond)
	}
	c.Guard().Unlock()

	value, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, value)
}

func TestTryIncrementBlocking_ConcurrentSuccessesAreExact(t *testing.T) {
	c := NewBlockingCounter()
	var successes sync.WaitGroup
	var mux sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		successes.Add(1)
		go func() {
			defer successes.Done()
			for j := 0; j < 500; j++ {
				if TryIncrementBlocking(c) {
					mux.Lock()
					total++
					mux.Unlock()
				}
			}
		}()
	}
	successes.Wait()
	value, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, total, value)
}

func TestState_NoCrossContamination(t *testing.T) {
	state := NewState()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		TryIncrementBlocking(state.Blocking)
	}
	values, err := state.Values(ctx)
	require.NoError(t, err)
	assert.Equal(t, Values{Blocking: 5, Critical: 0}, values)

	for i := 0; i < 3; i++ {
		IncrementCritical(state.Critical)
	}
	values, err = state.Values(ctx)
	require.NoError(t, err)
	assert.Equal(t, Values{Blocking: 5, Critical: 3}, values)
}

func TestBlockingCounter_LoadCancelled(t *testing.T) {
	c := NewBlockingCounter()
	require.True(t, c.Guard().TryLock("holder"))
	defer c.Guard().Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Load(ctx)
	assert.Error(t, err)
}
