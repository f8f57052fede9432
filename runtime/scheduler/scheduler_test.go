package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/coretask/internal/affinity"
)

func newTestScheduler(t *testing.T, cores int) *Scheduler {
	t.Helper()
	s, err := New(Config{Cores: cores}, WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s
}

func waitDone(t *testing.T, task *Task, timeout time.Duration) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(timeout):
		t.Fatalf("task %s did not finish within %v", task.Name(), timeout)
	}
}

func noop(*Tick) error { return nil }

func TestScheduler_Register_Validation(t *testing.T) {
	s, err := New(Config{Cores: 2})
	require.NoError(t, err)

	testCases := []struct {
		name        string
		descriptor  Descriptor
		expectError error
	}{
		{name: "empty name", descriptor: Descriptor{Period: time.Second, Body: noop}, expectError: ErrInvalidTask},
		{name: "no body", descriptor: Descriptor{Name: "a", Period: time.Second}, expectError: ErrInvalidTask},
		{name: "zero period", descriptor: Descriptor{Name: "a", Body: noop}, expectError: ErrInvalidPeriod},
		{name: "negative iterations", descriptor: Descriptor{Name: "a", Period: time.Second, Iterations: -1, Body: noop}, expectError: ErrInvalidTask},
		{name: "core out of range", descriptor: Descriptor{Name: "a", Period: time.Second, Affinity: affinity.Core(2), Body: noop}, expectError: ErrInvalidCore},
		{name: "valid pinned", descriptor: Descriptor{Name: "a", Period: time.Second, Affinity: affinity.Core(1), Body: noop}},
		{name: "duplicate", descriptor: Descriptor{Name: "a", Period: time.Second, Affinity: affinity.Any, Body: noop}, expectError: ErrDuplicateTask},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := s.Register(tc.descriptor)
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, task)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Ready, task.State())
		})
	}
	_, err = New(Config{})
	assert.ErrorIs(t, err, ErrInvalidCore)
}

func TestScheduler_PinnedTaskStaysOnCore(t *testing.T) {
	s := newTestScheduler(t, 2)
	var offCore atomic.Int32
	task, err := s.Register(Descriptor{
		Name:       "pinned",
		Affinity:   affinity.Core(1),
		Period:     200 * time.Microsecond,
		Iterations: 1000,
		Body: func(tick *Tick) error {
			if tick.Core != 1 {
				offCore.Add(1)
			}
			return nil
		},
	})
	require.NoError(t, err)
	waitDone(t, task, 20*time.Second)

	assert.EqualValues(t, 1000, task.Iterations())
	assert.EqualValues(t, 0, offCore.Load())
	counters, ok := s.Tracker().Task("pinned")
	require.True(t, ok)
	assert.Equal(t, []int{1}, counters.CoreIDs())
	assert.EqualValues(t, 1000, counters.Iterations)
	_, registered := s.Task("pinned")
	assert.False(t, registered)
	assert.Equal(t, Deleted, task.State())
}

func TestScheduler_FloatingTaskMigrates(t *testing.T) {
	s := newTestScheduler(t, 2)
	task, err := s.Register(Descriptor{
		Name:       "floating",
		Affinity:   affinity.Any,
		Period:     time.Millisecond,
		Iterations: 20,
		Body:       noop,
	})
	require.NoError(t, err)
	waitDone(t, task, 10*time.Second)

	counters, ok := s.Tracker().Task("floating")
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, counters.CoreIDs())
	assert.EqualValues(t, 20, counters.Iterations)
}

func TestScheduler_CoreRunsOneIterationAtATime(t *testing.T) {
	s := newTestScheduler(t, 1)
	var running, overlaps atomic.Int32
	body := func(tick *Tick) error {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(100 * time.Microsecond)
		running.Add(-1)
		return nil
	}
	var tasks []*Task
	for _, name := range []string{"a", "b", "c"} {
		task, err := s.Register(Descriptor{Name: name, Affinity: affinity.Core(0), Period: time.Millisecond, Iterations: 30, Body: body})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	for _, task := range tasks {
		waitDone(t, task, 10*time.Second)
		assert.EqualValues(t, 30, task.Iterations())
	}
	assert.EqualValues(t, 0, overlaps.Load())
}

func TestScheduler_DeleteWhileSuspended(t *testing.T) {
	s := newTestScheduler(t, 2)
	var calls atomic.Int32
	task, err := s.Register(Descriptor{
		Name:     "slow",
		Affinity: affinity.Core(0),
		Period:   time.Hour,
		Body: func(tick *Tick) error {
			calls.Add(1)
			return nil
		},
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return task.State() == Suspended
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, s.Delete("slow"))
	waitDone(t, task, time.Second)

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, task.Iterations())
	counters, _ := s.Tracker().Task("slow")
	assert.EqualValues(t, 1, counters.Iterations)
	assert.Equal(t, Deleted, task.State())
	assert.ErrorIs(t, s.Delete("slow"), ErrTaskNotFound)
	assert.Empty(t, s.Tasks())
}

func TestScheduler_DeleteBeforeStart(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	task, err := s.Register(Descriptor{Name: "never", Period: time.Second, Body: noop})
	require.NoError(t, err)
	require.NoError(t, s.Delete("never"))
	waitDone(t, task, time.Second)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.EqualValues(t, 0, task.Iterations())
}

func TestScheduler_BodyFailures(t *testing.T) {
	s := newTestScheduler(t, 1)
	task, err := s.Register(Descriptor{
		Name:       "failing",
		Period:     time.Millisecond,
		Iterations: 4,
		Body: func(tick *Tick) error {
			if tick.Iteration%2 == 0 {
				panic("boom")
			}
			return errors.New("failed")
		},
	})
	require.NoError(t, err)
	waitDone(t, task, 5*time.Second)
	assert.EqualValues(t, 4, task.Iterations())
}

func TestScheduler_Stop(t *testing.T) {
	s, err := New(DefaultConfig(), WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	task, err := s.Register(Descriptor{Name: "loop", Period: time.Millisecond, Body: noop})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return task.Iterations() > 2 }, 5*time.Second, time.Millisecond)

	s.Stop()
	s.Stop()
	waitDone(t, task, time.Second)
	iterations := task.Iterations()
	counters, _ := s.Tracker().Task("loop")
	assert.EqualValues(t, iterations, counters.Iterations)

	_, err = s.Register(Descriptor{Name: "late", Period: time.Millisecond, Body: noop})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	first, err := s.Register(Descriptor{Name: "first", Period: time.Second, Body: noop})
	require.NoError(t, err)
	second, err := s.Register(Descriptor{Name: "second", Affinity: affinity.Core(1), Period: time.Second, Body: noop})
	require.NoError(t, err)

	s.Stop()
	for _, task := range []*Task{first, second} {
		waitDone(t, task, 500*time.Millisecond)
		assert.Equal(t, Deleted, task.State(), task.Name())
		assert.EqualValues(t, 0, task.Iterations(), task.Name())
	}
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)
}

func TestReadyQueue_Order(t *testing.T) {
	q := &readyQueue{}
	jobs := []*job{
		{priority: 0, seq: 1},
		{priority: 5, seq: 2},
		{priority: 0, seq: 3},
		{priority: 5, seq: 4},
		{priority: 1, seq: 5},
	}
	for _, j := range jobs {
		heap.Push(q, j)
	}
	var actual []uint64
	for q.Len() > 0 {
		actual = append(actual, heap.Pop(q).(*job).seq)
	}
	assert.Equal(t, []uint64{2, 4, 5, 1, 3}, actual)
}

func TestTask_Info(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	task, err := s.Register(Descriptor{Name: "info", Affinity: affinity.Core(1), Period: 250 * time.Millisecond, Priority: 2, StackSize: 10000, Body: noop})
	require.NoError(t, err)
	assert.Equal(t, Info{Name: "info", Affinity: "1", Period: 250 * time.Millisecond, Priority: 2, StackSize: 10000, State: "ready"}, task.Info())
}
