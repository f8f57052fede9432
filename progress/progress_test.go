package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	p := New()
	p.Update("task1", 0, Delta{Iterations: 1, Updates: 1})
	p.Update("task1", 1, Delta{Iterations: 1, Missed: 1})
	p.Update("task1", 1, Delta{Updates: 1})

	counters, ok := p.Task("task1")
	assert.True(t, ok)
	assert.EqualValues(t, 2, counters.Iterations)
	assert.EqualValues(t, 2, counters.Updates)
	assert.EqualValues(t, 1, counters.Missed)
	assert.Equal(t, 1, counters.LastCore)
	assert.Equal(t, []int{0, 1}, counters.CoreIDs())

	_, ok = p.Task("missing")
	assert.False(t, ok)
}

func TestProgress_SnapshotIsCopy(t *testing.T) {
	p := New()
	p.Update("task1", 0, Delta{Iterations: 1})
	snapshot := p.Snapshot()
	snapshot["task1"].Cores[5] = 10
	p.Update("task1", 0, Delta{Iterations: 1})

	counters, _ := p.Task("task1")
	assert.EqualValues(t, 2, counters.Iterations)
	assert.Equal(t, []int{0}, counters.CoreIDs())
}

func TestProgress_Concurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(core int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Update("shared", core%2, Delta{Iterations: 1})
			}
		}(i)
	}
	wg.Wait()
	counters, _ := p.Task("shared")
	assert.EqualValues(t, 1000, counters.Iterations)
	assert.EqualValues(t, 1000, counters.Cores[0]+counters.Cores[1])
}

func TestProgress_NilTracker(t *testing.T) {
	var nilTracker *Progress
	nilTracker.Update("task", 0, Delta{Iterations: 1})
	assert.Nil(t, nilTracker.Snapshot())
	_, ok := nilTracker.Task("task")
	assert.False(t, ok)
}
