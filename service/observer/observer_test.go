package observer

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogSink(t *testing.T) {
	buffer := new(bytes.Buffer)
	sink := NewLogSink(log.New(buffer, "", 0))
	sink.Emit(&Observation{Task: "task2", Core: 1, Counter: "critical", Value: 7})
	assert.Equal(t, "task task2 on 1, critical counter is: 7\n", buffer.String())
}

func TestRecorder(t *testing.T) {
	recorder := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(core int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				recorder.Emit(&Observation{Task: "floating", Core: core % 2, Counter: "critical", Value: int64(j)})
			}
		}(i)
	}
	wg.Wait()
	recorder.Emit(&Observation{Task: "pinned", Core: 0, Counter: "blocking", Value: 1})

	assert.Equal(t, 101, recorder.Len())
	assert.Len(t, recorder.ByTask("floating"), 100)
	assert.Equal(t, map[int]int{0: 50, 1: 50}, recorder.Cores("floating"))
	assert.Equal(t, []int64{1}, recorder.Values("blocking"))
	assert.Len(t, recorder.Observations(), 101)
}

func TestMulti(t *testing.T) {
	first, second := NewRecorder(), NewRecorder()
	var count int
	sink := Multi{first, nil, second, Func(func(*Observation) { count++ }), TraceSink{}, Discard}
	sink.Emit(&Observation{Task: "a", Counter: "critical", Value: 1})
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
	assert.Equal(t, 1, count)
}
