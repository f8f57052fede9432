// Package observer provides the observation sink every successful counter
// update reports to. Emit is fire-and-forget: sinks must not block the
// calling task and no ordering across tasks is guaranteed.
package observer

import (
	"log"
	"sync"
	"time"
)

// Observation describes one successful protected update
type Observation struct {
	Task    string    `json:"task"`
	Core    int       `json:"core"`
	Counter string    `json:"counter"`
	Value   int64     `json:"value"`
	At      time.Time `json:"at"`
}

// Sink receives observations
type Sink interface {
	Emit(observation *Observation)
}

// Func adapts a function to Sink
type Func func(observation *Observation)

// Emit calls fn
func (fn Func) Emit(observation *Observation) {
	fn(observation)
}

// LogSink writes a textual line per observation
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a log sink, nil logger uses log.Default()
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

// Emit prints the observation
func (s *LogSink) Emit(o *Observation) {
	s.logger.Printf("task %s on %d, %s counter is: %d", o.Task, o.Core, o.Counter, o.Value)
}

// Multi fans observations out to every sink in order
type Multi []Sink

// Emit forwards to all sinks
func (m Multi) Emit(o *Observation) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(o)
		}
	}
}

// Discard drops observations
var Discard Sink = Func(func(*Observation) {})

// Recorder keeps observations in memory; it is safe for concurrent use.
type Recorder struct {
	mux          sync.Mutex
	observations []Observation
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit stores a copy of the observation
func (r *Recorder) Emit(o *Observation) {
	r.mux.Lock()
	r.observations = append(r.observations, *o)
	r.mux.Unlock()
}

// Observations returns a copy of everything recorded so far
func (r *Recorder) Observations() []Observation {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]Observation(nil), r.observations...)
}

// ByTask returns observations emitted by task
func (r *Recorder) ByTask(task string) []Observation {
	r.mux.Lock()
	defer r.mux.Unlock()
	var ret []Observation
	for _, o := range r.observations {
		if o.Task == task {
			ret = append(ret, o)
		}
	}
	return ret
}

// Cores returns the distinct cores task was observed on
func (r *Recorder) Cores(task string) map[int]int {
	ret := make(map[int]int)
	for _, o := range r.ByTask(task) {
		ret[o.Core]++
	}
	return ret
}

// Values returns values emitted for counter in emit order
func (r *Recorder) Values(counter string) []int64 {
	r.mux.Lock()
	defer r.mux.Unlock()
	var ret []int64
	for _, o := range r.observations {
		if o.Counter == counter {
			ret = append(ret, o.Value)
		}
	}
	return ret
}

// Len returns the number of recorded observations
func (r *Recorder) Len() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.observations)
}
