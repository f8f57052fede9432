// Package progress provides a lightweight tracker that keeps per-task
// iteration counters (iterations, successful updates, missed best-effort
// attempts and the cores each iteration ran on). The scheduler updates it
// after every iteration; task bodies update it through Tick.Record.

package progress

import (
	"sort"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the scheduler or
// a task body.
type Delta struct {
	Iterations int
	Updates    int
	Missed     int
}

// Counters keeps aggregated values for a single task
type Counters struct {
	Iterations int64
	Updates    int64
	Missed     int64
	LastCore   int
	// Cores counts iterations per core; only cores with Iterations deltas are recorded.
	Cores map[int]int64
}

// CoreIDs returns the sorted list of cores the task was observed on
func (c Counters) CoreIDs() []int {
	ret := make([]int, 0, len(c.Cores))
	for id := range c.Cores {
		ret = append(ret, id)
	}
	sort.Ints(ret)
	return ret
}

func (c *Counters) clone() Counters {
	ret := *c
	ret.Cores = make(map[int]int64, len(c.Cores))
	for k, v := range c.Cores {
		ret.Cores[k] = v
	}
	return ret
}

// Progress keeps counters for every task of a runtime. It is safe for
// concurrent use.
type Progress struct {
	StartedAt time.Time

	tasks map[string]*Counters
	sync.Mutex
}

// New creates an empty tracker
func New() *Progress {
	return &Progress{StartedAt: time.Now(), tasks: make(map[string]*Counters)}
}

// Update applies the supplied delta to task counters
func (p *Progress) Update(task string, core int, d Delta) {
	if p == nil {
		return
	}

	p.Lock()
	counters, ok := p.tasks[task]
	if !ok {
		counters = &Counters{Cores: make(map[int]int64), LastCore: -1}
		p.tasks[task] = counters
	}
	counters.Iterations += int64(d.Iterations)
	counters.Updates += int64(d.Updates)
	counters.Missed += int64(d.Missed)
	if d.Iterations != 0 {
		counters.LastCore = core
		counters.Cores[core] += int64(d.Iterations)
	}
	p.Unlock()
}

// Task returns a copy of the task counters
func (p *Progress) Task(name string) (Counters, bool) {
	if p == nil {
		return Counters{}, false
	}
	p.Lock()
	defer p.Unlock()
	counters, ok := p.tasks[name]
	if !ok {
		return Counters{}, false
	}
	return counters.clone(), true
}

// Snapshot returns a copy of all task counters suitable for read-only inspection.
func (p *Progress) Snapshot() map[string]Counters {
	if p == nil {
		return nil
	}
	p.Lock()
	defer p.Unlock()
	ret := make(map[string]Counters, len(p.tasks))
	for name, counters := range p.tasks {
		ret[name] = counters.clone()
	}
	return ret
}
