package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/coretask/internal/affinity"
	"github.com/viant/coretask/progress"
)

// State represents task lifecycle state
type State int32

const (
	// Ready means the task waits for a core
	Ready State = iota
	// Running means an iteration executes on a core
	Running
	// Suspended means the task waits for its next period
	Suspended
	// Deleted means the control loop has exited
	Deleted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Body is one iteration of a task
type Body func(tick *Tick) error

// Descriptor defines a periodic task
type Descriptor struct {
	Name     string
	Affinity affinity.Affinity
	Period   time.Duration
	// Priority orders iterations waiting for the same core; higher runs first
	Priority int
	// StackSize is the requested stack budget in bytes, informational only
	StackSize int
	// Iterations bounds the task; the task deletes itself one period after
	// the last iteration. Zero runs until deleted.
	Iterations int
	Body       Body
}

// Tick is passed to every iteration
type Tick struct {
	Task      string
	Core      int
	Iteration uint64
	Priority  int
	ctx       context.Context
	tracker   *progress.Progress
}

// Context returns the iteration context; it is cancelled when the task is deleted
func (t *Tick) Context() context.Context {
	return t.ctx
}

// Record adds delta to the task progress on the current core
func (t *Tick) Record(delta progress.Delta) {
	t.tracker.Update(t.Task, t.Core, delta)
}

// Info is a point in time view of a task
type Info struct {
	Name       string        `json:"name" yaml:"name"`
	Affinity   string        `json:"affinity" yaml:"affinity"`
	Period     time.Duration `json:"period" yaml:"period"`
	Priority   int           `json:"priority" yaml:"priority"`
	StackSize  int           `json:"stackSize,omitempty" yaml:"stackSize,omitempty"`
	State      string        `json:"state" yaml:"state"`
	Iterations uint64        `json:"iterations" yaml:"iterations"`
}

// Task is a registered periodic task
type Task struct {
	desc       Descriptor
	scheduler  *Scheduler
	state      atomic.Int32
	iterations atomic.Uint64
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

func newTask(s *Scheduler, desc Descriptor) *Task {
	return &Task{desc: desc, scheduler: s, done: make(chan struct{})}
}

// Name returns the task name
func (t *Task) Name() string { return t.desc.Name }

// Descriptor returns the task definition
func (t *Task) Descriptor() Descriptor { return t.desc }

// State returns the current lifecycle state
func (t *Task) State() State { return State(t.state.Load()) }

// Iterations returns the number of completed iterations
func (t *Task) Iterations() uint64 { return t.iterations.Load() }

// Done is closed once the task control loop has exited
func (t *Task) Done() <-chan struct{} { return t.done }

// Info returns a task snapshot
func (t *Task) Info() Info {
	return Info{
		Name:       t.desc.Name,
		Affinity:   t.desc.Affinity.String(),
		Period:     t.desc.Period,
		Priority:   t.desc.Priority,
		StackSize:  t.desc.StackSize,
		State:      t.State().String(),
		Iterations: t.Iterations(),
	}
}

func (t *Task) delete() {
	if t.cancel != nil {
		t.cancel()
		return
	}
	t.finish()
}

func (t *Task) finish() {
	t.closeOnce.Do(func() {
		t.state.Store(int32(Deleted))
		close(t.done)
	})
}

// loop is the task control loop: dispatch one iteration, then suspend for
// the period. Deletion interrupts the wait immediately.
func (t *Task) loop() {
	s := t.scheduler
	defer s.taskWg.Done()
	defer t.finish()
	for iteration := uint64(1); ; iteration++ {
		if !t.dispatch(iteration) {
			return
		}
		t.state.Store(int32(Suspended))
		if t.desc.Iterations > 0 && iteration >= uint64(t.desc.Iterations) {
			if !t.wait() {
				return
			}
			s.logger.Printf("deleting task %s after %d iterations", t.desc.Name, iteration)
			s.mux.Lock()
			s.forget(t)
			s.mux.Unlock()
			return
		}
		if !t.wait() {
			return
		}
		t.state.Store(int32(Ready))
	}
}

// dispatch submits one iteration and waits for the core to finish it
func (t *Task) dispatch(iteration uint64) bool {
	if t.ctx.Err() != nil {
		return false
	}
	s := t.scheduler
	j := &job{task: t, iteration: iteration, priority: t.desc.Priority, done: make(chan struct{})}
	s.place(t).submit(j)
	select {
	case <-j.done:
		return j.ran && t.ctx.Err() == nil
	case <-s.ctx.Done():
		return false
	}
}

// wait suspends the task for one period; false means the task was cancelled
func (t *Task) wait() bool {
	timer := time.NewTimer(t.desc.Period)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.ctx.Done():
		return false
	}
}
