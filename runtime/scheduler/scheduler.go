package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/viant/coretask/internal/affinity"
	"github.com/viant/coretask/progress"
)

var (
	// ErrDuplicateTask is returned when a task name is already registered
	ErrDuplicateTask = errors.New("task already registered")
	// ErrInvalidCore is returned when a pinned core is outside the pool
	ErrInvalidCore = errors.New("invalid core")
	// ErrInvalidPeriod is returned for non-positive periods
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidTask is returned for descriptors without name or body
	ErrInvalidTask = errors.New("invalid task")
	// ErrTaskNotFound is returned when deleting an unknown task
	ErrTaskNotFound = errors.New("task not found")
	// ErrStopped is returned once the scheduler has been stopped
	ErrStopped = errors.New("scheduler stopped")
)

const (
	stateNew int32 = iota
	stateRunning
	stateStopped
)

// Config represents scheduler configuration
type Config struct {
	// Cores is the size of the fixed logical core pool
	Cores int `json:"cores" yaml:"cores"`
	// PinThreads binds each core thread to a physical CPU (best effort)
	PinThreads bool `json:"pinThreads" yaml:"pinThreads"`
}

// DefaultConfig returns the default two core configuration
func DefaultConfig() Config {
	return Config{Cores: 2}
}

// Scheduler runs periodic tasks on a fixed pool of logical cores
type Scheduler struct {
	config  Config
	cores   []*core
	tasks   map[string]*Task
	order   []*Task
	mux     sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	taskWg  sync.WaitGroup
	coreWg  sync.WaitGroup
	cursor  atomic.Uint64
	state   atomic.Int32
	stop    sync.Once
	tracker *progress.Progress
	logger  *log.Logger
}

// Option configures a scheduler
type Option func(s *Scheduler)

// WithLogger sets the logger used for pinning failures and task deletion
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithTracker sets the iteration tracker
func WithTracker(tracker *progress.Progress) Option {
	return func(s *Scheduler) {
		s.tracker = tracker
	}
}

// New creates a scheduler; cores start with Start
func New(config Config, options ...Option) (*Scheduler, error) {
	if config.Cores <= 0 {
		return nil, fmt.Errorf("%w: core count must be > 0, got %d", ErrInvalidCore, config.Cores)
	}
	s := &Scheduler{
		config: config,
		tasks:  make(map[string]*Task),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.tracker == nil {
		s.tracker = progress.New()
	}
	s.cores = make([]*core, config.Cores)
	for i := range s.cores {
		s.cores[i] = newCore(i, s)
	}
	return s, nil
}

// Start launches the core workers and every task registered so far
func (s *Scheduler) Start(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	switch s.state.Load() {
	case stateStopped:
		return ErrStopped
	case stateRunning:
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state.Store(stateRunning)
	for _, c := range s.cores {
		s.coreWg.Add(1)
		go c.run(s.ctx)
	}
	for _, t := range s.order {
		s.launch(t)
	}
	return nil
}

// Register validates and adds a task. Once the scheduler runs, the task
// starts immediately; its first iteration is dispatched without delay.
func (s *Scheduler) Register(descriptor Descriptor) (*Task, error) {
	if err := s.validate(&descriptor); err != nil {
		return nil, err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.state.Load() == stateStopped {
		return nil, ErrStopped
	}
	if _, ok := s.tasks[descriptor.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, descriptor.Name)
	}
	t := newTask(s, descriptor)
	s.tasks[descriptor.Name] = t
	s.order = append(s.order, t)
	if s.state.Load() == stateRunning {
		s.launch(t)
	}
	return t, nil
}

func (s *Scheduler) validate(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name was empty", ErrInvalidTask)
	}
	if d.Body == nil {
		return fmt.Errorf("%w: %s has no body", ErrInvalidTask, d.Name)
	}
	if d.Period <= 0 {
		return fmt.Errorf("%w: %s period %v", ErrInvalidPeriod, d.Name, d.Period)
	}
	if d.Iterations < 0 {
		return fmt.Errorf("%w: %s iterations %d", ErrInvalidTask, d.Name, d.Iterations)
	}
	if d.Affinity.Pinned() && d.Affinity.CoreID() >= len(s.cores) {
		return fmt.Errorf("%w: %s pinned to core %d, pool has %d", ErrInvalidCore, d.Name, d.Affinity.CoreID(), len(s.cores))
	}
	return nil
}

// launch starts the task control loop; caller holds s.mux
func (s *Scheduler) launch(t *Task) {
	t.ctx, t.cancel = context.WithCancel(s.ctx)
	s.taskWg.Add(1)
	go t.loop()
}

// Delete cancels a task. An iteration already executing on a core completes;
// a task suspended for its period stops waiting immediately. Use Task.Done to
// wait for the control loop to exit.
func (s *Scheduler) Delete(name string) error {
	s.mux.Lock()
	t, ok := s.tasks[name]
	if ok {
		s.forget(t)
	}
	s.mux.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	t.delete()
	return nil
}

// forget removes t from the registry; caller holds s.mux
func (s *Scheduler) forget(t *Task) {
	if s.tasks[t.desc.Name] != t {
		return
	}
	delete(s.tasks, t.desc.Name)
	for i, candidate := range s.order {
		if candidate == t {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Stop cancels every task, waits for control loops and cores to exit. Tasks
// registered on a scheduler that never started are marked deleted.
func (s *Scheduler) Stop() {
	s.stop.Do(func() {
		s.mux.Lock()
		previous := s.state.Swap(stateStopped)
		if previous != stateRunning {
			for _, t := range s.order {
				t.finish()
			}
		}
		s.mux.Unlock()
		if previous != stateRunning {
			return
		}
		s.cancel()
		s.taskWg.Wait()
		s.coreWg.Wait()
	})
}

// Task returns a registered task
func (s *Scheduler) Task(name string) (*Task, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	t, ok := s.tasks[name]
	return t, ok
}

// Tasks returns registered tasks in registration order
func (s *Scheduler) Tasks() []*Task {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return append([]*Task(nil), s.order...)
}

// Cores returns the size of the core pool
func (s *Scheduler) Cores() int {
	return len(s.cores)
}

// Tracker returns the iteration tracker
func (s *Scheduler) Tracker() *progress.Progress {
	return s.tracker
}

// place selects the core for the next iteration of t. Pinned tasks always get
// their core; floating tasks get the least loaded core, ties broken by a
// rotating cursor.
func (s *Scheduler) place(t *Task) *core {
	if t.desc.Affinity.Pinned() {
		return s.cores[t.desc.Affinity.CoreID()]
	}
	n := len(s.cores)
	start := int(s.cursor.Add(1) % uint64(n))
	best := s.cores[start]
	for i := 1; i < n; i++ {
		candidate := s.cores[(start+i)%n]
		if candidate.load.Load() < best.load.Load() {
			best = candidate
		}
	}
	return best
}

// physicalCPU maps a logical core onto the CPUs available to the process
func physicalCPU(id int) int {
	available := affinity.AvailableCPUs()
	if available <= 0 {
		return id
	}
	return id % available
}
