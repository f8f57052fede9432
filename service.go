package coretask

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/coretask/counter"
	"github.com/viant/coretask/policy"
	"github.com/viant/coretask/progress"
	"github.com/viant/coretask/runtime/scheduler"
	"github.com/viant/coretask/service/event"
	"github.com/viant/coretask/service/observer"
	"github.com/viant/coretask/service/observer/store"
)

// ErrAlreadyStarted is returned by a second Service.Start
var ErrAlreadyStarted = errors.New("service already started")

// Service wires the shared counters, the scheduler, the counter tasks and the
// optional sensor event loop
type Service struct {
	config    *Config
	state     *counter.State
	scheduler *scheduler.Scheduler
	events    *event.Loop
	journal   *store.Store
	sink      observer.Sink
	policy    *policy.Policy
	tracker   *progress.Progress
	logger    *log.Logger
	fs        afs.Service
	mux       sync.Mutex
	started   bool
	stopOnce  sync.Once

	initTracing func() error
}

// New creates a service; nothing runs until Start
func New(options ...Option) *Service {
	ret := &Service{}
	for _, option := range options {
		option(ret)
	}
	if ret.config == nil {
		ret.config = DefaultConfig()
	}
	if ret.logger == nil {
		ret.logger = log.Default()
	}
	if ret.sink == nil {
		ret.sink = observer.NewLogSink(ret.logger)
	}
	if ret.initTracing != nil {
		if err := ret.initTracing(); err != nil {
			ret.logger.Printf("failed to initialise tracing: %v", err)
		} else {
			ret.sink = observer.Multi{ret.sink, observer.TraceSink{}}
		}
	}
	if ret.tracker == nil {
		ret.tracker = progress.New()
	}
	return ret
}

// Start is the parameterless bootstrap: it runs the reference design with
// default configuration. A failure leaves nothing running.
func Start() (*Service, error) {
	srv := New()
	if err := srv.Start(context.Background()); err != nil {
		return nil, err
	}
	return srv, nil
}

// Start allocates the shared counters, registers every configured task and
// starts the scheduler. It returns once every task is registered; tasks keep
// running until Stop or ctx is done. On failure everything started so far is
// stopped.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if err = s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	defer func() {
		if err != nil {
			s.shutdown()
		}
	}()

	s.state = counter.NewState()
	if s.config.Journal != nil {
		if s.journal, err = store.Open(*s.config.Journal, s.logger); err != nil {
			return fmt.Errorf("failed to open observation journal: %w", err)
		}
		s.sink = observer.Multi{s.sink, s.journal}
	}
	if s.scheduler, err = scheduler.New(s.config.Scheduler, scheduler.WithLogger(s.logger), scheduler.WithTracker(s.tracker)); err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	for i := range s.config.Tasks {
		task := &s.config.Tasks[i]
		if err = s.register(task, counterBody(s.state, task.Ops, s.sink)); err != nil {
			return err
		}
	}
	if s.config.Events.Enabled {
		if err = s.startEvents(ctx); err != nil {
			return err
		}
	}
	if err = s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.started = true
	return nil
}

func (s *Service) register(task *TaskConfig, body scheduler.Body) error {
	descriptor, err := task.Descriptor(body)
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.Name, err)
	}
	if _, err = s.scheduler.Register(descriptor); err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.Name, err)
	}
	return nil
}

func (s *Service) startEvents(ctx context.Context) error {
	cfg := &s.config.Events
	options := []event.Option{event.WithLogger(s.logger)}
	if s.fs != nil {
		options = append(options, event.WithFS(s.fs))
	}
	var err error
	if s.events, err = event.New(cfg.Loop, options...); err != nil {
		return fmt.Errorf("failed to create event loop: %w", err)
	}
	if _, err = s.events.Subscribe(SensorEvents, event.AnyKind, sensorHandler(s.logger)); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}
	pol := s.policy
	if pol == nil {
		pol = policy.FromConfig(&cfg.Policy)
		pol.Logger = s.logger
	}
	timeout, err := cfg.publishTimeout()
	if err != nil {
		return err
	}
	if err = s.register(&cfg.Source, sensorSource(s.events, pol, timeout)); err != nil {
		return err
	}
	if err = s.events.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event loop: %w", err)
	}
	return nil
}

// Stop deletes every task, then stops the event loop and closes the journal
func (s *Service) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		err = s.shutdown()
	})
	return err
}

func (s *Service) shutdown() error {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.events != nil {
		s.events.Stop()
	}
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// State returns the shared counters, nil before Start
func (s *Service) State() *counter.State {
	return s.state
}

// Scheduler returns the task scheduler, nil before Start
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Events returns the sensor event loop, nil when disabled
func (s *Service) Events() *event.Loop {
	return s.events
}

// Tracker returns per task iteration counters
func (s *Service) Tracker() *progress.Progress {
	return s.tracker
}

// Journal returns the observation journal, nil when not configured
func (s *Service) Journal() *store.Store {
	return s.journal
}
