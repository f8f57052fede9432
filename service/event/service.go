package event

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/coretask/service/messaging"
	"github.com/viant/coretask/service/messaging/fs"
	"github.com/viant/coretask/service/messaging/memory"
)

var (
	// ErrPublishTimeout is returned when the queue stays full for the publish timeout
	ErrPublishTimeout = errors.New("event publish timeout")
	// ErrStopped is returned once the loop has been stopped
	ErrStopped = errors.New("event loop stopped")
)

// Config represents event loop configuration. MaxRetries is the number of
// redeliveries of an event whose handler panicked; past it the event is dead
// lettered.
type Config struct {
	Name string `json:"name" yaml:"name"`
	// QueueSize bounds the number of undelivered events
	QueueSize int              `json:"queueSize" yaml:"queueSize"`
	Vendor    messaging.Vendor `json:"vendor" yaml:"vendor"`
	// BasePath is the journal root for the fs vendor
	BasePath   string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	MaxRetries int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
}

// DefaultConfig returns a memory backed loop with a five event queue
func DefaultConfig() Config {
	return Config{Name: "events", QueueSize: 5, Vendor: messaging.VendorMemory}
}

// Stats reports loop counters
type Stats struct {
	Published   uint64 `json:"published"`
	Timeouts    uint64 `json:"timeouts"`
	Delivered   uint64 `json:"delivered"`
	Failed      uint64 `json:"failed"`
	Pending     int    `json:"pending"`
	DeadLetters int    `json:"deadLetters"`
}

type deadLetterCounter interface {
	DLQSize() int
}

// Subscription binds a handler to a family and kind
type Subscription struct {
	id      uint64
	family  Family
	kind    Kind
	handler Handler
	loop    *Loop
}

// Unsubscribe removes the handler; an event being dispatched may still reach it
func (s *Subscription) Unsubscribe() {
	s.loop.unsubscribe(s)
}

func (s *Subscription) matches(e *Event) bool {
	return s.family == e.Family && (s.kind == AnyKind || s.kind == e.Kind)
}

// Loop is a named event loop with its own dispatch goroutine
type Loop struct {
	config        Config
	queue         messaging.Queue[Event]
	publisher     *Publisher
	listener      *Listener
	subscriptions []*Subscription
	nextID        uint64
	mux           sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	stopped       bool
	stopOnce      sync.Once
	fs            afs.Service
	logger        *log.Logger
}

// New creates an event loop and its queue
func New(config Config, opts ...Option) (*Loop, error) {
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("event loop %s: queue size must be > 0, got %d", config.Name, config.QueueSize)
	}
	if config.Vendor == "" {
		config.Vendor = messaging.VendorMemory
	}
	ret := &Loop{config: config}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = log.Default()
	}
	ret.ctx, ret.cancel = context.WithCancel(context.Background())
	queue, err := ret.newQueue()
	if err != nil {
		ret.cancel()
		return nil, err
	}
	ret.queue = queue
	ret.publisher = NewPublisher(queue)
	ret.listener = newListener(queue, ret.route, ret.logger)
	return ret, nil
}

func (l *Loop) newQueue() (messaging.Queue[Event], error) {
	switch l.config.Vendor {
	case messaging.VendorMemory:
		config := memory.DefaultConfig()
		config.Capacity = l.config.QueueSize
		config.MaxRetries = l.config.MaxRetries
		return memory.NewQueue[Event](config), nil
	case messaging.VendorFS:
		config := fs.DefaultConfig()
		config.Capacity = l.config.QueueSize
		config.MaxRetries = l.config.MaxRetries
		if l.config.BasePath != "" {
			config.BasePath = l.config.BasePath
		}
		config.BasePath = path.Join(config.BasePath, l.config.Name)
		if l.fs == nil {
			l.fs = afs.New()
		}
		return fs.NewQueue[Event](l.ctx, l.fs, config)
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", l.config.Vendor)
}

// Name returns the loop name
func (l *Loop) Name() string {
	return l.config.Name
}

// Start launches the dispatch goroutine; events published earlier are delivered
func (l *Loop) Start(ctx context.Context) error {
	l.mux.Lock()
	defer l.mux.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if l.started {
		return fmt.Errorf("event loop %s already started", l.config.Name)
	}
	l.started = true
	context.AfterFunc(ctx, l.cancel)
	go l.listener.run(l.ctx)
	return nil
}

// Stop terminates dispatching and releases blocked publishers
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mux.Lock()
		l.stopped = true
		started := l.started
		l.mux.Unlock()
		l.cancel()
		if started {
			<-l.listener.done
		}
	})
}

// Subscribe registers handler for family events of kind, or of every kind with AnyKind
func (l *Loop) Subscribe(family Family, kind Kind, handler Handler) (*Subscription, error) {
	if family == "" {
		return nil, fmt.Errorf("event family was empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler for %s was nil", family)
	}
	if kind < AnyKind {
		return nil, fmt.Errorf("invalid kind %d for %s", kind, family)
	}
	l.mux.Lock()
	defer l.mux.Unlock()
	if l.stopped {
		return nil, ErrStopped
	}
	l.nextID++
	subscription := &Subscription{id: l.nextID, family: family, kind: kind, handler: handler, loop: l}
	l.subscriptions = append(l.subscriptions, subscription)
	return subscription, nil
}

func (l *Loop) unsubscribe(s *Subscription) {
	l.mux.Lock()
	defer l.mux.Unlock()
	for i, candidate := range l.subscriptions {
		if candidate == s {
			l.subscriptions = append(l.subscriptions[:i:i], l.subscriptions[i+1:]...)
			return
		}
	}
}

// route returns matching subscriptions in subscription order
func (l *Loop) route(e *Event) []*Subscription {
	l.mux.RLock()
	defer l.mux.RUnlock()
	var ret []*Subscription
	for _, s := range l.subscriptions {
		if s.matches(e) {
			ret = append(ret, s)
		}
	}
	return ret
}

// Publish posts an event with a copy of payload. A zero timeout fails at once
// when the queue is full; WaitForever waits until ctx is done or the loop stops.
func (l *Loop) Publish(ctx context.Context, family Family, kind Kind, payload []byte, timeout time.Duration) error {
	if family == "" {
		return fmt.Errorf("event family was empty")
	}
	l.mux.RLock()
	stopped := l.stopped
	l.mux.RUnlock()
	if stopped {
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(l.ctx, cancel)
	defer release()
	err := l.publisher.Publish(ctx, NewEvent(family, kind, payload), timeout)
	if err != nil && l.ctx.Err() != nil && !errors.Is(err, ErrPublishTimeout) {
		return fmt.Errorf("%w: %v", ErrStopped, err)
	}
	return err
}

// Stats returns loop counters
func (l *Loop) Stats() Stats {
	ret := Stats{
		Published: l.publisher.published.Load(),
		Timeouts:  l.publisher.timeouts.Load(),
		Delivered: l.listener.delivered.Load(),
		Failed:    l.listener.failed.Load(),
		Pending:   l.queue.Size(),
	}
	if dlq, ok := l.queue.(deadLetterCounter); ok {
		ret.DeadLetters = dlq.DLQSize()
	}
	return ret
}
