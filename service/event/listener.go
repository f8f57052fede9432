package event

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/viant/coretask/service/messaging"
	"github.com/viant/coretask/tracing"
)

// Listener consumes the loop queue and dispatches events to subscribers, one
// at a time, in queue order
type Listener struct {
	queue     messaging.Queue[Event]
	route     func(e *Event) []*Subscription
	logger    *log.Logger
	delivered atomic.Uint64
	failed    atomic.Uint64
	done      chan struct{}
}

func newListener(queue messaging.Queue[Event], route func(e *Event) []*Subscription, logger *log.Logger) *Listener {
	return &Listener{queue: queue, route: route, logger: logger, done: make(chan struct{})}
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)
	for {
		msg, err := l.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Printf("error consuming event: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		e := msg.T()
		if err := l.dispatch(ctx, e); err != nil {
			l.failed.Add(1)
			l.logger.Printf("event %v: %v", e, err)
			// redelivered to every matching handler until MaxRetries, then dead lettered
			if err := msg.Nack(err); err != nil {
				l.logger.Printf("failed to nack event %v: %v", e, err)
			}
			continue
		}
		if err := msg.Ack(); err != nil {
			l.logger.Printf("failed to ack event %v: %v", e, err)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, e *Event) (err error) {
	_, span := tracing.StartSpan(ctx, "event.dispatch", "CONSUMER")
	span.WithAttributes(map[string]string{"event.family": string(e.Family), "event.id": e.ID})
	span.WithInt("event.kind", int64(e.Kind))
	defer func() { tracing.EndSpan(span, err) }()
	for _, subscription := range l.route(e) {
		if callErr := subscription.call(e); callErr != nil && err == nil {
			err = callErr
		}
	}
	l.delivered.Add(1)
	return err
}

func (s *Subscription) call(e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	s.handler(e)
	return nil
}
