package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/viant/coretask/service/messaging"
	"github.com/viant/coretask/tracing"
)

// Publisher posts events to the loop queue
type Publisher struct {
	queue     messaging.Queue[Event]
	seq       atomic.Uint64
	published atomic.Uint64
	timeouts  atomic.Uint64
}

// NewPublisher creates a publisher for queue
func NewPublisher(queue messaging.Queue[Event]) *Publisher {
	return &Publisher{queue: queue}
}

// Publish posts e. A zero timeout fails at once when the queue is full, a
// negative one waits until ctx is done.
func (p *Publisher) Publish(ctx context.Context, e *Event, timeout time.Duration) (err error) {
	ctx, span := tracing.StartSpan(ctx, "event.publish", "PRODUCER")
	span.WithAttributes(map[string]string{"event.family": string(e.Family)})
	span.WithInt("event.kind", int64(e.Kind))
	defer func() { tracing.EndSpan(span, err) }()

	parent := ctx
	if timeout >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	e.Seq = p.seq.Add(1)
	if err = p.queue.Publish(ctx, e); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
			p.timeouts.Add(1)
			return fmt.Errorf("%w: %v after %v", ErrPublishTimeout, e, timeout)
		}
		return fmt.Errorf("failed to publish %v: %w", e, err)
	}
	p.published.Add(1)
	return nil
}
