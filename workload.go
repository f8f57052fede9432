package coretask

import (
	"github.com/viant/coretask/counter"
	"github.com/viant/coretask/internal/clock"
	"github.com/viant/coretask/progress"
	"github.com/viant/coretask/runtime/scheduler"
	"github.com/viant/coretask/service/observer"
)

// counterBody returns a task body applying ops, in order, to the shared state.
// A blocking update that finds its guard held is skipped and counted as missed.
func counterBody(state *counter.State, ops []string, sink observer.Sink) scheduler.Body {
	ops = append([]string(nil), ops...)
	return func(tick *scheduler.Tick) error {
		for _, op := range ops {
			var value int64
			switch op {
			case counter.Blocking:
				var ok bool
				if value, ok = state.Blocking.TryIncrement(tick.Task); !ok {
					tick.Record(progress.Delta{Missed: 1})
					continue
				}
			case counter.Critical:
				value = state.Critical.Increment()
			default:
				continue
			}
			tick.Record(progress.Delta{Updates: 1})
			sink.Emit(&observer.Observation{
				Task:    tick.Task,
				Core:    tick.Core,
				Counter: op,
				Value:   value,
				At:      clock.Now(),
			})
		}
		return nil
	}
}
