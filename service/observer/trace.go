package observer

import (
	"context"

	"github.com/viant/coretask/tracing"
)

// TraceSink records each observation as a short span
type TraceSink struct{}

// Emit starts and ends a span carrying the observation attributes
func (TraceSink) Emit(o *Observation) {
	_, span := tracing.StartSpan(context.Background(), "counter.update", "INTERNAL")
	span.WithAttributes(map[string]string{"task.name": o.Task, "counter": o.Counter})
	span.WithInt("task.core", int64(o.Core))
	span.WithInt("counter.value", o.Value)
	tracing.EndSpan(span, nil)
}
