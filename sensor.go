package coretask

import (
	"encoding/binary"
	"log"
	"time"

	"github.com/viant/coretask/policy"
	"github.com/viant/coretask/runtime/scheduler"
	"github.com/viant/coretask/service/event"
)

// SensorEvents is the event family posted by the sensor source task
const SensorEvents event.Family = "SENSOR_EVENTS"

// Sensor event kinds
const (
	SensorConfigure event.Kind = iota
	SensorRead
)

// sensorSource posts one event per iteration; the kind is the zero based
// iteration number and the payload carries the iteration as big endian uint64.
// Publish failures go through the error policy unless the task is being deleted.
func sensorSource(loop *event.Loop, pol *policy.Policy, timeout time.Duration) scheduler.Body {
	return func(tick *scheduler.Tick) error {
		payload := make([]byte, 8)
		binary.BigEndian.PutUint64(payload, tick.Iteration)
		kind := event.Kind(tick.Iteration - 1)
		err := loop.Publish(tick.Context(), SensorEvents, kind, payload, timeout)
		if err != nil && tick.Context().Err() != nil {
			// task deleted while waiting for queue space
			return err
		}
		return pol.Handle("publish "+string(SensorEvents), err)
	}
}

// sensorHandler logs every sensor event it receives
func sensorHandler(logger *log.Logger) event.Handler {
	return func(e *event.Event) {
		switch e.Kind {
		case SensorConfigure:
			logger.Printf("%s: configure (seq %d)", e.Family, e.Seq)
		case SensorRead:
			logger.Printf("%s: read (seq %d)", e.Family, e.Seq)
		default:
			logger.Printf("%s: unrecognized event kind %d", e.Family, e.Kind)
		}
	}
}
