package coretask

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/coretask/counter"
	"github.com/viant/coretask/progress"
	"github.com/viant/coretask/runtime/scheduler"
	"github.com/viant/coretask/service/event"
)

// Report is a point in time summary of a running service
type Report struct {
	Uptime   time.Duration                `json:"uptime" yaml:"uptime"`
	Counters counter.Values               `json:"counters" yaml:"counters"`
	Tasks    []scheduler.Info             `json:"tasks" yaml:"tasks"`
	Progress map[string]progress.Counters `json:"progress" yaml:"progress"`
	Events   *event.Stats                 `json:"events,omitempty" yaml:"events,omitempty"`
}

// Report reads both counters under their guards and collects task statistics
func (s *Service) Report(ctx context.Context) (*Report, error) {
	if s.state == nil || s.scheduler == nil {
		return nil, fmt.Errorf("service not started")
	}
	values, err := s.state.Values(ctx)
	if err != nil {
		return nil, err
	}
	ret := &Report{
		Uptime:   time.Since(s.tracker.StartedAt),
		Counters: values,
		Progress: s.tracker.Snapshot(),
	}
	for _, task := range s.scheduler.Tasks() {
		ret.Tasks = append(ret.Tasks, task.Info())
	}
	if s.events != nil {
		stats := s.events.Stats()
		ret.Events = &stats
	}
	return ret, nil
}
