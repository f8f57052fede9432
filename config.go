package coretask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/coretask/counter"
	"github.com/viant/coretask/internal/affinity"
	"github.com/viant/coretask/policy"
	"github.com/viant/coretask/runtime/scheduler"
	"github.com/viant/coretask/service/event"
	"github.com/viant/coretask/service/meta"
	"github.com/viant/coretask/service/observer/store"
)

// Config is a serialisable representation of the runtime configuration. It
// is usually loaded from YAML with LoadConfig; fields absent from the file
// keep their DefaultConfig values.
type Config struct {
	Scheduler scheduler.Config `json:"scheduler" yaml:"scheduler"`
	Tasks     []TaskConfig     `json:"tasks" yaml:"tasks"`
	Events    EventConfig      `json:"events" yaml:"events"`
	// Journal persists observations to SQLite when set
	Journal *store.Config `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// TaskConfig defines one periodic counter task
type TaskConfig struct {
	Name string `json:"name" yaml:"name"`
	// Core is a core number or "any"; empty means any
	Core       string   `json:"core,omitempty" yaml:"core,omitempty"`
	Period     string   `json:"period" yaml:"period"`
	Priority   int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	StackSize  int      `json:"stackSize,omitempty" yaml:"stackSize,omitempty"`
	Iterations int      `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Ops        []string `json:"ops" yaml:"ops"`
}

// EventConfig configures the sensor event loop and its source task
type EventConfig struct {
	Enabled bool         `json:"enabled" yaml:"enabled"`
	Loop    event.Config `json:"loop" yaml:"loop"`
	Source  TaskConfig   `json:"source" yaml:"source"`
	// PublishTimeout is a duration; empty or negative waits until the source task is deleted
	PublishTimeout string        `json:"publishTimeout,omitempty" yaml:"publishTimeout,omitempty"`
	Policy         policy.Config `json:"policy" yaml:"policy"`
}

const defaultStackSize = 10000

// DefaultConfig returns the reference design: two cores, one critical task
// pinned to core 0, two mixed tasks pinned to core 1 and one floating
// critical task. The sensor event loop is configured but disabled.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: scheduler.DefaultConfig(),
		Tasks: []TaskConfig{
			{Name: "task1", Core: "0", Period: "1s", StackSize: defaultStackSize, Ops: []string{counter.Critical}},
			{Name: "task2", Core: "1", Period: "500ms", StackSize: defaultStackSize, Ops: []string{counter.Blocking, counter.Critical}},
			{Name: "task3", Core: "1", Period: "250ms", StackSize: defaultStackSize, Ops: []string{counter.Blocking, counter.Critical}},
			{Name: "task4", Core: "any", Period: "250ms", StackSize: defaultStackSize, Ops: []string{counter.Critical}},
		},
		Events: EventConfig{
			Loop: event.DefaultConfig(),
			Source: TaskConfig{
				Name:       "sensor",
				Core:       "any",
				Period:     "500ms",
				StackSize:  3072,
				Iterations: 2,
			},
			Policy: policy.Config{Mode: policy.ModeAbort},
		},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config was nil")
	}
	var errs []error
	if c.Scheduler.Cores <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.cores must be > 0"))
	}
	names := map[string]bool{}
	for i := range c.Tasks {
		task := &c.Tasks[i]
		if err := task.validate(c.Scheduler.Cores); err != nil {
			errs = append(errs, fmt.Errorf("tasks[%d]: %w", i, err))
		}
		if names[task.Name] {
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate name %q", i, task.Name))
		}
		names[task.Name] = true
		if len(task.Ops) == 0 {
			errs = append(errs, fmt.Errorf("tasks[%d]: ops were empty", i))
		}
		for _, op := range task.Ops {
			if op != counter.Blocking && op != counter.Critical {
				errs = append(errs, fmt.Errorf("tasks[%d]: unsupported op %q", i, op))
			}
		}
	}
	if c.Events.Enabled {
		if err := c.Events.validate(c.Scheduler.Cores); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
		if names[c.Events.Source.Name] {
			errs = append(errs, fmt.Errorf("events.source: duplicate name %q", c.Events.Source.Name))
		}
	}
	if len(c.Tasks) == 0 && !c.Events.Enabled {
		errs = append(errs, fmt.Errorf("no tasks configured"))
	}
	if c.Journal != nil && c.Journal.Path == "" {
		errs = append(errs, fmt.Errorf("journal.path was empty"))
	}
	return errors.Join(errs...)
}

func (t *TaskConfig) validate(cores int) error {
	if t.Name == "" {
		return fmt.Errorf("name was empty")
	}
	if _, err := t.period(); err != nil {
		return err
	}
	aff, err := affinity.Parse(t.Core)
	if err != nil {
		return err
	}
	if aff.Pinned() && aff.CoreID() >= cores {
		return fmt.Errorf("%s: core %d outside pool of %d", t.Name, aff.CoreID(), cores)
	}
	if t.Iterations < 0 {
		return fmt.Errorf("%s: iterations must be >= 0", t.Name)
	}
	return nil
}

func (t *TaskConfig) period() (time.Duration, error) {
	period, err := time.ParseDuration(t.Period)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid period %q: %w", t.Name, t.Period, err)
	}
	if period <= 0 {
		return 0, fmt.Errorf("%s: period must be > 0", t.Name)
	}
	return period, nil
}

// Descriptor converts the task configuration into a scheduler descriptor
func (t *TaskConfig) Descriptor(body scheduler.Body) (scheduler.Descriptor, error) {
	period, err := t.period()
	if err != nil {
		return scheduler.Descriptor{}, err
	}
	aff, err := affinity.Parse(t.Core)
	if err != nil {
		return scheduler.Descriptor{}, err
	}
	return scheduler.Descriptor{
		Name:       t.Name,
		Affinity:   aff,
		Period:     period,
		Priority:   t.Priority,
		StackSize:  t.StackSize,
		Iterations: t.Iterations,
		Body:       body,
	}, nil
}

func (e *EventConfig) validate(cores int) error {
	if e.Loop.QueueSize <= 0 {
		return fmt.Errorf("loop.queueSize must be > 0")
	}
	if err := e.Source.validate(cores); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if _, err := e.publishTimeout(); err != nil {
		return err
	}
	if !policy.Valid(e.Policy.Mode) {
		return fmt.Errorf("unsupported policy mode %q", e.Policy.Mode)
	}
	return nil
}

func (e *EventConfig) publishTimeout() (time.Duration, error) {
	value := strings.TrimSpace(e.PublishTimeout)
	if value == "" {
		return event.WaitForever, nil
	}
	timeout, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid publishTimeout %q: %w", value, err)
	}
	if timeout < 0 {
		return event.WaitForever, nil
	}
	return timeout, nil
}

// LoadConfig loads YAML configuration from URL on top of DefaultConfig.
// ${env.KEY} expressions are expanded before decoding.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	cfg := DefaultConfig()
	if err := meta.New(nil, "").Load(ctx, URL, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return cfg, nil
}
