package counter

import "context"

// State is the shared-state handle captured by every task body.
// It is created once at bootstrap and lives for the process lifetime.
type State struct {
	Blocking *BlockingCounter
	Critical *SpinlockCounter
}

// Values is a point in time copy of both counters
type Values struct {
	Blocking int64 `json:"blocking" yaml:"blocking"`
	Critical int64 `json:"critical" yaml:"critical"`
}

// NewState allocates both counters and their guards
func NewState() *State {
	return &State{
		Blocking: NewBlockingCounter(),
		Critical: NewSpinlockCounter(),
	}
}

// Values reads both counters, each under its own guard
func (s *State) Values(ctx context.Context) (Values, error) {
	blocking, err := s.Blocking.Load(ctx)
	if err != nil {
		return Values{}, err
	}
	return Values{Blocking: blocking, Critical: s.Critical.Load()}, nil
}
