// Package affinity models task placement: a task is either bound to one
// logical core or left floating so the scheduler may place it anywhere.
package affinity

import (
	"fmt"
	"strconv"
	"strings"
)

// Affinity binds a task to a core or leaves it unbound. The zero value is Any.
type Affinity struct {
	pinned bool
	core   int
}

// Any is the no-affinity value
var Any = Affinity{}

// Core pins to the given logical core; a negative id means Any
func Core(id int) Affinity {
	if id < 0 {
		return Any
	}
	return Affinity{pinned: true, core: id}
}

// Pinned reports whether the affinity names a specific core
func (a Affinity) Pinned() bool {
	return a.pinned
}

// CoreID returns the pinned core, or -1 for Any
func (a Affinity) CoreID() int {
	if !a.pinned {
		return -1
	}
	return a.core
}

func (a Affinity) String() string {
	if !a.Pinned() {
		return "any"
	}
	return strconv.Itoa(a.core)
}

// Parse converts "any" (or empty) and non-negative core numbers
func Parse(value string) (Affinity, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "", "any", "none", "*":
		return Any, nil
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return Any, fmt.Errorf("invalid affinity %q: %w", value, err)
	}
	if id < 0 {
		return Any, fmt.Errorf("invalid affinity %q: core must be >= 0", value)
	}
	return Core(id), nil
}

// MarshalText implements encoding.TextMarshaler
func (a Affinity) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Affinity) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
