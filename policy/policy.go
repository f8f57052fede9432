package policy

import (
	"log"
	"strings"
)

// Error handling modes recognised by publishers.
const (
	ModeAbort  = "abort"  // terminate the process (default)
	ModeLog    = "log"    // log the failure and continue
	ModeIgnore = "ignore" // drop the failure silently
)

// FatalFunc terminates the process; tests replace it.
type FatalFunc func(format string, args ...interface{})

// Policy represents how a task reacts to a failed peripheral operation.
//
// A nil *Policy behaves like ModeAbort.
type Policy struct {
	Mode   string
	Fatal  FatalFunc   // used only when Mode==abort, defaults to log.Fatalf
	Logger *log.Logger // used only when Mode==log, defaults to log.Default()
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{Mode: p.Mode}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{Mode: c.Mode}
}

// Valid reports whether mode is empty or a known mode
func Valid(mode string) bool {
	switch strings.ToLower(mode) {
	case "", ModeAbort, ModeLog, ModeIgnore:
		return true
	}
	return false
}

// Handle applies the policy to err raised by op. It returns err when the
// caller should stop the current iteration and nil when err was absorbed.
// In abort mode Handle does not return unless Fatal was replaced.
func (p *Policy) Handle(op string, err error) error {
	if err == nil {
		return nil
	}
	mode := ModeAbort
	if p != nil && p.Mode != "" {
		mode = strings.ToLower(p.Mode)
	}
	switch mode {
	case ModeIgnore:
		return nil
	case ModeLog:
		logger := log.Default()
		if p.Logger != nil {
			logger = p.Logger
		}
		logger.Printf("%s failed: %v", op, err)
		return nil
	default:
		fatal := FatalFunc(log.Fatalf)
		if p != nil && p.Fatal != nil {
			fatal = p.Fatal
		}
		fatal("%s failed: %v", op, err)
		return err
	}
}
