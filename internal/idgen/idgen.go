package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier as string. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new unique identifier
func New() string { return NewFunc() }

// Ordered returns a unique identifier whose lexical order follows seq
func Ordered(seq uint64) string {
	return fmt.Sprintf("%020d-%s", seq, NewFunc())
}
