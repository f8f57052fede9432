//go:build !linux

package affinity

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned where thread pinning is not available
var ErrUnsupported = errors.New("thread affinity is not supported on " + runtime.GOOS)

// PinThread is not supported on this platform
func PinThread(cpu int) error {
	return ErrUnsupported
}

// CurrentCPU is not supported on this platform
func CurrentCPU() (int, error) {
	return -1, ErrUnsupported
}

// AvailableCPUs falls back to the runtime CPU count
func AvailableCPUs() int {
	return runtime.NumCPU()
}
