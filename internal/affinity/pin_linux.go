//go:build linux

package affinity

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PinThread restricts the calling OS thread to cpu. The caller must have
// locked the goroutine to its thread (runtime.LockOSThread).
func PinThread(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("invalid cpu: %d", cpu)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to pin thread to cpu %d: %w", cpu, err)
	}
	return nil
}

// CurrentCPU returns the CPU the calling thread is running on
func CurrentCPU() (int, error) {
	var cpu uint32
	if _, _, errno := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0); errno != 0 {
		return -1, errno
	}
	return int(cpu), nil
}

// AvailableCPUs returns the number of CPUs the process may run on
func AvailableCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0
	}
	return set.Count()
}
