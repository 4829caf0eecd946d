//go:build linux

package workerpool

import (
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the calling (already OS-thread-locked) goroutine to the
// CPU core matching workerIndex, mirroring the reference implementation's
// pthread_setaffinity_np call in its worker entry point.
func pinToCore(workerIndex int) {
	var set unix.CPUSet
	set.Zero()
	set.Set(workerIndex % runtime.NumCPU())

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		slog.Warn("failed to set CPU affinity", "worker", workerIndex, "error", err)
	}
}
