//go:build linux

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const sharedMemoryAccessMode = 0666

// Attach maps the System V shared-memory segment identified by key, sized
// size bytes, parses its input header, and initializes its output section.
// The returned func detaches the segment; callers should defer it.
func Attach(key, size uint64) (*View, func() error, error) {
	id, err := unix.SysvShmGet(int(key), int(size), sharedMemoryAccessMode)
	if err != nil {
		return nil, nil, fmt.Errorf("shm: get segment for key %d: %w", key, err)
	}

	mem, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("shm: attach segment %d: %w", id, err)
	}

	view, err := ParseInput(mem)
	if err != nil {
		return nil, nil, fmt.Errorf("shm: parse input header: %w", err)
	}
	view.InitOutput()

	detach := func() error {
		if err := unix.SysvShmDetach(uintptr(unsafe.Pointer(&mem[0]))); err != nil {
			return fmt.Errorf("shm: detach segment %d: %w", id, err)
		}
		return nil
	}

	return view, detach, nil
}
