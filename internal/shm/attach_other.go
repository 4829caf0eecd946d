//go:build !linux

package shm

import "errors"

// ErrUnsupportedPlatform is returned by Attach on platforms without System
// V shared memory support.
var ErrUnsupportedPlatform = errors.New("shm: System V shared memory attach is only implemented for linux")

// Attach is unavailable outside linux; use ParseInput directly against a
// byte slice obtained some other way (e.g. in tests).
func Attach(key, size uint64) (*View, func() error, error) {
	return nil, nil, ErrUnsupportedPlatform
}
