package shm

import "errors"

// ErrBufferTooSmall is returned by ParseInput when buf is too short to hold
// even the fixed InputHeader.
var ErrBufferTooSmall = errors.New("shm: buffer too small for input header")

// ErrRegionTooSmall is returned by ParseInput when buf is too short to hold
// the header plus every declared input array.
var ErrRegionTooSmall = errors.New("shm: buffer too small for declared input arrays")
