// Package shm provides a typed, bounds-checked view over the tightly
// packed, little-endian shared-memory region used to exchange optimizer
// input and output with an external producer/consumer process.
package shm

import "github.com/CR1337/string-art/internal/colorart"

// Debug flag bits for InputHeader.DebugFlags.
const (
	DebugStoreImages        uint8 = 0b00000001
	DebugStoreAbsoluteError uint8 = 0b00000010
)

// Termination flag bits for Termination.Flags.
const (
	TerminateOnMinRelativeError      uint8 = 0b00000001
	TerminateOnUnavailableConnection uint8 = 0b00000010
)

// Disc describes the circular loom: its physical radius and the color of
// the uncovered backing material.
type Disc struct {
	RadiusUm   uint64
	Background colorart.Color
}

// Indexer gives the size of the anchor-point ring and the thread palette.
type Indexer struct {
	PointAmount  uint64
	ThreadAmount uint64
}

// Termination carries the optimizer's stopping configuration.
type Termination struct {
	Flags               uint8
	MaxIterations       uint64
	MinRelativeError    float64
	RelativeErrorStreak uint64
}

// InputHeader is the fixed-size header at the start of the shared-memory
// region, immediately followed by the variable-length input arrays.
type InputHeader struct {
	ImageWidth      uint64
	ThreadOrderSize uint64
	DebugFlags      uint8
	Disc            Disc
	Indexer         Indexer
	Termination     Termination
}

// Thread is one entry of the caller-supplied thread palette.
type Thread struct {
	Alpha       uint8
	ThicknessUm uint64
	Color       colorart.Color
}

// OutputHeader is written by the consumer once optimization finishes.
type OutputHeader struct {
	InstructionAmount uint64
	AbsoluteError     uint64
	NormalizedError   float64
}

// Instruction records one committed connection: draw a thread of
// ThreadIndex from StartIndex to EndIndex.
type Instruction struct {
	StartIndex  uint64
	EndIndex    uint64
	ThreadIndex uint64
}

// Packed byte sizes of the fixed-size records above (no padding).
const (
	discSize        = 8 + 3
	indexerSize     = 8 + 8
	terminationSize = 1 + 8 + 8 + 8
	inputHeaderSize = 8 + 8 + 1 + discSize + indexerSize + terminationSize
	threadSize      = 1 + 8 + 3
	colorSize       = 3
	outputHeaderSize = 8 + 8 + 8
	instructionSize  = 8 + 8 + 8
)
