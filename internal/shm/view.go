package shm

import (
	"encoding/binary"
	"math"

	"github.com/CR1337/string-art/internal/colorart"
)

// View is a typed projection over a raw shared-memory byte region. It holds
// no copies of the arrays it exposes — every accessor reads or writes
// directly into buf at a precomputed offset, matching the reference
// implementation's pointer-arithmetic layout but with Go slice bounds
// checks standing in for manual pointer validation.
type View struct {
	buf []byte

	header    InputHeader
	imageSize uint64

	threadsOff     int
	threadOrderOff int
	startPointsOff int
	targetOff      int
	importanceOff  int
	inputEnd       int

	outputHeaderOff int
	resultOff       int
	instructionsOff int
	debugImagesOff  int
	debugErrorsOff  int
}

// ParseInput reads the InputHeader from the start of buf and computes the
// offsets of every input array that follows it. It does not copy any array
// data; buf must remain valid for the View's lifetime.
func ParseInput(buf []byte) (*View, error) {
	if len(buf) < inputHeaderSize {
		return nil, ErrBufferTooSmall
	}

	v := &View{buf: buf}
	v.header = decodeInputHeader(buf)
	v.imageSize = v.header.ImageWidth * v.header.ImageWidth

	off := inputHeaderSize
	v.threadsOff = off
	off += int(v.header.Indexer.ThreadAmount) * threadSize

	v.threadOrderOff = off
	off += int(v.header.ThreadOrderSize) * 8

	v.startPointsOff = off
	off += int(v.header.Indexer.ThreadAmount) * 8

	v.targetOff = off
	off += int(v.imageSize) * colorSize

	v.importanceOff = off
	off += int(v.imageSize) * 8

	v.inputEnd = off

	if len(buf) < v.inputEnd {
		return nil, ErrRegionTooSmall
	}

	return v, nil
}

func decodeInputHeader(buf []byte) InputHeader {
	le := binary.LittleEndian
	return InputHeader{
		ImageWidth:      le.Uint64(buf[0:8]),
		ThreadOrderSize: le.Uint64(buf[8:16]),
		DebugFlags:      buf[16],
		Disc: Disc{
			RadiusUm:   le.Uint64(buf[17:25]),
			Background: decodeColor(buf[25:28]),
		},
		Indexer: Indexer{
			PointAmount:  le.Uint64(buf[28:36]),
			ThreadAmount: le.Uint64(buf[36:44]),
		},
		Termination: Termination{
			Flags:               buf[44],
			MaxIterations:       le.Uint64(buf[45:53]),
			MinRelativeError:    decodeFloat64(buf[53:61]),
			RelativeErrorStreak: le.Uint64(buf[61:69]),
		},
	}
}

func decodeColor(b []byte) colorart.Color {
	return colorart.Color{C: b[0], M: b[1], Y: b[2]}
}

func encodeColor(buf []byte, c colorart.Color) {
	buf[0] = c.C
	buf[1] = c.M
	buf[2] = c.Y
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// InitOutput computes the offsets of the output section, which begins
// immediately after the last input array, and is ready to call once
// ParseInput has succeeded.
func (v *View) InitOutput() {
	off := v.inputEnd

	v.outputHeaderOff = off
	off += outputHeaderSize

	v.resultOff = off
	off += int(v.imageSize) * colorSize

	v.instructionsOff = off
	off += int(v.header.Termination.MaxIterations) * instructionSize

	if v.header.DebugFlags != 0 {
		debugArraySize := v.header.Termination.MaxIterations * v.imageSize
		v.debugImagesOff = off
		off += int(debugArraySize) * colorSize
		v.debugErrorsOff = off
		off += int(debugArraySize) * 8
	}
}

// Header returns the parsed input header.
func (v *View) Header() InputHeader { return v.header }

// ImageSize returns image_width².
func (v *View) ImageSize() uint64 { return v.imageSize }

// Target returns the target pixel at linear index i.
func (v *View) Target(i uint64) colorart.Color {
	o := v.targetOff + int(i)*colorSize
	return decodeColor(v.buf[o : o+colorSize])
}

// Importance returns the per-pixel error weight at linear index i.
func (v *View) Importance(i uint64) float64 {
	o := v.importanceOff + int(i)*8
	return decodeFloat64(v.buf[o : o+8])
}

// Thread returns the palette entry at index i.
func (v *View) Thread(i uint64) Thread {
	o := v.threadsOff + int(i)*threadSize
	b := v.buf[o : o+threadSize]
	return Thread{
		Alpha:       b[0],
		ThicknessUm: binary.LittleEndian.Uint64(b[1:9]),
		Color:       decodeColor(b[9:12]),
	}
}

// ThreadOrder returns the i-th entry of the thread-order array.
func (v *View) ThreadOrder(i uint64) uint64 {
	o := v.threadOrderOff + int(i)*8
	return binary.LittleEndian.Uint64(v.buf[o : o+8])
}

// StartPoint returns the i-th starting anchor index.
func (v *View) StartPoint(i uint64) uint64 {
	o := v.startPointsOff + int(i)*8
	return binary.LittleEndian.Uint64(v.buf[o : o+8])
}

// SetHeader writes the OutputHeader.
func (v *View) SetHeader(instructionAmount, absoluteError uint64, normalizedError float64) {
	b := v.buf[v.outputHeaderOff : v.outputHeaderOff+outputHeaderSize]
	le := binary.LittleEndian
	le.PutUint64(b[0:8], instructionAmount)
	le.PutUint64(b[8:16], absoluteError)
	le.PutUint64(b[16:24], math.Float64bits(normalizedError))
}

// SetResultPixel writes one pixel of the final rendered canvas.
func (v *View) SetResultPixel(i uint64, c colorart.Color) {
	o := v.resultOff + int(i)*colorSize
	encodeColor(v.buf[o:o+colorSize], c)
}

// SetInstruction writes the iter-th committed instruction.
func (v *View) SetInstruction(iter uint64, ins Instruction) {
	o := v.instructionsOff + int(iter)*instructionSize
	b := v.buf[o : o+instructionSize]
	le := binary.LittleEndian
	le.PutUint64(b[0:8], ins.StartIndex)
	le.PutUint64(b[8:16], ins.EndIndex)
	le.PutUint64(b[16:24], ins.ThreadIndex)
}

// SetDebugImagePixel writes pixel i of iteration iter's debug canvas
// snapshot. Only valid when the input header's DebugStoreImages flag is set.
func (v *View) SetDebugImagePixel(iter, i uint64, c colorart.Color) {
	o := v.debugImagesOff + int(iter*v.imageSize+i)*colorSize
	encodeColor(v.buf[o:o+colorSize], c)
}

// SetDebugError writes the absolute error of pixel i at iteration iter.
// Only valid when the input header's DebugStoreAbsoluteError flag is set.
func (v *View) SetDebugError(iter, i uint64, value uint64) {
	o := v.debugErrorsOff + int(iter*v.imageSize+i)*8
	binary.LittleEndian.PutUint64(v.buf[o:o+8], value)
}
