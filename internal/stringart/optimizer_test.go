package stringart

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/CR1337/string-art/internal/colorart"
	"github.com/CR1337/string-art/internal/shm"
)

// regionSpec collects everything needed to hand-assemble a shared-memory
// input region for a test scenario.
type regionSpec struct {
	imageWidth      uint64
	pointAmount     uint64
	radiusUm        uint64
	background      colorart.Color
	threads         []shm.Thread
	startPoints     []uint64
	threadOrder     []uint64
	debugFlags      uint8
	terminationFlag uint8
	maxIterations   uint64
	minRelativeErr  float64
	relErrorStreak  uint64
	target          []colorart.Color
	importance      []float64
}

func buildView(t *testing.T, spec regionSpec) *shm.View {
	t.Helper()
	view, _ := buildViewBuf(t, spec)
	return view
}

// buildViewBuf is buildView plus the raw backing buffer, for tests that
// need to compare the written output region byte-for-byte.
func buildViewBuf(t *testing.T, spec regionSpec) (*shm.View, []byte) {
	t.Helper()
	imageSize := spec.imageWidth * spec.imageWidth
	threadAmount := uint64(len(spec.threads))
	threadOrderSize := uint64(len(spec.threadOrder))

	if uint64(len(spec.target)) != imageSize {
		t.Fatalf("target has %d entries, want %d", len(spec.target), imageSize)
	}
	if uint64(len(spec.importance)) != imageSize {
		t.Fatalf("importance has %d entries, want %d", len(spec.importance), imageSize)
	}

	inputHeaderSize := 69
	threadSize := 12
	colorSize := 3
	outputHeaderSize := 24
	instructionSize := 24

	inputLen := inputHeaderSize +
		int(threadAmount)*threadSize +
		int(threadOrderSize)*8 +
		int(threadAmount)*8 +
		int(imageSize)*colorSize +
		int(imageSize)*8

	outputLen := outputHeaderSize +
		int(imageSize)*colorSize +
		int(spec.maxIterations)*instructionSize

	if spec.debugFlags != 0 {
		debugArraySize := int(spec.maxIterations) * int(imageSize)
		outputLen += debugArraySize*colorSize + debugArraySize*8
	}

	buf := make([]byte, inputLen+outputLen)
	le := binary.LittleEndian

	le.PutUint64(buf[0:8], spec.imageWidth)
	le.PutUint64(buf[8:16], threadOrderSize)
	buf[16] = spec.debugFlags
	le.PutUint64(buf[17:25], spec.radiusUm)
	buf[25], buf[26], buf[27] = spec.background.C, spec.background.M, spec.background.Y
	le.PutUint64(buf[28:36], spec.pointAmount)
	le.PutUint64(buf[36:44], threadAmount)
	buf[44] = spec.terminationFlag
	le.PutUint64(buf[45:53], spec.maxIterations)
	le.PutUint64(buf[53:61], math.Float64bits(spec.minRelativeErr))
	le.PutUint64(buf[61:69], spec.relErrorStreak)

	off := inputHeaderSize
	for _, th := range spec.threads {
		buf[off] = th.Alpha
		le.PutUint64(buf[off+1:off+9], th.ThicknessUm)
		buf[off+9], buf[off+10], buf[off+11] = th.Color.C, th.Color.M, th.Color.Y
		off += threadSize
	}
	for _, idx := range spec.threadOrder {
		le.PutUint64(buf[off:off+8], idx)
		off += 8
	}
	for _, sp := range spec.startPoints {
		le.PutUint64(buf[off:off+8], sp)
		off += 8
	}
	for _, c := range spec.target {
		buf[off], buf[off+1], buf[off+2] = c.C, c.M, c.Y
		off += colorSize
	}
	for _, w := range spec.importance {
		le.PutUint64(buf[off:off+8], math.Float64bits(w))
		off += 8
	}

	view, err := shm.ParseInput(buf)
	if err != nil {
		t.Fatalf("ParseInput: %v", err)
	}
	view.InitOutput()
	return view, buf
}

func uniformColors(n uint64, c colorart.Color) []colorart.Color {
	out := make([]colorart.Color, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func uniformWeights(n uint64, w float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = w
	}
	return out
}

// TestTrivialSinglePoint mirrors scenario S1: a single thread whose full
// chord exactly reproduces the (all-background) target should commit one
// instruction with zero error.
func TestTrivialSinglePoint(t *testing.T) {
	const width = 8
	imageSize := uint64(width * width)
	background := colorart.Color{C: 0, M: 0, Y: 0}

	spec := regionSpec{
		imageWidth:  width,
		pointAmount: 4,
		radiusUm:    1000,
		background:  background,
		threads: []shm.Thread{
			{Alpha: 255, ThicknessUm: 2000, Color: colorart.Color{C: 0, M: 0, Y: 0}},
		},
		startPoints:     []uint64{0},
		threadOrder:     []uint64{0},
		maxIterations:   1,
		target:          uniformColors(imageSize, background),
		importance:      uniformWeights(imageSize, 1.0),
		terminationFlag: 0,
	}

	view := buildView(t, spec)
	opt := New(view, Config{WorkerAmount: 1})
	result := opt.Run()

	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
	if result.AbsoluteError != 0 {
		t.Errorf("AbsoluteError = %d, want 0", result.AbsoluteError)
	}
}

// TestUnavailableConnectionTermination mirrors scenario S2: once every
// candidate chord from the current anchor has already been drawn, the loop
// must stop before exhausting max_iterations.
func TestUnavailableConnectionTermination(t *testing.T) {
	const width = 8
	imageSize := uint64(width * width)
	background := colorart.Color{C: 0, M: 0, Y: 0}

	spec := regionSpec{
		imageWidth:  width,
		pointAmount: 3,
		radiusUm:    1000,
		background:  background,
		threads: []shm.Thread{
			{Alpha: 255, ThicknessUm: 500, Color: colorart.Color{C: 100, M: 0, Y: 0}},
		},
		startPoints:     []uint64{0},
		threadOrder:     []uint64{0},
		maxIterations:   100,
		terminationFlag: shm.TerminateOnUnavailableConnection,
		target:          uniformColors(imageSize, background),
		importance:      uniformWeights(imageSize, 1.0),
	}

	view := buildView(t, spec)
	opt := New(view, Config{WorkerAmount: 2})
	result := opt.Run()

	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2 (only 2 distinct chords possible among 3 points)", result.Iterations)
	}
}

// TestMinRelativeErrorStreakTermination mirrors scenario S3: when the
// thread color equals the background, every chord is a no-op, so the
// relative improvement is always 0 and the streak should terminate the run
// well before max_iterations.
func TestMinRelativeErrorStreakTermination(t *testing.T) {
	const width = 8
	imageSize := uint64(width * width)
	background := colorart.Color{C: 5, M: 5, Y: 5}

	spec := regionSpec{
		imageWidth:  width,
		pointAmount: 6,
		radiusUm:    1000,
		background:  background,
		threads: []shm.Thread{
			{Alpha: 128, ThicknessUm: 500, Color: background},
		},
		startPoints:     []uint64{0},
		threadOrder:     []uint64{0},
		maxIterations:   50,
		terminationFlag: shm.TerminateOnMinRelativeError,
		minRelativeErr:  0.0,
		relErrorStreak:  3,
		target:          uniformColors(imageSize, colorart.Color{C: 200, M: 200, Y: 200}),
		importance:      uniformWeights(imageSize, 1.0),
	}

	view := buildView(t, spec)
	opt := New(view, Config{WorkerAmount: 1})
	result := opt.Run()

	if result.Iterations >= 50 {
		t.Errorf("Iterations = %d, expected early stop well before max_iterations", result.Iterations)
	}
}

// TestDeterminism mirrors scenario S4: two runs over identical input
// produce byte-identical results.
func TestDeterminism(t *testing.T) {
	const width = 10
	imageSize := uint64(width * width)
	background := colorart.Color{C: 10, M: 20, Y: 30}

	newSpec := func() regionSpec {
		target := uniformColors(imageSize, colorart.Color{C: 200, M: 50, Y: 10})
		return regionSpec{
			imageWidth:  width,
			pointAmount: 8,
			radiusUm:    1000,
			background:  background,
			threads: []shm.Thread{
				{Alpha: 200, ThicknessUm: 300, Color: colorart.Color{C: 255, M: 0, Y: 0}},
				{Alpha: 150, ThicknessUm: 300, Color: colorart.Color{C: 0, M: 255, Y: 0}},
			},
			startPoints:   []uint64{0, 2},
			threadOrder:   []uint64{0, 1, 0, 1},
			maxIterations: 6,
			target:        target,
			importance:    uniformWeights(imageSize, 1.0),
		}
	}

	v1, buf1 := buildViewBuf(t, newSpec())
	r1 := New(v1, Config{WorkerAmount: 3}).Run()

	v2, buf2 := buildViewBuf(t, newSpec())
	r2 := New(v2, Config{WorkerAmount: 1}).Run()

	if r1 != r2 {
		t.Errorf("results differ between worker counts: %+v vs %+v", r1, r2)
	}
	// The input section is never mutated by Run, so comparing the whole
	// region confirms result/instructions (and any debug arrays) are
	// byte-identical regardless of worker count, not just the summary.
	if !bytes.Equal(buf1, buf2) {
		t.Errorf("shared-memory region differs between worker counts (result/instructions not byte-identical)")
	}
}

// TestWeightedErrorScaling mirrors scenario S6: doubling every importance
// weight exactly doubles the resulting absolute error.
func TestWeightedErrorScaling(t *testing.T) {
	const width = 6
	imageSize := uint64(width * width)
	background := colorart.Color{C: 0, M: 0, Y: 0}

	newSpec := func(weight float64) regionSpec {
		return regionSpec{
			imageWidth:  width,
			pointAmount: 4,
			radiusUm:    1000,
			background:  background,
			threads: []shm.Thread{
				{Alpha: 255, ThicknessUm: 200, Color: colorart.Color{C: 0, M: 0, Y: 0}},
			},
			startPoints:   []uint64{0},
			threadOrder:   []uint64{0},
			maxIterations: 1,
			target:        uniformColors(imageSize, colorart.Color{C: 100, M: 100, Y: 100}),
			importance:    uniformWeights(imageSize, weight),
		}
	}

	r1 := New(buildView(t, newSpec(1.0)), Config{WorkerAmount: 1}).Run()
	r2 := New(buildView(t, newSpec(2.0)), Config{WorkerAmount: 1}).Run()

	if r2.AbsoluteError != 2*r1.AbsoluteError {
		t.Errorf("AbsoluteError with weight=2 is %d, want %d (2x weight=1's %d)", r2.AbsoluteError, 2*r1.AbsoluteError, r1.AbsoluteError)
	}
}

// gradientColors builds a non-uniform target so that off-chord pixels have
// nonzero error against the background, the condition under which the
// image_buffer/error_buffer seeding bug (and the out-of-disc accumulation
// bug) is actually observable.
func gradientColors(width uint64) []colorart.Color {
	out := make([]colorart.Color, width*width)
	for i := range out {
		out[i] = colorart.Color{
			C: uint8(i % 256),
			M: uint8((i * 3) % 256),
			Y: uint8((i * 7) % 256),
		}
	}
	return out
}

func gradientWeights(width uint64) []float64 {
	out := make([]float64, width*width)
	for i := range out {
		out[i] = 0.5 + float64(i%5)*0.25
	}
	return out
}

// TestInvariantErrorImageSumMatchesScalar mirrors spec property 1: after
// every iteration, sum(last_best_error_image) must equal the scalar
// last_best_error. It uses a non-uniform target (unlike the S1-style
// all-background scenarios above) so an incorrectly seeded image_buffer/
// error_buffer — which leaves off-chord pixels at zero error instead of
// their committed value — would actually change the sum and be caught.
func TestInvariantErrorImageSumMatchesScalar(t *testing.T) {
	const width = 12
	background := colorart.Color{C: 40, M: 60, Y: 80}

	spec := regionSpec{
		imageWidth:  width,
		pointAmount: 10,
		radiusUm:    1000,
		background:  background,
		threads: []shm.Thread{
			{Alpha: 180, ThicknessUm: 250, Color: colorart.Color{C: 220, M: 30, Y: 10}},
			{Alpha: 120, ThicknessUm: 250, Color: colorart.Color{C: 10, M: 200, Y: 60}},
		},
		startPoints:   []uint64{0, 4},
		threadOrder:   []uint64{0, 1, 0, 1, 0},
		maxIterations: 5,
		target:        gradientColors(width),
		importance:    gradientWeights(width),
	}

	var opt *Optimizer
	var steps []replayStep
	cfg := Config{
		WorkerAmount: 2,
		OnIteration: func(iteration uint64, result Result, canvas []colorart.Color) {
			sum := uint64(0)
			for _, e := range opt.lastBestErrorImage {
				sum += e
			}
			if sum != opt.lastBestError {
				t.Fatalf("sum(last_best_error_image) = %d, want last_best_error = %d", sum, opt.lastBestError)
			}
			steps = append(steps, replayStep{
				start:  opt.currentStartIndex,
				end:    opt.lastBestPointIndices[opt.currentThreadIndex],
				thread: opt.currentThreadIndex,
			})
		},
	}

	view := buildView(t, spec)
	opt = New(view, cfg)
	result := opt.Run()

	if uint64(len(steps)) != result.Iterations {
		t.Fatalf("captured %d iteration snapshots, want %d", len(steps), result.Iterations)
	}

	// Property 2: replay every committed instruction from scratch against a
	// fresh background canvas and confirm the resulting total error matches
	// what the optimizer reports for the final iteration.
	replayed := replayInstructions(t, opt, steps)
	if replayed != result.AbsoluteError {
		t.Errorf("replaying instructions from scratch yields error %d, want %d (optimizer's reported absolute_error)", replayed, result.AbsoluteError)
	}
}

// replayStep is one committed (start, end, thread) triple captured via the
// OnIteration hook for later independent replay.
type replayStep struct {
	start, end, thread uint64
}

// replayInstructions recomputes the canvas and total weighted squared error
// from the initial background by applying each committed instruction in
// order, independently of the optimizer's own running totals.
func replayInstructions(t *testing.T, o *Optimizer, steps []replayStep) uint64 {
	t.Helper()

	canvas := make([]colorart.Color, o.imageSize)
	errImage := make([]uint64, o.imageSize)
	total := uint64(0)

	for i := uint64(0); i < o.imageSize; i++ {
		x := float64(i%o.imageWidth) - o.imageRadius
		y := float64(i/o.imageWidth) - o.imageRadius
		if x*x+y*y > o.imageRadius*o.imageRadius {
			continue
		}
		canvas[i] = o.disc.Background
		err := colorart.WeightedSquaredError(o.view.Target(i), canvas[i], o.view.Importance(i), o.errorMode)
		errImage[i] = err
		total += err
	}

	for _, s := range steps {
		thread := o.view.Thread(s.thread)
		thicknessInPixels := float64(thread.ThicknessUm) * float64(o.imageWidth) / (2.0 * float64(o.disc.RadiusUm))

		x0, y0 := rimCoordinate(s.start, o.pointAmount, o.imageWidth, o.imageRadius)
		x1, y1 := rimCoordinate(s.end, o.pointAmount, o.imageWidth, o.imageRadius)

		o.rast.Draw(x0, y0, x1, y1, thicknessInPixels, func(x, y int, intensity float64) {
			if x < 0 || y < 0 || uint64(x) >= o.imageWidth || uint64(y) >= o.imageWidth {
				return
			}
			i := uint64(y)*o.imageWidth + uint64(x)

			alphaEff := (float64(thread.Alpha) / 255.0) * intensity
			newPixel := colorart.Mix(canvas[i], thread.Color, alphaEff)
			newErr := colorart.WeightedSquaredError(o.view.Target(i), newPixel, o.view.Importance(i), o.errorMode)

			total -= errImage[i]
			total += newErr

			canvas[i] = newPixel
			errImage[i] = newErr
		})
	}

	return total
}
