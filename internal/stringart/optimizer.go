// Package stringart implements the greedy thread-stringing optimizer: the
// iteration loop that grows an instruction sequence one chord at a time,
// picking at each step the candidate endpoint whose thread best reduces the
// weighted squared CMY error against a target raster.
package stringart

import (
	"log/slog"
	"math"

	"github.com/CR1337/string-art/internal/colorart"
	"github.com/CR1337/string-art/internal/raster"
	"github.com/CR1337/string-art/internal/shm"
	"github.com/CR1337/string-art/internal/workerpool"
)

// Config controls aspects of the optimizer not carried in the shared-memory
// input section.
type Config struct {
	// WorkerAmount is the number of pinned workers to run candidate
	// evaluation on, clamped to [1, workerpool.CoreAmount()].
	WorkerAmount int
	// PinCores requests CPU-core affinity for each worker.
	PinCores bool
	// ErrorMode selects the weighted-squared-error formula; defaults to
	// colorart.SumThenSquare, the reference implementation's literal
	// behavior.
	ErrorMode colorart.ErrorMode
	// Logger receives per-iteration progress logs. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger
	// OnIteration, if set, is called synchronously after each iteration is
	// committed, with the canvas snapshot valid only for the duration of
	// the call (it aliases the optimizer's internal buffer). This is the
	// sole extension point for developer-convenience tooling such as
	// periodic disk dumps; the optimizer has no knowledge of what, if
	// anything, is on the other end of it.
	OnIteration func(iteration uint64, result Result, canvas []colorart.Color)
}

// Optimizer holds all state for one optimization run: the committed canvas,
// the per-candidate scratch buffers, and the worker pool that evaluates
// candidates in parallel.
type Optimizer struct {
	view *shm.View
	pool *workerpool.Pool
	rast raster.Rasterizer

	errorMode   colorart.ErrorMode
	logger      *slog.Logger
	onIteration func(iteration uint64, result Result, canvas []colorart.Color)

	imageWidth      uint64
	imageSize       uint64
	imageRadius     float64
	pointAmount     uint64
	threadAmount    uint64
	threadOrderSize uint64
	disc            shm.Disc
	termination     shm.Termination

	thicknessesInPixels []float64

	lastBestImage         []colorart.Color
	lastBestErrorImage    []uint64
	lastBestError         uint64
	lastBestPointIndices  []uint64
	imageBuffer           [][]colorart.Color
	errorBuffer           [][]uint64
	errors                []uint64
	possibleConnections   []uint64
	possibleConnectionAmt uint64
	connectionIsDone      [][]bool

	currentThreadIndex      uint64
	currentStartIndex       uint64
	currentThread           shm.Thread
	currentThicknessInPixel float64

	lastNormalizedError    float64
	currentNormalizedError float64
	relativeErrorStreak    uint64
}

// New constructs an Optimizer over view, allocating every buffer the
// iteration loop will need and painting the initial (background-only)
// canvas. view must already have had InitOutput called.
func New(view *shm.View, cfg Config) *Optimizer {
	header := view.Header()
	workerAmount := workerpool.ClampWorkerAmount(cfg.WorkerAmount)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Optimizer{
		view:            view,
		pool:            workerpool.New(workerAmount, cfg.PinCores),
		errorMode:       cfg.ErrorMode,
		logger:          logger,
		onIteration:     cfg.OnIteration,
		imageWidth:      header.ImageWidth,
		imageSize:       view.ImageSize(),
		imageRadius:     float64(header.ImageWidth) / 2.0,
		pointAmount:     header.Indexer.PointAmount,
		threadAmount:    header.Indexer.ThreadAmount,
		threadOrderSize: header.ThreadOrderSize,
		disc:            header.Disc,
		termination:     header.Termination,
	}

	o.initBuffers()
	o.paintBackground()
	o.pool.SetTask(o.candidateTask)

	logger.Info("optimizer constructed",
		"image_width", o.imageWidth,
		"point_amount", o.pointAmount,
		"thread_amount", o.threadAmount,
		"worker_amount", workerAmount,
		"initial_error", o.lastBestError,
	)

	return o
}

func (o *Optimizer) initBuffers() {
	o.lastBestImage = make([]colorart.Color, o.imageSize)
	o.lastBestErrorImage = make([]uint64, o.imageSize)

	o.lastBestPointIndices = make([]uint64, o.threadAmount)
	for i := uint64(0); i < o.threadAmount; i++ {
		o.lastBestPointIndices[i] = o.view.StartPoint(i)
	}

	o.thicknessesInPixels = make([]float64, o.threadAmount)
	for i := uint64(0); i < o.threadAmount; i++ {
		thread := o.view.Thread(i)
		o.thicknessesInPixels[i] = float64(thread.ThicknessUm) * float64(o.imageWidth) / (2.0 * float64(o.disc.RadiusUm))
	}

	o.imageBuffer = make([][]colorart.Color, o.pointAmount)
	o.errorBuffer = make([][]uint64, o.pointAmount)
	for p := uint64(0); p < o.pointAmount; p++ {
		o.imageBuffer[p] = make([]colorart.Color, o.imageSize)
		o.errorBuffer[p] = make([]uint64, o.imageSize)
	}
	o.errors = make([]uint64, o.pointAmount)
	o.possibleConnections = make([]uint64, o.pointAmount)

	o.connectionIsDone = make([][]bool, o.pointAmount)
	for i := range o.connectionIsDone {
		o.connectionIsDone[i] = make([]bool, o.pointAmount)
	}
}

// paintBackground fills every in-disc pixel with the disc's background
// color and computes the initial per-pixel error and its sum. Out-of-disc
// pixels are never touched: they are not painted and do not contribute to
// last_best_error_image or last_best_error.
func (o *Optimizer) paintBackground() {
	for i := uint64(0); i < o.imageSize; i++ {
		x := float64(i%o.imageWidth) - o.imageRadius
		y := float64(i/o.imageWidth) - o.imageRadius
		if x*x+y*y > o.imageRadius*o.imageRadius {
			continue
		}
		o.lastBestImage[i] = o.disc.Background

		target := o.view.Target(i)
		weight := o.view.Importance(i)
		err := colorart.WeightedSquaredError(target, o.lastBestImage[i], weight, o.errorMode)
		o.lastBestErrorImage[i] = err
		o.lastBestError += err
	}
	o.currentNormalizedError = float64(o.lastBestError) / float64(o.imageSize)
}

func rimCoordinate(index, pointAmount, imageWidth uint64, radius float64) (x, y float64) {
	angle := 2.0 * math.Pi * float64(index) / float64(pointAmount)
	x = math.Cos(angle)*radius + radius
	y = float64(imageWidth) - (math.Sin(angle)*radius + radius)
	return x, y
}
