package stringart

import "github.com/CR1337/string-art/internal/colorart"

// candidateTask is installed once on the worker pool and run once per
// iteration: each worker claims a contiguous slice of the current
// possible_connections list and rasterizes+scores every candidate in it.
// It reads only fields the coordinator has already set for this iteration
// (currentStartIndex, currentThread, currentThicknessInPixel,
// possibleConnections[:possibleConnectionAmt]) and writes only to the
// disjoint per-candidate slices of imageBuffer/errorBuffer/errors plus the
// disjoint connectionIsDone coordinates touched by its own candidates.
func (o *Optimizer) candidateTask(workerIndex, workerAmount int) {
	n := o.possibleConnectionAmt
	chunk := ceilDiv(n, uint64(workerAmount))
	start := uint64(workerIndex) * chunk
	end := start + chunk
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}

	for idx := start; idx < end; idx++ {
		p := o.possibleConnections[idx]
		o.drawCandidate(p)
		o.connectionIsDone[o.currentStartIndex][p] = true
		o.connectionIsDone[p][o.currentStartIndex] = true
	}
}

// drawCandidate rasterizes the chord from the active thread's anchor to
// candidate p and accumulates its total weighted squared error into
// errors[p], recording the resulting per-pixel canvas and error in this
// candidate's scratch buffers. image_buffer[p]/error_buffer[p] are full
// trial compositions (spec §3): they are seeded from the committed canvas
// before the chord is rasterized over them, so commit can copy the whole
// buffer back without leaving pixels outside the chord stale.
func (o *Optimizer) drawCandidate(p uint64) {
	x0, y0 := rimCoordinate(o.currentStartIndex, o.pointAmount, o.imageWidth, o.imageRadius)
	x1, y1 := rimCoordinate(p, o.pointAmount, o.imageWidth, o.imageRadius)

	thread := o.currentThread
	imageBuffer := o.imageBuffer[p]
	errorBuffer := o.errorBuffer[p]

	copy(imageBuffer, o.lastBestImage)
	copy(errorBuffer, o.lastBestErrorImage)

	o.rast.Draw(x0, y0, x1, y1, o.currentThicknessInPixel, func(x, y int, intensity float64) {
		if x < 0 || y < 0 || uint64(x) >= o.imageWidth || uint64(y) >= o.imageWidth {
			return
		}
		i := uint64(y)*o.imageWidth + uint64(x)

		alphaEff := (float64(thread.Alpha) / 255.0) * intensity
		newPixel := colorart.Mix(o.lastBestImage[i], thread.Color, alphaEff)
		newErr := colorart.WeightedSquaredError(o.view.Target(i), newPixel, o.view.Importance(i), o.errorMode)
		oldErr := o.lastBestErrorImage[i]

		o.errors[p] -= oldErr
		o.errors[p] += newErr

		imageBuffer[i] = newPixel
		errorBuffer[i] = newErr
	})
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}
