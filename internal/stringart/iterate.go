package stringart

import "github.com/CR1337/string-art/internal/shm"

// Result summarizes a finished optimization run.
type Result struct {
	Iterations      uint64
	AbsoluteError   uint64
	NormalizedError float64
}

// Run executes the iteration loop to completion (either exhausting
// max_iterations or satisfying a configured termination condition), writes
// the output header, the final canvas, and any requested debug arrays back
// through the view, and returns a summary.
func (o *Optimizer) Run() Result {
	o.pool.Start()
	defer o.pool.Stop()

	checkUnavailable := o.termination.Flags&shm.TerminateOnUnavailableConnection != 0
	checkMinRelative := o.termination.Flags&shm.TerminateOnMinRelativeError != 0

	iterations := uint64(0)

	for iteration := uint64(0); iteration < o.termination.MaxIterations; iteration++ {
		o.currentThreadIndex = o.view.ThreadOrder(iteration % o.threadOrderSize)
		o.currentStartIndex = o.lastBestPointIndices[o.currentThreadIndex]

		o.prepareCandidates(checkUnavailable)

		if checkUnavailable && o.possibleConnectionAmt == 0 {
			iterations = iteration
			o.logger.Info("stopping: no admissible connection remains", "iteration", iteration)
			break
		}

		o.seedErrors()

		o.currentThread = o.view.Thread(o.currentThreadIndex)
		o.currentThicknessInPixel = o.thicknessesInPixels[o.currentThreadIndex]

		o.pool.RunTask()

		best, bestErr := o.selectBest()

		o.view.SetInstruction(iteration, shm.Instruction{
			StartIndex:  o.currentStartIndex,
			EndIndex:    best,
			ThreadIndex: o.currentThreadIndex,
		})

		o.commit(best, bestErr)
		o.storeDebugInformation(iteration, best)

		iterations = iteration + 1

		o.logger.Debug("iteration committed",
			"iteration", iteration,
			"thread", o.currentThreadIndex,
			"start", o.currentStartIndex,
			"end", best,
			"absolute_error", o.lastBestError,
			"normalized_error", o.currentNormalizedError,
		)

		if o.onIteration != nil {
			o.onIteration(iteration, Result{
				Iterations:      iterations,
				AbsoluteError:   o.lastBestError,
				NormalizedError: o.currentNormalizedError,
			}, o.lastBestImage)
		}

		if checkMinRelative && iteration > 0 {
			relativeImprovement := 1.0 - o.currentNormalizedError/o.lastNormalizedError
			if relativeImprovement <= o.termination.MinRelativeError {
				o.relativeErrorStreak++
			} else {
				o.relativeErrorStreak = 0
			}
			if o.relativeErrorStreak == o.termination.RelativeErrorStreak {
				o.logger.Info("stopping: minimum relative error streak reached", "iteration", iteration)
				break
			}
		}
	}

	o.emitOutput(iterations)

	return Result{
		Iterations:      iterations,
		AbsoluteError:   o.lastBestError,
		NormalizedError: o.currentNormalizedError,
	}
}

// prepareCandidates builds the possible_connections list: every point
// other than the active thread's current anchor and, when the
// unavailable-connection flag is set, only those whose chord to the anchor
// has not already been drawn. Indexed by the candidate i itself, not by a
// stale write cursor.
func (o *Optimizer) prepareCandidates(checkUnavailable bool) {
	o.possibleConnectionAmt = 0
	for i := uint64(0); i < o.pointAmount; i++ {
		if i == o.currentStartIndex {
			continue
		}
		if checkUnavailable && o.connectionIsDone[i][o.currentStartIndex] {
			continue
		}
		o.possibleConnections[o.possibleConnectionAmt] = i
		o.possibleConnectionAmt++
	}
}

// seedErrors resets errors[p] to last_best_error for every candidate before
// dispatch, so the per-pixel deltas accumulated during rasterization are
// relative to the currently committed canvas rather than a stale value.
func (o *Optimizer) seedErrors() {
	for idx := uint64(0); idx < o.possibleConnectionAmt; idx++ {
		o.errors[o.possibleConnections[idx]] = o.lastBestError
	}
}

func (o *Optimizer) selectBest() (best uint64, bestErr uint64) {
	best = o.possibleConnections[0]
	bestErr = o.errors[best]
	for idx := uint64(1); idx < o.possibleConnectionAmt; idx++ {
		p := o.possibleConnections[idx]
		if o.errors[p] < bestErr {
			best = p
			bestErr = o.errors[p]
		}
	}
	return best, bestErr
}

func (o *Optimizer) commit(best uint64, bestErr uint64) {
	copy(o.lastBestImage, o.imageBuffer[best])
	copy(o.lastBestErrorImage, o.errorBuffer[best])
	o.lastBestError = bestErr
	o.lastBestPointIndices[o.currentThreadIndex] = best
	o.lastNormalizedError = o.currentNormalizedError
	o.currentNormalizedError = float64(o.lastBestError) / float64(o.imageSize)
}

func (o *Optimizer) storeDebugInformation(iteration, best uint64) {
	header := o.view.Header()
	if header.DebugFlags&shm.DebugStoreImages != 0 {
		for i := uint64(0); i < o.imageSize; i++ {
			o.view.SetDebugImagePixel(iteration, i, o.imageBuffer[best][i])
		}
	}
	if header.DebugFlags&shm.DebugStoreAbsoluteError != 0 {
		for i := uint64(0); i < o.imageSize; i++ {
			o.view.SetDebugError(iteration, i, o.errorBuffer[best][i])
		}
	}
}

func (o *Optimizer) emitOutput(iterations uint64) {
	o.view.SetHeader(iterations, o.lastBestError, o.currentNormalizedError)
	for i := uint64(0); i < o.imageSize; i++ {
		o.view.SetResultPixel(i, o.lastBestImage[i])
	}
}
