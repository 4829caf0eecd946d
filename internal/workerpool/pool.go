// Package workerpool implements a small pinned worker pool: a fixed set of
// persistent goroutines, each woken in lockstep to run one task and then
// rendezvous with the coordinator before the next wake cycle. It replaces
// the pthread_barrier + POSIX signal wakeup pattern of the reference
// implementation with a sync.Cond broadcast paired with a sync.WaitGroup
// arrival barrier.
package workerpool

import (
	"runtime"
	"sync"
)

// Task is run by every worker once per RunTask call. workerIndex identifies
// the calling worker in [0, workerAmount); workerAmount is the pool's fixed
// size, handed to the task so it can partition work without a closure over
// pool internals.
type Task func(workerIndex, workerAmount int)

// Pool is a fixed-size, persistent set of pinned worker goroutines.
type Pool struct {
	workerAmount int
	pinCores     bool

	mu         sync.Mutex
	cond       *sync.Cond
	task       Task
	generation uint64
	stopped    bool

	arrival sync.WaitGroup
	life    sync.WaitGroup
}

// New creates a pool of workerAmount persistent workers. Each worker is
// locked to the OS thread it starts on; when pinCores is true, it is also
// pinned to the CPU core matching its index (Linux only; a no-op elsewhere).
// workerAmount must be at least 1; callers typically clamp it to
// [1, CoreAmount()].
func New(workerAmount int, pinCores bool) *Pool {
	p := &Pool{
		workerAmount: workerAmount,
		pinCores:     pinCores,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetTask installs the task every worker runs on each subsequent RunTask
// call. It must be called before Start.
func (p *Pool) SetTask(task Task) {
	p.mu.Lock()
	p.task = task
	p.mu.Unlock()
}

// Start launches the worker goroutines. They block immediately, waiting
// for the first RunTask wake.
func (p *Pool) Start() {
	p.life.Add(p.workerAmount)
	for i := 0; i < p.workerAmount; i++ {
		go p.workerLoop(i)
	}
}

func (p *Pool) workerLoop(workerIndex int) {
	defer p.life.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if p.pinCores {
		pinToCore(workerIndex)
	}

	lastSeen := uint64(0)
	for {
		p.mu.Lock()
		for p.generation == lastSeen && !p.stopped {
			p.cond.Wait()
		}
		stopped := p.stopped
		gen := p.generation
		task := p.task
		amount := p.workerAmount
		p.mu.Unlock()

		if stopped {
			return
		}
		lastSeen = gen

		task(workerIndex, amount)
		p.arrival.Done()
	}
}

// RunTask wakes every worker to run the installed task exactly once and
// blocks until all of them have finished (the rendezvous barrier). It must
// not be called concurrently with another RunTask on the same pool.
func (p *Pool) RunTask() {
	p.arrival.Add(p.workerAmount)

	p.mu.Lock()
	p.generation++
	p.cond.Broadcast()
	p.mu.Unlock()

	p.arrival.Wait()
}

// Stop wakes all workers with a termination signal and waits for them to
// exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.life.Wait()
}

// CoreAmount reports the number of logical CPUs available, the Go
// equivalent of sysconf(_SC_NPROCESSORS_ONLN).
func CoreAmount() int {
	return runtime.NumCPU()
}

// ClampWorkerAmount constrains a requested worker count to [1, CoreAmount()].
func ClampWorkerAmount(requested int) int {
	cores := CoreAmount()
	if requested < 1 {
		return 1
	}
	if requested > cores {
		return cores
	}
	return requested
}
