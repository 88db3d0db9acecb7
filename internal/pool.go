package internal

import "sync"

// WorkerPool runs fire-and-forget work, such as telling the backend that a session has
// ended, on a fixed number of goroutines. Work is never queued without bound: TryQueue
// drops it when the queue is full or the pool has stopped.
type WorkerPool struct {
	workers int
	queue   chan func()
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorkerPool returns a pool of n workers whose queue holds up to n pending items.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	return &WorkerPool{
		workers: n,
		queue:   make(chan func(), n),
	}
}

// Start launches the workers. Calling it again does nothing.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true
	wp.wg.Add(wp.workers)
	for i := 0; i < wp.workers; i++ {
		go func() {
			defer wp.wg.Done()
			for fn := range wp.queue {
				fn()
			}
		}()
	}
}

// Stop refuses new work and waits for queued work to finish. Work queued on a pool which
// was never started is discarded. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.queue)
	if !wp.started {
		// nobody will drain the queue
		for range wp.queue {
		}
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}

// TryQueue queues fn if there is room for it. Returns false if fn was dropped.
func (wp *WorkerPool) TryQueue(fn func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}
	select {
	case wp.queue <- fn:
		return true
	default:
		return false
	}
}
