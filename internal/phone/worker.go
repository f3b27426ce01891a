package phone

import (
	"sync"
)

const workerQueueSize = 64

// Worker runs jobs one at a time on a dedicated goroutine.
type Worker struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorker starts a Worker.
func NewWorker() *Worker {
	w := &Worker{jobs: make(chan func(), workerQueueSize)}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for job := range w.jobs {
			job()
		}
	}()
	return w
}

// Submit queues job. It blocks only while the queue is full and reports
// false once the Worker is closed.
func (w *Worker) Submit(job func()) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}
	w.jobs <- job
	return true
}

// Close runs the queued jobs and waits for them.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	w.wg.Wait()
}
