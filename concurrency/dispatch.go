package concurrency

import (
	"sync"
)

// Dispatcher runs handed-off work on a small pool of workers. The engine
// uses it to deliver ring events to the notifier without holding a
// schedule's lock while downstream UI code runs.
type Dispatcher struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	stopCh     chan struct{}
	started    bool
	mu         sync.Mutex
}

// NewDispatcher creates a dispatcher with the specified worker count
func NewDispatcher(maxWorkers int) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1 // default: a single delivery worker preserves order
	}

	return &Dispatcher{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), maxWorkers*8),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the worker goroutines
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.maxWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			// Drain whatever was queued before the stop
			for {
				select {
				case task := <-d.taskQueue:
					task()
				default:
					return
				}
			}
		case task := <-d.taskQueue:
			task()
		}
	}
}

// Submit hands work to the pool. Before Start (or after Stop) the work runs
// synchronously so nothing is silently lost.
func (d *Dispatcher) Submit(task func()) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	if !started {
		task()
		return
	}

	select {
	case <-d.stopCh:
		task()
	case d.taskQueue <- task:
	}
}

// Stop drains the queue and waits for all workers to finish
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return
	}

	close(d.stopCh)
	d.wg.Wait()
	d.started = false
}

// QueueLength returns the current number of queued deliveries
func (d *Dispatcher) QueueLength() int {
	return len(d.taskQueue)
}
