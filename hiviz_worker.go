//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package hiviz

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// defaultPollInterval is the default time the worker waits on an empty queue
// before checking its state again.
const defaultPollInterval = 50 * time.Millisecond

// workerState is the lifecycle state of the worker.
type workerState int

const (
	stateStopped workerState = iota
	stateStarting
	stateRunning
	stateStopping
)

// String returns the state name.
func (s workerState) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// worker is the single goroutine consuming the event queue and performing
// all sink I/O.
type worker struct {
	// mu protects state, generation, abort and done.
	mu sync.Mutex
	// state is the current lifecycle state.
	state workerState
	// generation is bumped by every stop (and by a start reviving a stopping
	// worker), a stop sentinel is honored only if it carries the current one.
	generation uint64
	// abort makes the loop exit after the item being handled.
	abort bool
	// done is closed when the current run exits.
	done chan struct{}

	// ioMutex serializes backend calls.
	ioMutex sync.Mutex
	// pollInterval is the queue wait timeout, a time.Duration.
	pollInterval atomic.Int64

	// queue is the consumed event queue.
	queue *eventQueue
	// backends returns the backends entries are dispatched to.
	backends func() []Backend
	// debug returns the debug channel for failures not tied to an entry.
	debug func() io.Writer
}

// newWorker allocates a stopped worker.
func newWorker(queue *eventQueue, backends func() []Backend, debug func() io.Writer) *worker {
	w := &worker{
		queue:    queue,
		backends: backends,
		debug:    debug,
	}
	w.pollInterval.Store(int64(defaultPollInterval))
	return w
}

// interval returns the queue poll interval.
func (w *worker) interval() time.Duration {
	return time.Duration(w.pollInterval.Load())
}

// setInterval sets the queue poll interval, non positive values are ignored.
func (w *worker) setInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval.Store(int64(interval))
	}
}

// currentState returns the worker state.
func (w *worker) currentState() workerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// start launches the worker goroutine. Starting a started worker is a no-op,
// starting a stopping worker cancels the pending stop.
func (w *worker) start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateStarting, stateRunning:
		return
	case stateStopping:
		w.generation++
		w.abort = false
		w.state = stateRunning
		return
	}

	w.state = stateStarting
	w.abort = false
	w.done = make(chan struct{})
	go w.run(w.done)
}

// stop asks the worker to exit and waits up to timeout for it to do so. With
// drain every item queued before the call is handled first, otherwise the
// worker exits after the item it's currently handling. It returns false if
// the worker is still alive when timeout expires.
func (w *worker) stop(drain bool, timeout time.Duration) bool {
	w.mu.Lock()
	if w.state == stateStopped {
		w.mu.Unlock()
		return true
	}
	w.generation++
	generation := w.generation
	w.state = stateStopping
	if !drain {
		w.abort = true
	}
	done := w.done
	w.mu.Unlock()

	if drain {
		w.queue.enqueue(queueItem{kind: itemFlush})
	}
	w.queue.enqueue(queueItem{kind: itemStop, generation: generation})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// flush asks the worker to flush all backends once every item queued before
// the call is handled. It returns false if the worker isn't running or
// didn't get there within timeout.
func (w *worker) flush(timeout time.Duration) bool {
	w.mu.Lock()
	state := w.state
	w.mu.Unlock()
	if state == stateStopped {
		return false
	}

	done := make(chan struct{})
	w.queue.enqueue(queueItem{kind: itemFlush, done: done})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// run is the worker loop.
func (w *worker) run(done chan struct{}) {
	w.mu.Lock()
	if w.state == stateStarting {
		w.state = stateRunning
	}
	w.mu.Unlock()

	for {
		item, ok := w.queue.dequeue(w.interval())
		if ok {
			switch item.kind {
			case itemStop:
				if w.exit(done, item.generation) {
					return
				}
			case itemFlush:
				w.flushBackends()
				if item.done != nil {
					close(item.done)
				}
			default:
				w.dispatch(item.entry)
			}
		}

		if w.aborted(done) {
			return
		}
	}
}

// exit moves the worker to stopped if generation matches the pending stop.
func (w *worker) exit(done chan struct{}, generation uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateStopping || w.generation != generation {
		return false
	}
	w.state = stateStopped
	close(done)
	return true
}

// aborted moves the worker to stopped if an abrupt stop is pending.
func (w *worker) aborted(done chan struct{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.abort || w.state != stateStopping {
		return false
	}
	w.abort = false
	w.state = stateStopped
	close(done)
	return true
}

// dispatch delivers entry to every backend. A failing backend doesn't
// prevent delivery to the others.
func (w *worker) dispatch(entry *LogEntry) {
	if entry == nil {
		return
	}

	w.ioMutex.Lock()
	defer w.ioMutex.Unlock()

	for _, backend := range w.backends() {
		w.deliver(backend, entry)
	}
}

// deliver forwards entry to backend reporting failures to the entry's debug
// channel.
func (w *worker) deliver(backend Backend, entry *LogEntry) {
	debug := entry.opts.stderr()
	defer func() {
		if r := recover(); r != nil {
			report(debug, "backend %q panicked: %v", backend.ID(), r)
		}
	}()

	if err := backend.Log(entry); err != nil {
		report(debug, "backend %q failed to log entry: %v", backend.ID(), err)
	}
}

// flushBackends flushes every backend.
func (w *worker) flushBackends() {
	w.ioMutex.Lock()
	defer w.ioMutex.Unlock()

	for _, backend := range w.backends() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					report(w.debug(), "backend %q panicked while flushing: %v", backend.ID(), r)
				}
			}()
			if err := backend.Flush(); err != nil {
				report(w.debug(), "backend %q failed to flush: %v", backend.ID(), err)
			}
		}()
	}
}
