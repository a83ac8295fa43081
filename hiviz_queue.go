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
	"sync"
	"time"
)

// itemKind identifies what a queued item carries.
type itemKind int

const (
	// itemEntry is a log entry to be dispatched.
	itemEntry itemKind = iota
	// itemFlush asks the worker to flush all backends.
	itemFlush
	// itemStop asks the worker to stop.
	itemStop
)

// queueItem is a single element of the event queue.
type queueItem struct {
	// kind tells which of the fields below are meaningful.
	kind itemKind
	// entry is the log entry of itemEntry items.
	entry *LogEntry
	// done is closed by the worker once an itemFlush is handled, may be nil.
	done chan struct{}
	// generation ties an itemStop to the worker run that requested it, stale
	// stop requests are ignored by later runs.
	generation uint64
}

// eventQueue is an unbounded FIFO queue. Any number of goroutines may
// enqueue, a single worker dequeues.
type eventQueue struct {
	// entries is the slice of queued items.
	entries []queueItem
	// entriesMutex protects access to entries. It's never held during I/O.
	entriesMutex sync.Mutex
	// bus wakes up a dequeue waiting on an empty queue.
	bus chan struct{}
}

// newEventQueue allocates an empty queue.
func newEventQueue() *eventQueue {
	return &eventQueue{bus: make(chan struct{}, 1)}
}

// enqueue appends item to the queue. It never blocks.
func (q *eventQueue) enqueue(item queueItem) {
	q.entriesMutex.Lock()
	q.entries = append(q.entries, item)
	q.entriesMutex.Unlock()

	select {
	case q.bus <- struct{}{}:
	default:
	}
}

// dequeue returns the oldest item, waiting up to timeout for one to be
// enqueued. The boolean is false if the timeout expired with an empty queue.
func (q *eventQueue) dequeue(timeout time.Duration) (queueItem, bool) {
	var timer *time.Timer
	for {
		q.entriesMutex.Lock()
		if len(q.entries) > 0 {
			item := q.entries[0]
			q.entries[0] = queueItem{}
			q.entries = q.entries[1:]
			q.entriesMutex.Unlock()
			return item, true
		}
		q.entriesMutex.Unlock()

		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}

		select {
		case <-q.bus:
		case <-timer.C:
			return queueItem{}, false
		}
	}
}

// len returns the number of queued items.
func (q *eventQueue) len() int {
	q.entriesMutex.Lock()
	defer q.entriesMutex.Unlock()
	return len(q.entries)
}
