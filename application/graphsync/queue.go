package graphsync

import (
	"context"
	"sync"

	"relmap/domain/events"
)

// Queue is an unbounded FIFO of domain events. Push never blocks.
type Queue struct {
	mu      sync.Mutex
	items   []events.DomainEvent
	pending int
	signal  chan struct{}
	drained chan struct{}
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	drained := make(chan struct{})
	close(drained)
	return &Queue{
		signal:  make(chan struct{}, 1),
		drained: drained,
	}
}

// Push appends events in order
func (q *Queue) Push(evts ...events.DomainEvent) {
	if len(evts) == 0 {
		return
	}

	q.mu.Lock()
	if q.pending == 0 {
		q.drained = make(chan struct{})
	}
	q.items = append(q.items, evts...)
	q.pending += len(evts)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes the oldest event. The event stays pending until Done is called.
func (q *Queue) Pop() (events.DomainEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	event := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return event, true
}

// Done marks one popped event as processed
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == 0 {
		return
	}
	q.pending--
	if q.pending == 0 {
		close(q.drained)
	}
}

// Len returns the number of events not yet processed
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Signal fires after a Push
func (q *Queue) Signal() <-chan struct{} {
	return q.signal
}

// Wait blocks until every pushed event has been processed
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
