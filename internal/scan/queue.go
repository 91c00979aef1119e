package scan

import "sync"

// eventType distinguishes the inputs merged by the arbitrator.
type eventType int

const (
	// eventStartRequested is a UI-driven start request.
	eventStartRequested eventType = iota + 1
	// eventStopRequested is a UI-driven stop request.
	eventStopRequested
	// eventTrigger is a physical-button press.
	eventTrigger
	// eventHardwareResult is a decoded read from an active session.
	eventHardwareResult
	// eventHardwareError is a mid-scan hardware failure.
	eventHardwareError
	// eventConfigure hands scanning focus to a new workflow owner.
	eventConfigure
)

// event is the unified queue entry. Which fields are set depends on typ.
type event struct {
	typ     eventType
	kind    Kind
	cadence Cadence
	sctx    Context
	trigger TriggerAction
	payload string
	token   string
	err     error
	owner   *OwnerConfig

	// reply, when non-nil, receives the handling outcome so UI callers
	// can block until their request is confirmed.
	reply chan error
}

// eventQueue is a thread-safe FIFO feeding the single-writer Run loop.
//
// It is unbounded so hardware pumps never block mid-read, and signals
// availability through a buffered channel so the loop can wait with
// context awareness. Multiple enqueues coalesce into one signal.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event. Safe from any goroutine.
// Returns false once the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front event without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}
	e := q.events[0]

	// Zero the slot so the backing array does not retain reply channels
	// and owner configs after dequeue.
	q.events[0] = event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns the availability signal for select-based waiting.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether the queue has been closed. An empty queue is not
// evidence of closure: coalesced signals can wake a consumer with nothing
// left to dequeue.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further enqueues and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
