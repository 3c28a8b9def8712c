package event

import "sync"

// Queue is the append-only raw event buffer. Producers may submit from any
// goroutine; the processing loop drains it once per tick. Events a
// before-render tick leaves unconsumed are requeued ahead of new arrivals.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

func NewQueue(capacity int) *Queue {
	return &Queue{events: make([]Event, 0, capacity)}
}

func (q *Queue) Submit(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

// SubmitRaw decodes a single wire-format event and submits it.
func (q *Queue) SubmitRaw(data []byte) error {
	ev, _, err := Decode(data)
	if err != nil {
		return err
	}
	q.Submit(ev)
	return nil
}

// Drain takes all currently queued events. The returned slice is owned by
// the caller.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	events := q.events
	q.events = make([]Event, 0, cap(events))
	q.mu.Unlock()
	return events
}

// Requeue puts retained events back in front of anything submitted since
// the last Drain, preserving their original order.
func (q *Queue) Requeue(events []Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.events = append(events, q.events...)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
