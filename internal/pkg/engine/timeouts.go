package engine

import "fmt"

// TimeoutFunc is a one-shot callback fired by the tick that first observes
// its time as due.
type TimeoutFunc func(now float64)

type timeoutEntry struct {
	time  float64
	owner interface{}
	fn    TimeoutFunc
}

// ScheduleTimeout appends a one-shot entry. No ordering is imposed at
// insertion; owner ties the entry to whoever may cancel it later.
func (e *Engine) ScheduleTimeout(fireTime float64, owner interface{}, fn TimeoutFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: timeout callback is nil", ErrInvalidArgument)
	}
	e.timeouts = append(e.timeouts, timeoutEntry{time: fireTime, owner: owner, fn: fn})
	return nil
}

// CancelTimeouts drops every pending entry belonging to owner.
func (e *Engine) CancelTimeouts(owner interface{}) {
	kept := e.timeouts[:0]
	for _, t := range e.timeouts {
		if t.owner != owner {
			kept = append(kept, t)
		}
	}
	e.timeouts = kept
}

// processTimeouts fires every due entry and removes it. Multiple due
// entries fire in list order, not time order, within one poll.
func (e *Engine) processTimeouts(now float64) {
	if len(e.timeouts) == 0 {
		return
	}

	var due []timeoutEntry
	kept := e.timeouts[:0]
	for _, t := range e.timeouts {
		if t.time <= now {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	// swap before invoking, callbacks may schedule new entries
	e.timeouts = kept

	for _, t := range due {
		t.fn(now)
	}
}

// PendingTimeouts reports how many entries are scheduled.
func (e *Engine) PendingTimeouts() int {
	return len(e.timeouts)
}
