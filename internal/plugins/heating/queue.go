package heating

import (
	"sync"

	"heatingcontrol/internal/heating"
)

// batch is the work drained from the queue in one go
type batch struct {
	// full requests a pass over every room and subsumes everything else.
	full bool
	// vacationCheck requests a full pass only if the mode turns out to be
	// vacation when the pass reads its snapshot.
	vacationCheck bool
	triggers      []heating.Trigger
}

func (b batch) empty() bool {
	return !b.full && !b.vacationCheck && len(b.triggers) == 0
}

// triggerQueue collects triggers from event handlers for the worker.
// Duplicate triggers collapse and a pending full pass absorbs narrower ones.
// Push never blocks, so it is safe to call from the HA receive goroutine.
type triggerQueue struct {
	mu      sync.Mutex
	pending batch
	seen    map[heating.Trigger]struct{}
	ready   chan struct{}
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		seen:  make(map[heating.Trigger]struct{}),
		ready: make(chan struct{}, 1),
	}
}

// Push adds trigger. It reports whether the trigger merged into pending work.
func (q *triggerQueue) Push(trigger heating.Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	coalesced := false
	switch {
	case q.pending.full:
		coalesced = true
	case trigger.Kind == heating.TriggerAll:
		coalesced = len(q.pending.triggers) > 0 || q.pending.vacationCheck
		q.pending = batch{full: true}
		q.seen = make(map[heating.Trigger]struct{})
	default:
		if _, dup := q.seen[trigger]; dup {
			coalesced = true
		} else {
			q.seen[trigger] = struct{}{}
			q.pending.triggers = append(q.pending.triggers, trigger)
		}
	}

	q.signal()
	return coalesced
}

// PushVacationCheck asks for a full pass if the house is in vacation mode
func (q *triggerQueue) PushVacationCheck() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	coalesced := q.pending.full || q.pending.vacationCheck
	if !q.pending.full {
		q.pending.vacationCheck = true
	}

	q.signal()
	return coalesced
}

// Drain takes all pending work
func (q *triggerQueue) Drain() batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.pending
	q.pending = batch{}
	q.seen = make(map[heating.Trigger]struct{})
	return b
}

// Ready is signalled whenever work is pushed
func (q *triggerQueue) Ready() <-chan struct{} {
	return q.ready
}

func (q *triggerQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
