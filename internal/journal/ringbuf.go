package journal

import (
	"sync"
	"time"
)

// DefaultRingSize is the default ring buffer capacity.
const DefaultRingSize = 256

// RingBuffer keeps the most recent events in memory for live inspection.
// It also tracks per-kind counts and the most recent cycle id so the
// overlay can summarize without rescanning. Goroutine-safe.
type RingBuffer struct {
	mu        sync.Mutex
	events    []Event // oldest first
	size      int
	counts    map[Kind]int
	lastCycle string
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{
		events: make([]Event, 0, size),
		size:   size,
		counts: make(map[Kind]int),
	}
}

// Push adds an event, evicting the oldest if full.
func (r *RingBuffer) Push(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == r.size {
		r.counts[r.events[0].Kind]--
		copy(r.events, r.events[1:])
		r.events[len(r.events)-1] = e
	} else {
		r.events = append(r.events, e)
	}
	r.counts[e.Kind]++
	if e.CycleID != "" {
		r.lastCycle = e.CycleID
	}
}

// Last returns the n most recent events, oldest first.
// If n > Len, returns all events. If n <= 0, returns nil.
func (r *RingBuffer) Last(n int) []Event {
	if n <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return nil
	}
	if n > len(r.events) {
		n = len(r.events)
	}
	out := make([]Event, n)
	copy(out, r.events[len(r.events)-n:])
	return out
}

// Len returns the number of events currently in the buffer.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return r.size
}

// Counts returns event counts by Kind over the buffered events.
func (r *RingBuffer) Counts() map[Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[Kind]int, len(r.counts))
	for k, n := range r.counts {
		if n > 0 {
			out[k] = n
		}
	}
	return out
}

// CycleSummary folds the buffered events of one scheduler cycle.
// Outcome is empty while the cycle is still running.
type CycleSummary struct {
	ID      string
	Started time.Time
	Outcome Kind
	Dur     time.Duration
	Fetched int
	New     int
	Updated int
	Tracked int
	Err     string
}

// Running reports whether no terminal event has been seen for the cycle.
func (c CycleSummary) Running() bool {
	return c.Outcome == ""
}

// Cycle summarizes the buffered events carrying id.
// Returns false if none are buffered.
func (r *RingBuffer) Cycle(id string) (CycleSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycleLocked(id)
}

// LastCycle summarizes the most recent cycle seen by Push.
func (r *RingBuffer) LastCycle() (CycleSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastCycle == "" {
		return CycleSummary{}, false
	}
	return r.cycleLocked(r.lastCycle)
}

func (r *RingBuffer) cycleLocked(id string) (CycleSummary, bool) {
	sum := CycleSummary{ID: id}
	found := false
	for _, e := range r.events {
		if e.CycleID != id {
			continue
		}
		found = true
		switch e.Kind {
		case KindCycleStart:
			sum.Started = e.Time
		case KindCycleComplete:
			sum.Outcome = e.Kind
			sum.Dur = e.Dur
			sum.Fetched, sum.New, sum.Updated, sum.Tracked = e.Fetched, e.New, e.Updated, e.Tracked
		case KindCycleAbandoned, KindFetchError:
			sum.Outcome = e.Kind
			sum.Dur = e.Dur
			if e.Err != "" {
				sum.Err = e.Err
			}
		case KindPersistError:
			// Merge still completes; the cycle.complete event follows.
			sum.Err = e.Err
		}
	}
	return sum, found
}
