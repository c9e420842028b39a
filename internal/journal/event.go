// Package journal records update-cycle events for later inspection.
//
// Events are typed structs serialized as JSONL lines by an asynchronous
// writer. An optional RingBuffer keeps the most recent events in memory for
// the TUI debug overlay. A nil *Journal accepts and discards every event.
package journal

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type Kind string

const (
	// Scheduler events
	KindCycleStart     Kind = "cycle.start"
	KindCycleComplete  Kind = "cycle.complete"
	KindCycleAbandoned Kind = "cycle.abandoned"
	KindFetchError     Kind = "fetch.error"
	KindPersistError   Kind = "persist.error"

	// Watch set events
	KindWatchAdd    Kind = "watch.add"
	KindWatchRemove Kind = "watch.remove"

	// System events
	KindStartup  Kind = "sys.startup"
	KindShutdown Kind = "sys.shutdown"
)

// Event is one journal record. Every field except Kind and Time is optional.
type Event struct {
	Time      time.Time     `json:"t"`
	Level     Level         `json:"level,omitempty"`
	Kind      Kind          `json:"kind"`
	Comp      string        `json:"comp,omitempty"` // "coord", "ui", "main"
	SessionID string        `json:"session_id,omitempty"`
	CycleID   string        `json:"cycle,omitempty"`
	Dur       time.Duration `json:"-"`
	DurMs     float64       `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Fetched   int           `json:"fetched,omitempty"`
	New       int           `json:"new,omitempty"`
	Updated   int           `json:"updated,omitempty"`
	Tracked   int           `json:"tracked,omitempty"`
	Identity  string        `json:"identity,omitempty"`
	Err       string        `json:"err,omitempty"`
	Msg       string        `json:"msg,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// LevelRank orders levels for filtering (higher = more severe).
// Unknown levels rank as debug.
func LevelRank(level Level) int {
	switch level {
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 0
	}
}
