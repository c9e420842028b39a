package journal

// Goroutine safety:
// The drain goroutine is the sole reader of j.ch and the sole writer to j.w.
// Journal.mu protects only the j.ring pointer.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// chanSize is the capacity of the async write channel.
const chanSize = 1024

// entry carries the serialized line for disk and the Event for the ring.
type entry struct {
	data []byte
	ev   Event
}

// Journal serializes events as JSONL via an async background writer.
// Emit never blocks: when the channel is full the event is dropped and
// counted.
type Journal struct {
	mu        sync.Mutex
	ring      *RingBuffer
	sessionID string
	ch        chan entry
	w         io.Writer
	closer    io.Closer // non-nil when the journal owns w
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Journal writing to w and starts its writer goroutine.
// Call Close to flush and stop.
func New(w io.Writer) *Journal {
	j := &Journal{
		sessionID: uuid.NewString()[:8],
		ch:        make(chan entry, chanSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go j.drain()
	return j
}

// OpenFile appends to the JSONL file at path, creating it and its directory.
func OpenFile(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := New(f)
	j.closer = f
	return j, nil
}

func (j *Journal) drain() {
	defer close(j.done)
	for e := range j.ch {
		if _, err := j.w.Write(e.data); err != nil {
			j.dropped.Add(1)
		}

		j.mu.Lock()
		ring := j.ring
		j.mu.Unlock()

		if ring != nil {
			ring.Push(e.ev)
		}
	}
}

// Emit queues e. It sets Time (if zero) and SessionID.
// Safe to call concurrently with Close; late events are dropped.
func (j *Journal) Emit(e Event) {
	if j == nil {
		return
	}
	defer func() {
		// Close raced between the closed check and the send.
		if recover() != nil {
			j.dropped.Add(1)
		}
	}()

	if j.closed.Load() {
		j.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = j.sessionID

	data, err := json.Marshal(e)
	if err != nil {
		j.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case j.ch <- entry{data: data, ev: e}:
	default:
		j.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (j *Journal) Info(kind Kind, comp, msg string) {
	j.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err is logged as an empty string.
func (j *Journal) Error(kind Kind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	j.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// SetRingBuffer attaches a ring buffer for live inspection.
func (j *Journal) SetRingBuffer(ring *RingBuffer) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ring = ring
}

// SessionID identifies this process run in every event.
func (j *Journal) SessionID() string {
	if j == nil {
		return ""
	}
	return j.sessionID
}

// Dropped returns the number of events dropped since creation.
func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

// Close flushes pending events, stops the writer and closes an owned file.
// Safe to call more than once.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		<-j.done

		if j.closer != nil {
			err = j.closer.Close()
		}
	})
	return err
}
