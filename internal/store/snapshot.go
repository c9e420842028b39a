package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the on-disk format of Snapshot.SavedAt (local time).
const TimestampLayout = "2006-01-02 15:04:05"

// RawItem is one freshly fetched observation of an item, already normalized
// by the fetch collaborator. Identity is the merge key.
type RawItem struct {
	Identity          string   `json:"identity"`
	DisplayText       string   `json:"displayText"`
	Topics            []string `json:"topics"`
	DateRaw           string   `json:"dateRaw"`
	PotentialScoreRaw string   `json:"potentialScoreRaw"`
	ViewAmountRaw     string   `json:"viewAmountRaw"`
	AnswerAmountRaw   string   `json:"answerAmountRaw"`
	PotentialScore    float64  `json:"potentialScore"`
	ViewIncrement     int64    `json:"viewIncrement"`
	ViewTotal         int64    `json:"viewTotal"`
	AnswerIncrement   int64    `json:"answerIncrement"`
	AnswerTotal       int64    `json:"answerTotal"`
	Date              string   `json:"date,omitempty"`
}

// Snapshot is an immutable record of one item at one ingest time.
type Snapshot struct {
	RawItem
	SavedAt Timestamp `json:"savedAt"`
}

// clone returns a copy that shares no mutable state with s.
func (s Snapshot) clone() Snapshot {
	if s.Topics != nil {
		s.Topics = append([]string(nil), s.Topics...)
	}
	return s
}

// Timestamp is a wall-clock time serialized without zone information,
// interpreted in the local zone on load.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds, matching the persisted precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second)}
}

// String formats the timestamp with TimestampLayout.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimestampLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON shadows the promoted time.Time encoding.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON shadows the promoted time.Time decoding.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	return t.UnmarshalText([]byte(s))
}

// Delta is the change of one known item against its prior latest snapshot.
type Delta struct {
	Identity        string `json:"identity"`
	ViewIncrement   int64  `json:"viewIncrement"`
	AnswerIncrement int64  `json:"answerIncrement"`
}

// ChangeRecord summarizes one merge cycle. It is never persisted.
// Both slices follow the order of the merged input.
type ChangeRecord struct {
	Updated []Delta
	New     []RawItem
}

// Empty reports whether the cycle produced neither new nor updated items.
func (c ChangeRecord) Empty() bool {
	return len(c.Updated) == 0 && len(c.New) == 0
}

// String is a compact summary for logs.
func (c ChangeRecord) String() string {
	return fmt.Sprintf("new=%d updated=%d", len(c.New), len(c.Updated))
}
