package main

import (
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/questwatch/internal/journal"
)

const sampleLog = `{"t":"2024-01-02T03:04:05Z","level":"info","kind":"cycle.start","comp":"coord","cycle":"aaaa1111bbbb"}
not json
{"t":"2024-01-02T03:04:06Z","level":"error","kind":"fetch.error","comp":"coord","cycle":"aaaa1111bbbb","err":"timeout","dur_ms":1500}

{"t":"2024-01-02T03:05:05Z","level":"info","kind":"cycle.start","comp":"coord","cycle":"cccc2222dddd"}
{"t":"2024-01-02T03:05:06Z","level":"info","kind":"cycle.complete","comp":"coord","cycle":"cccc2222dddd","fetched":3,"new":1,"updated":2,"tracked":9}
{"t":"2024-01-02T03:05:09Z","level":"info","kind":"watch.add","comp":"ui","identity":"q/7"}
`

func TestReadTailLinesKeepsLastN(t *testing.T) {
	lines := readTailLines(strings.NewReader(sampleLog), 2, eventFilter{}.match)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].ev.Kind != journal.KindCycleComplete || lines[1].ev.Kind != journal.KindWatchAdd {
		t.Errorf("unexpected tail: %s, %s", lines[0].ev.Kind, lines[1].ev.Kind)
	}
	if !strings.Contains(string(lines[1].raw), `"identity":"q/7"`) {
		t.Errorf("raw line not preserved: %s", lines[1].raw)
	}
}

func TestReadTailLinesSkipsGarbage(t *testing.T) {
	lines := readTailLines(strings.NewReader(sampleLog), 100, eventFilter{}.match)
	if len(lines) != 5 {
		t.Errorf("expected 5 parsed events, got %d", len(lines))
	}
	if got := readTailLines(strings.NewReader(sampleLog), 0, eventFilter{}.match); got != nil {
		t.Errorf("expected nil for n=0, got %d lines", len(got))
	}
}

func TestEventFilter(t *testing.T) {
	cases := []struct {
		name   string
		filter eventFilter
		want   int
	}{
		{"kind prefix", eventFilter{kind: "cycle"}, 3},
		{"min level", eventFilter{level: journal.LevelError}, 1},
		{"component", eventFilter{comp: "ui"}, 1},
		{"cycle prefix", eventFilter{cycle: "cccc"}, 2},
		{"combined", eventFilter{kind: "cycle.start", cycle: "aaaa"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lines := readTailLines(strings.NewReader(sampleLog), 100, tc.filter.match)
			if len(lines) != tc.want {
				t.Errorf("expected %d events, got %d", tc.want, len(lines))
			}
		})
	}
}

func TestFormatEvent(t *testing.T) {
	ev := journal.Event{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   journal.LevelInfo,
		Kind:    journal.KindCycleComplete,
		Comp:    "coord",
		CycleID: "cccc2222dddd",
		DurMs:   12.5,
		Fetched: 3,
		New:     1,
		Updated: 2,
		Tracked: 9,
	}
	line := formatEvent(ev)
	for _, want := range []string{"INFO", "cycle.complete", "cycle=cccc2...", "(12.5ms)", "fetched=3 new=1 updated=2 tracked=9"} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted line missing %q: %s", want, line)
		}
	}

	errLine := formatEvent(journal.Event{Kind: journal.KindFetchError, Err: "boom"})
	if !strings.Contains(errLine, "?") || !strings.Contains(errLine, "err=boom") {
		t.Errorf("unexpected error line: %s", errLine)
	}
}
