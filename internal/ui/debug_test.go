package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/questwatch/internal/journal"
)

func TestDebugOverlayNilRing(t *testing.T) {
	if result := debugOverlay(nil, 80, 24, time.Now()); result != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", result)
	}
}

func TestDebugOverlayRendersStats(t *testing.T) {
	now := time.Now()
	ring := journal.NewRingBuffer(64)
	ring.Push(journal.Event{Kind: journal.KindCycleStart, Time: now})
	ring.Push(journal.Event{Kind: journal.KindCycleComplete, Time: now})
	ring.Push(journal.Event{Kind: journal.KindCycleStart, Time: now})
	ring.Push(journal.Event{Kind: journal.KindFetchError, Time: now})
	ring.Push(journal.Event{Kind: journal.KindWatchAdd, Time: now})

	result := debugOverlay(ring, 120, 40, now)

	if !strings.Contains(result, "Cycle Stats") {
		t.Error("overlay should contain 'Cycle Stats' header")
	}
	if !strings.Contains(result, "2 started, 1 complete, 0 abandoned") {
		t.Errorf("overlay should show cycle stats, got:\n%s", result)
	}
	if !strings.Contains(result, "1 fetch, 0 persist") {
		t.Errorf("overlay should show error stats, got:\n%s", result)
	}
	if !strings.Contains(result, "5 / 64 events") {
		t.Errorf("overlay should show buffer stats, got:\n%s", result)
	}
}

func TestDebugOverlayRecentEvents(t *testing.T) {
	now := time.Now()
	ring := journal.NewRingBuffer(64)
	ring.Push(journal.Event{Kind: journal.KindCycleComplete, Time: now, CycleID: "abcdef1234567890", New: 3, Updated: 2})
	ring.Push(journal.Event{Kind: journal.KindFetchError, Time: now, Err: "timeout"})
	ring.Push(journal.Event{Kind: journal.KindWatchAdd, Time: now, Identity: "q/42"})

	result := debugOverlay(ring, 120, 40, now)

	for _, want := range []string{"Recent Events", "abcdef12", "new=3 upd=2", "ERR:timeout", "q/42"} {
		if !strings.Contains(result, want) {
			t.Errorf("overlay missing %q, got:\n%s", want, result)
		}
	}
}

func TestDebugOverlayTruncation(t *testing.T) {
	ring := journal.NewRingBuffer(64)
	for i := 0; i < 30; i++ {
		ring.Push(journal.Event{Kind: journal.KindCycleStart, Time: time.Now()})
	}

	result := debugOverlay(ring, 80, 10, time.Now())
	if result == "" {
		t.Fatal("overlay should still render with small height")
	}
	// 6 content lines plus border and padding.
	if lines := strings.Count(result, "\n") + 1; lines > 10 {
		t.Errorf("expected at most 10 rendered lines, got %d", lines)
	}
}

func TestFormatAge(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0ms"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{3 * time.Minute, "3m"},
		{2 * time.Hour, "2h"},
	}
	for _, tc := range cases {
		if got := formatAge(tc.d); got != tc.want {
			t.Errorf("formatAge(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestDebugToggle(t *testing.T) {
	ring := journal.NewRingBuffer(8)
	ring.Push(journal.Event{Kind: journal.KindCycleStart, Time: time.Now()})

	cfg := (&mockCmd{}).config()
	cfg.Events = ring
	app := NewApp(cfg)
	app, _ = update(t, app, tea.WindowSizeMsg{Width: 120, Height: 30})

	app, _ = update(t, app, key("D"))
	if !strings.Contains(app.View(), "Cycle Stats") {
		t.Error("expected overlay after D")
	}
	app, _ = update(t, app, key("D"))
	if strings.Contains(app.View(), "Cycle Stats") {
		t.Error("expected overlay closed after second D")
	}
}

func TestDebugToggleWithoutJournal(t *testing.T) {
	app := NewApp(AppConfig{})
	app, _ = update(t, app, tea.WindowSizeMsg{Width: 120, Height: 30})
	app, _ = update(t, app, key("D"))
	if strings.Contains(app.View(), "[JOURNAL]") {
		t.Error("overlay should not open without a journal")
	}
}

func TestDebugOverlayLastCycle(t *testing.T) {
	now := time.Now()
	ring := journal.NewRingBuffer(16)

	if result := debugOverlay(ring, 120, 40, now); !strings.Contains(result, "Last cycle: none yet") {
		t.Errorf("expected empty last cycle, got:\n%s", result)
	}

	ring.Push(journal.Event{Kind: journal.KindCycleStart, CycleID: "0123456789ab", Time: now.Add(-2 * time.Second)})
	if result := debugOverlay(ring, 120, 40, now); !strings.Contains(result, "01234567  running for 2.0s") {
		t.Errorf("expected running cycle, got:\n%s", result)
	}

	ring.Push(journal.Event{Kind: journal.KindCycleComplete, CycleID: "0123456789ab", Dur: 1500 * time.Millisecond, New: 1, Updated: 4, Tracked: 7})
	if result := debugOverlay(ring, 120, 40, now); !strings.Contains(result, "complete in 1.5s, new=1 upd=4 tracked=7") {
		t.Errorf("expected completed cycle, got:\n%s", result)
	}
}
