package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/questwatch/internal/journal"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
const debugPanelChrome = 4

// debugOverlay renders cycle stats and recent journal events.
// Returns empty string if ring is nil.
func debugOverlay(ring *journal.RingBuffer, width, height int, now time.Time) string {
	if ring == nil {
		return ""
	}

	stats := ring.Counts()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Cycle Stats"))
	lines = append(lines, "  Last cycle: "+lastCycleLine(ring, now))
	lines = append(lines, fmt.Sprintf("  Cycles:     %d started, %d complete, %d abandoned",
		stats[journal.KindCycleStart], stats[journal.KindCycleComplete], stats[journal.KindCycleAbandoned]))
	lines = append(lines, fmt.Sprintf("  Errors:     %d fetch, %d persist",
		stats[journal.KindFetchError], stats[journal.KindPersistError]))
	lines = append(lines, fmt.Sprintf("  Watch:      %d added, %d removed",
		stats[journal.KindWatchAdd], stats[journal.KindWatchRemove]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-16s", formatAge(now.Sub(e.Time)), string(e.Kind))
		if e.CycleID != "" {
			line += "  " + shortID(e.CycleID)
		}
		if e.Kind == journal.KindCycleComplete {
			line += fmt.Sprintf("  new=%d upd=%d", e.New, e.Updated)
		}
		if e.Identity != "" {
			line += "  " + truncateRunes(e.Identity, 30)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 84
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// lastCycleLine describes the newest cycle in the ring.
func lastCycleLine(ring *journal.RingBuffer, now time.Time) string {
	sum, ok := ring.LastCycle()
	if !ok {
		return "none yet"
	}
	line := shortID(sum.ID) + "  "
	switch {
	case sum.Running():
		line += "running"
		if !sum.Started.IsZero() {
			line += " for " + formatAge(now.Sub(sum.Started))
		}
	case sum.Outcome == journal.KindCycleComplete:
		line += fmt.Sprintf("complete in %s, new=%d upd=%d tracked=%d",
			formatAge(sum.Dur), sum.New, sum.Updated, sum.Tracked)
	default:
		line += string(sum.Outcome)
	}
	if sum.Err != "" {
		line += "  ERR:" + truncateRunes(sum.Err, 30)
	}
	return line
}

// formatAge formats a duration as a compact human string.
// Negative durations from clock skew clamp to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	default:
		return fmt.Sprintf("%.0fh", d.Hours())
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateRunes shortens s to max runes, appending "..." if truncated.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// debugStatusBar renders the status bar while the overlay is open.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [JOURNAL]  " + keys)
}
