package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/questwatch/internal/journal"
	"github.com/abelbrown/questwatch/internal/store"
	"github.com/abelbrown/questwatch/internal/view"
)

// AppConfig holds the command factories the App needs.
// IMPORTANT: App does NOT hold *store.Store. It receives state via messages.
type AppConfig struct {
	// LoadState returns a Cmd producing StateLoaded.
	LoadState func() tea.Cmd
	// ToggleWatch returns a Cmd producing WatchToggled. watch is the desired state.
	ToggleWatch func(id string, watch bool) tea.Cmd
	// TriggerFetch returns a Cmd producing FetchRequested.
	TriggerFetch func() tea.Cmd
	// LastRefresh reports when the scheduler last started a cycle.
	LastRefresh func() time.Time
	// Events feeds the journal overlay. Nil disables it.
	Events *journal.RingBuffer
}

// App is the root Bubble Tea model.
type App struct {
	cfg AppConfig

	table       table.Model
	rows        []store.Snapshot
	watched     map[string]bool
	lastRefresh time.Time
	notice      string
	err         error
	width       int
	height      int
	ready       bool
	showDebug   bool
}

// NewApp creates an App with the given command functions.
func NewApp(cfg AppConfig) App {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())
	return App{
		cfg:     cfg,
		table:   t,
		watched: map[string]bool{},
	}
}

// Init loads the current store state.
func (a App) Init() tea.Cmd {
	if a.cfg.LoadState != nil {
		return a.cfg.LoadState()
	}
	return nil
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.table.SetColumns(columns(msg.Width))
		a.table.SetWidth(msg.Width)
		a.table.SetHeight(a.tableHeight())
		return a, nil

	case StateLoaded:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.apply(msg.State)
		return a, nil

	case StoreUpdated:
		a.apply(msg.State)
		a.notice = ""
		return a, nil

	case WatchToggled:
		if msg.Err != nil {
			a.err = msg.Err
		}
		// Reload either way: memory may be ahead of disk on error.
		if a.cfg.LoadState != nil {
			return a, a.cfg.LoadState()
		}
		return a, nil

	case FetchRequested:
		if msg.Err != nil {
			a.err = msg.Err
		} else {
			a.notice = "refreshing..."
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

// apply re-projects state into rows, keeping the cursor on the same item.
func (a *App) apply(st store.State) {
	selected := a.selectedID()

	a.rows = view.Project(st)
	a.watched = make(map[string]bool, len(st.Watched))
	for _, w := range st.Watched {
		a.watched[w.Identity] = true
	}
	if a.cfg.LastRefresh != nil {
		a.lastRefresh = a.cfg.LastRefresh()
	}

	rows := make([]table.Row, len(a.rows))
	cursor := 0
	for i, snap := range a.rows {
		rows[i] = rowFor(snap, a.watched[snap.Identity])
		if snap.Identity == selected {
			cursor = i
		}
	}
	a.table.SetRows(rows)
	if len(rows) > 0 {
		a.table.SetCursor(cursor)
	}
}

// selectedID returns the identity under the cursor, or "".
func (a App) selectedID() string {
	i := a.table.Cursor()
	if i < 0 || i >= len(a.rows) {
		return ""
	}
	return a.rows[i].Identity
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}

	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return a, tea.Quit

	case "w", "enter":
		id := a.selectedID()
		if id == "" || a.cfg.ToggleWatch == nil {
			return a, nil
		}
		return a, a.cfg.ToggleWatch(id, !a.watched[id])

	case "f", "f5":
		if a.cfg.TriggerFetch != nil {
			return a, a.cfg.TriggerFetch()
		}
		return a, nil

	case "D":
		if a.cfg.Events != nil {
			a.showDebug = !a.showDebug
		}
		return a, nil

	case "r":
		if a.cfg.LoadState != nil {
			return a, a.cfg.LoadState()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

// tableHeight leaves room for the status bar and an error line.
func (a App) tableHeight() int {
	h := a.height - 2
	if h < 3 {
		h = 3
	}
	return h
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug {
		return debugOverlay(a.cfg.Events, a.width, a.height-1, time.Now()) + "\n" + debugStatusBar(a.width)
	}

	body := a.table.View()
	if len(a.rows) == 0 {
		body = HelpStyle.Render("No questions yet. Press 'f' to fetch now.")
	}

	errorBar := ""
	if a.err != nil {
		errorBar = "\n" + ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)")
	}

	return body + errorBar + "\n" + a.statusBar()
}

// statusBar renders last refresh time, counts and key hints.
func (a App) statusBar() string {
	refreshed := "N/A"
	if !a.lastRefresh.IsZero() {
		refreshed = a.lastRefresh.Format(store.TimestampLayout)
	}

	text := StatusBarText.Render(fmt.Sprintf("Last Refresh: %s  %d questions  %d watched",
		refreshed, len(a.rows), len(a.watched)))
	if a.notice != "" {
		text += "  " + StatusBarText.Render(a.notice)
	}
	keys := StatusBarKey.Render("w") + StatusBarText.Render(" watch  ") +
		StatusBarKey.Render("f") + StatusBarText.Render(" fetch  ") +
		StatusBarKey.Render("r") + StatusBarText.Render(" reload  ") +
		StatusBarKey.Render("D") + StatusBarText.Render(" journal  ") +
		StatusBarKey.Render("q") + StatusBarText.Render(" quit")

	return StatusBar.Width(a.width).Render(text + "   " + keys)
}

// Rows returns the projected snapshots (for testing).
func (a App) Rows() []store.Snapshot {
	return a.rows
}

// Watched reports whether identity is marked watched (for testing).
func (a App) Watched(identity string) bool {
	return a.watched[identity]
}
