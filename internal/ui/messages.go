// Package ui provides the Bubble Tea TUI for questwatch.
package ui

import "github.com/abelbrown/questwatch/internal/store"

// StateLoaded is sent when the store state has been read on request.
type StateLoaded struct {
	State store.State
	Err   error
}

// StoreUpdated is sent by ProgramObserver after every successful merge.
type StoreUpdated struct {
	State store.State
}

// WatchToggled is sent when a watch or unwatch request finished.
type WatchToggled struct {
	ID      string
	Watched bool
	Err     error
}

// FetchRequested is sent when an out-of-band refresh was requested.
type FetchRequested struct {
	Err error
}
