package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/questwatch/internal/store"
)

// sender is the subset of *tea.Program used by ProgramObserver.
type sender interface {
	Send(msg tea.Msg)
}

// ProgramObserver forwards store updates into a running Bubble Tea program.
type ProgramObserver struct {
	program sender
}

// NewProgramObserver wraps program. Send blocks until the program has
// started and is a no-op after it has exited.
func NewProgramObserver(program *tea.Program) *ProgramObserver {
	return &ProgramObserver{program: program}
}

// OnUpdate implements store.Observer.
func (o *ProgramObserver) OnUpdate(st store.State) error {
	o.program.Send(StoreUpdated{State: st})
	return nil
}
