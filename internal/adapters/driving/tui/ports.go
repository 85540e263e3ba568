// Package tui provides the interactive chat terminal interface for quarry.
// It implements a driving adapter following hexagonal architecture
// principles: one chat view with an input field, a scrollable transcript,
// and live stage progress while the answer workflow runs.
package tui

import (
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer runs the staged answer workflow behind the chat view.
	Answer driving.AnswerService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
