package httpapi

import (
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces the HTTP API serves.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer runs the staged answer workflow behind POST /chat.
	Answer driving.AnswerService

	// Settings backs the banner, health and config endpoints.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Settings == nil {
		return ErrMissingSettingsService
	}
	return nil
}
