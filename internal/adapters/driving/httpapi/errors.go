// Package httpapi exposes the answer workflow over HTTP. POST /chat streams
// stage progress and the final answer as server-sent events; the remaining
// endpoints report service identity, health, non-sensitive configuration and
// Prometheus metrics.
package httpapi

import "errors"

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("httpapi: answer service is required")

// ErrMissingSettingsService is returned when the settings service is not provided.
var ErrMissingSettingsService = errors.New("httpapi: settings service is required")
