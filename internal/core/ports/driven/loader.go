package driven

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// Loader fetches documents from a data source.
// Each source type (web, filesystem, github) implements this interface.
type Loader interface {
	// Type returns the source type this loader handles.
	Type() domain.SourceType

	// Validate checks the target is loadable before starting a run.
	// For web this parses the URL, for filesystem it checks the path
	// exists, for github it checks the owner/repo form.
	Validate(target string) error

	// Load fetches documents from the target and streams them.
	// The document channel is closed when the run finishes. Per-document
	// failures (an unreadable file, a skipped binary) are reported on the
	// error channel without stopping the run; the run itself stops on
	// context cancellation.
	Load(ctx context.Context, target string) (<-chan domain.Document, <-chan error)

	// Close releases resources.
	Close() error
}
