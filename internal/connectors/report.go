package connectors

import "context"

// Report delivers a per-document failure to the error channel. The send
// selects on the context so a loader never wedges after its consumer has
// stopped draining.
func Report(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}
