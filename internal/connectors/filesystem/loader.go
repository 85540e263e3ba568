// Package filesystem loads documents from a local directory tree or a
// single file. Hidden entries are left out of the corpus; binary and
// oversized files are skipped with a report on the error channel.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarry-labs/quarry/internal/connectors"
	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// Ensure Loader implements the port.
var _ driven.Loader = (*Loader)(nil)

// Loader walks a directory and streams its text files as documents.
type Loader struct{}

// New creates a filesystem loader.
func New() *Loader {
	return &Loader{}
}

// Type returns the source type this loader handles.
func (l *Loader) Type() domain.SourceType {
	return domain.SourceTypeFilesystem
}

// Validate checks the target path exists.
func (l *Loader) Validate(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("%w: path is empty", domain.ErrInvalidInput)
	}

	path, err := resolvePath(target)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: path %s does not exist", domain.ErrInvalidInput, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// Load walks the target and streams every readable text file. The target
// may also be a single file.
func (l *Loader) Load(ctx context.Context, target string) (<-chan domain.Document, <-chan error) {
	docs := make(chan domain.Document)
	errs := make(chan error, 16)

	go func() {
		defer close(docs)
		defer close(errs)
		l.walk(ctx, target, docs, errs)
	}()

	return docs, errs
}

// Close releases resources. The filesystem loader holds none.
func (l *Loader) Close() error {
	return nil
}

func (l *Loader) walk(ctx context.Context, target string, docs chan<- domain.Document, errs chan<- error) {
	root, err := resolvePath(target)
	if err != nil {
		connectors.Report(ctx, errs, err)
		return
	}

	info, err := os.Stat(root)
	if err != nil {
		connectors.Report(ctx, errs, fmt.Errorf("stat %s: %w", root, err))
		return
	}

	if !info.IsDir() {
		l.emit(ctx, root, docs, errs)
		return
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			connectors.Report(ctx, errs, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			// The root itself may be hidden when the user targets it
			// explicitly; only prune hidden subdirectories.
			if path != root && isHidden(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		if isHidden(d.Name()) {
			return nil
		}
		l.emit(ctx, path, docs, errs)
		return ctx.Err()
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		connectors.Report(ctx, errs, walkErr)
	}
}

// emit reads one file and sends it as a document. Binary, oversized, and
// unreadable files are reported and skipped.
func (l *Loader) emit(ctx context.Context, path string, docs chan<- domain.Document, errs chan<- error) {
	if connectors.IsBinaryPath(path) {
		connectors.Report(ctx, errs, fmt.Errorf("skip %s: binary file", path))
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		connectors.Report(ctx, errs, fmt.Errorf("stat %s: %w", path, err))
		return
	}
	if info.Size() > connectors.MaxFileBytes {
		connectors.Report(ctx, errs, fmt.Errorf("skip %s: %d bytes exceeds the %d byte limit", path, info.Size(), connectors.MaxFileBytes))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		connectors.Report(ctx, errs, fmt.Errorf("read %s: %w", path, err))
		return
	}

	doc := domain.Document{
		ID:         uuid.NewString(),
		SourceType: domain.SourceTypeFilesystem,
		URI:        path,
		Title:      filepath.Base(path),
		Content:    string(data),
		FetchedAt:  time.Now().UTC(),
	}

	select {
	case docs <- doc:
	case <-ctx.Done():
	}
}

// resolvePath expands a leading ~ and makes the path absolute so URIs
// are stable regardless of the working directory.
func resolvePath(target string) (string, error) {
	path := target
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	return abs, nil
}

// isHidden reports whether a file or directory name is dot-prefixed.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
