// Package github loads every text file from a GitHub repository's
// default branch. Authentication uses a static personal access token;
// without one, only public repositories are reachable.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarry-labs/quarry/internal/connectors"
	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// Ensure Loader implements the port.
var _ driven.Loader = (*Loader)(nil)

// Loader streams the files of one repository as documents.
type Loader struct {
	client *Client
}

// New creates a GitHub loader. The token may be empty for public
// repositories.
func New(ctx context.Context, token string) *Loader {
	return &Loader{client: NewClient(ctx, token)}
}

// Type returns the source type this loader handles.
func (l *Loader) Type() domain.SourceType {
	return domain.SourceTypeGitHub
}

// Validate checks the target names a repository.
func (l *Loader) Validate(target string) error {
	_, _, err := ParseTarget(target)
	return err
}

// ParseTarget extracts owner and repository from a target string.
// Accepted forms: "owner/repo", "github.com/owner/repo", and the full
// HTTPS URL with an optional ".git" suffix.
func ParseTarget(target string) (owner, repo string, err error) {
	s := strings.TrimSpace(target)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: target must be owner/repo, got %q", domain.ErrInvalidInput, target)
	}
	return parts[0], parts[1], nil
}

// Load fetches the repository tree and streams every text file on the
// default branch. Binary and oversized files, and blobs that fail to
// fetch, are reported on the error channel.
func (l *Loader) Load(ctx context.Context, target string) (<-chan domain.Document, <-chan error) {
	docs := make(chan domain.Document)
	errs := make(chan error, 16)

	go func() {
		defer close(docs)
		defer close(errs)
		l.loadRepo(ctx, target, docs, errs)
	}()

	return docs, errs
}

// Close releases resources. The API client holds none beyond idle
// connections owned by its http.Client.
func (l *Loader) Close() error {
	return nil
}

func (l *Loader) loadRepo(ctx context.Context, target string, docs chan<- domain.Document, errs chan<- error) {
	owner, repo, err := ParseTarget(target)
	if err != nil {
		connectors.Report(ctx, errs, err)
		return
	}

	repository, err := l.client.GetRepository(ctx, owner, repo)
	if err != nil {
		connectors.Report(ctx, errs, fmt.Errorf("resolve %s/%s: %w", owner, repo, err))
		return
	}
	branch := repository.GetDefaultBranch()

	tree, err := l.client.GetTree(ctx, owner, repo, branch)
	if err != nil {
		connectors.Report(ctx, errs, fmt.Errorf("list tree for %s/%s: %w", owner, repo, err))
		return
	}

	for _, entry := range tree.Entries {
		if ctx.Err() != nil {
			return
		}
		if entry.GetType() != "blob" {
			continue
		}

		path := entry.GetPath()
		if connectors.IsBinaryPath(path) {
			connectors.Report(ctx, errs, fmt.Errorf("skip %s: binary file", path))
			continue
		}
		if entry.GetSize() > connectors.MaxFileBytes {
			connectors.Report(ctx, errs, fmt.Errorf("skip %s: %d bytes exceeds the %d byte limit", path, entry.GetSize(), connectors.MaxFileBytes))
			continue
		}

		content, err := l.fetchBlob(ctx, owner, repo, entry.GetSHA())
		if err != nil {
			connectors.Report(ctx, errs, fmt.Errorf("fetch %s: %w", path, err))
			continue
		}

		doc := domain.Document{
			ID:         uuid.NewString(),
			SourceType: domain.SourceTypeGitHub,
			URI:        buildFileURI(owner, repo, branch, path),
			Title:      path,
			Content:    string(content),
			FetchedAt:  time.Now().UTC(),
		}

		select {
		case docs <- doc:
		case <-ctx.Done():
			return
		}
	}
}

// fetchBlob fetches a blob and decodes its content.
func (l *Loader) fetchBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	blob, err := l.client.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}

	if blob.GetEncoding() == "base64" {
		// The API wraps base64 content in newlines.
		raw := strings.ReplaceAll(blob.GetContent(), "\n", "")
		return base64.StdEncoding.DecodeString(raw)
	}
	return []byte(blob.GetContent()), nil
}

// buildFileURI creates a stable URI for a repository file.
func buildFileURI(owner, repo, branch, path string) string {
	return fmt.Sprintf("github://%s/%s/blob/%s/%s", owner, repo, branch, path)
}
