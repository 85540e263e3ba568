// Package web loads a single web page as a document. HTML responses are
// converted to plain text before indexing; text responses are kept as-is.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

const (
	// defaultTimeout bounds the whole fetch, connection through body.
	defaultTimeout = 30 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 10 << 20

	userAgent = "quarry/1.0 (+https://github.com/quarry-labs/quarry)"
)

// Ensure Loader implements the port.
var _ driven.Loader = (*Loader)(nil)

// Loader fetches one web page per target URL.
type Loader struct {
	client *http.Client
}

// New creates a web loader with the default HTTP client.
func New() *Loader {
	return &Loader{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Type returns the source type this loader handles.
func (l *Loader) Type() domain.SourceType {
	return domain.SourceTypeWeb
}

// Validate checks the target parses as an absolute http(s) URL.
func (l *Loader) Validate(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: URL scheme must be http or https, got %q", domain.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: URL %q has no host", domain.ErrInvalidInput, target)
	}
	return nil
}

// Load fetches the target URL and streams a single document. Fetch and
// conversion failures are reported on the error channel.
func (l *Loader) Load(ctx context.Context, target string) (<-chan domain.Document, <-chan error) {
	docs := make(chan domain.Document)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		doc, err := l.fetch(ctx, target)
		if err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}

		select {
		case docs <- *doc:
		case <-ctx.Done():
		}
	}()

	return docs, errs
}

// Close releases idle connections held by the HTTP client.
func (l *Loader) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

// fetch retrieves the page and converts it to a document.
func (l *Loader) fetch(ctx context.Context, target string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.1")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	raw := string(body)
	contentType := resp.Header.Get("Content-Type")

	var title, content string
	switch {
	case isHTMLContent(contentType, raw):
		title = extractTitle(raw, target)
		content = stripHTML(raw)
	case isTextContent(contentType):
		title = titleFromTarget(target)
		content = strings.TrimSpace(raw)
	default:
		return nil, fmt.Errorf("fetch %s: unsupported content type %q", target, contentType)
	}

	return &domain.Document{
		ID:         uuid.NewString(),
		SourceType: domain.SourceTypeWeb,
		URI:        target,
		Title:      title,
		Content:    content,
		FetchedAt:  time.Now().UTC(),
	}, nil
}
