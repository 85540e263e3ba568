// Package rerank provides a cross-encoder reranker client for services
// exposing a /v1/rerank endpoint (TEI, Infinity and compatible servers).
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultModel   = domain.DefaultRerankerModel
	DefaultTimeout = 30 * time.Second

	providerName = "reranker"
)

// Config holds configuration for the reranker client.
type Config struct {
	// BaseURL is the reranker service endpoint (required).
	BaseURL string

	// Model is the cross-encoder model to use
	// (default: cross-encoder/ms-marco-MiniLM-L-6-v2).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Reranker scores query/passage pairs with a hosted cross-encoder.
type Reranker struct {
	client  *http.Client
	baseURL string
	model   string
}

// rerankRequest is the /v1/rerank request format.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// rerankResponse is the /v1/rerank response format.
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewReranker creates a new cross-encoder reranker client.
func NewReranker(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, &domain.ConfigurationError{Component: providerName, Reason: "base URL is required"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}, nil
}

// Rerank scores the passages against the query and returns the top k, best
// first. Indices outside the passage slice are dropped; passages the service
// does not score are omitted from the result.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []domain.Passage, k int) ([]domain.Passage, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	if k <= 0 || k > len(passages) {
		k = len(passages)
	}

	documents := make([]string, len(passages))
	for i, p := range passages {
		documents[i] = p.Content
	}

	reqBody := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      k,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+"/v1/rerank",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, statusError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	// Order by score in case the service returns results unsorted.
	results := rerankResp.Results
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	reranked := make([]domain.Passage, 0, k)
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(passages) {
			continue
		}
		p := passages[res.Index]
		p.Score = res.RelevanceScore
		reranked = append(reranked, p)
		if len(reranked) == k {
			break
		}
	}

	return reranked, nil
}

// ModelName returns the cross-encoder model being used.
func (r *Reranker) ModelName() string {
	return r.model
}

// Ping validates the service is reachable by checking the /health endpoint.
func (r *Reranker) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("reranker: failed to create ping request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return statusError(resp.StatusCode, fmt.Errorf("failed to read body: %w", err))
		}
		return statusError(resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}
	return nil
}

// Close releases resources.
func (r *Reranker) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// transportError wraps a transport-level failure, flagging timeouts.
func transportError(err error) error {
	return &domain.ProviderError{
		Provider: providerName,
		Timeout:  isTimeout(err),
		Err:      err,
	}
}

// statusError wraps a non-OK API response, mapping rate limits.
func statusError(status int, err error) error {
	if status == http.StatusTooManyRequests {
		err = fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}
	return &domain.ProviderError{
		Provider: providerName,
		Status:   status,
		Err:      err,
	}
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
