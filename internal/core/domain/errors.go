package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the language model is not configured.
	// The workflow still runs: rewrite passes the query through verbatim,
	// synthesis produces a deterministic not-configured answer, and the
	// safety check allows.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRerankerUnavailable indicates the reranker service is not configured.
	// Retrieval keeps the fused ranking order without it.
	ErrRerankerUnavailable = errors.New("reranker service unavailable")

	// ErrSearchUnavailable indicates no retrieval backend is configured.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ConfigurationError indicates a component could not be constructed because
// required configuration (a credential, an endpoint) is absent or invalid.
// It is fatal for that component, surfaced immediately, and never retried.
type ConfigurationError struct {
	// Component identifies what failed to construct (e.g. "groq", "reranker").
	Component string

	// Reason describes what is missing or invalid.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Reason)
}

// ProviderError indicates a transient failure talking to an external
// provider (language model, reranker, embedding API). Retryable where a
// retry policy applies; elsewhere it degrades to an empty result.
type ProviderError struct {
	// Provider identifies the upstream service.
	Provider string

	// Status is the HTTP status code, if the failure had one.
	Status int

	// Timeout is true when the call exceeded its deadline.
	Timeout bool

	// Err is the underlying cause.
	Err error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Provider, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: request failed (status %d): %v", e.Provider, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// SchemaError indicates a structured completion did not match the expected
// shape. It triggers exactly one same-stage fallback to an unstructured
// completion; it is not retried.
type SchemaError struct {
	// Raw is the model output that failed to decode.
	Raw string

	// Err is the decode failure.
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("structured completion did not match schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// WorkflowError indicates a stage failed after exhausting its retries.
// It terminates the current request's event stream with an error terminal;
// it never crashes the process or affects other in-flight requests.
type WorkflowError struct {
	// Stage is where the workflow failed.
	Stage WorkflowStage

	// Err is the underlying stage failure.
	Err error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow stage %s failed: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an operation that returned err is worth
// retrying. Configuration and schema failures are deterministic and are
// never retried; everything else (provider errors, timeouts, transport
// failures) is considered transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return false
	}

	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return false
	}

	return true
}
