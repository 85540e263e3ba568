package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies a hosted AI service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderGroq is the Groq cloud API (OpenAI-compatible).
	AIProviderGroq AIProvider = "groq"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGroq, AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderGroq || p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGroq:
		return "Groq (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds language model provider configuration.
type LLMSettings struct {
	// Provider is the language model provider.
	Provider AIProvider

	// Model is the model name. Empty uses the provider's default.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible gateways).
	BaseURL string

	// APIKey is the API key (for Groq/OpenAI).
	APIKey string
}

// IsConfigured returns true if the language model provider is usable.
// A cloud provider without its API key is not configured; the workflow
// then runs in degraded mode rather than failing at startup.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RerankerSettings holds cross-encoder reranker configuration.
type RerankerSettings struct {
	// BaseURL is the reranker service endpoint. Empty disables reranking.
	BaseURL string

	// Model is the cross-encoder model name.
	Model string
}

// DefaultRerankerModel is the cross-encoder used when none is configured.
const DefaultRerankerModel = "cross-encoder/ms-marco-MiniLM-L-6-v2"

// IsConfigured returns true if a reranker endpoint is set.
func (r RerankerSettings) IsConfigured() bool {
	return r.BaseURL != ""
}

// AllLLMProviders returns providers that support language model operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderGroq,
		AIProviderOpenAI,
		AIProviderOllama,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
// Groq exposes no embeddings endpoint.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderGroq:   "llama3-8b-8192",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderOllama: "llama3.2",
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// Workflow tuning defaults.
const (
	// DefaultTopK is the retrieval candidate count.
	DefaultTopK = 5

	// DefaultContextThreshold is the minimum context length (characters)
	// required to proceed to synthesis.
	DefaultContextThreshold = 100

	// DefaultContextBudget caps the assembled context length in characters.
	DefaultContextBudget = 2000

	// DefaultTimeoutSec bounds each external provider call.
	DefaultTimeoutSec = 30

	// DefaultRetryMaxAttempts is the rewrite retry budget.
	DefaultRetryMaxAttempts = 3

	// DefaultRetryBaseDelaySec is the first retry backoff delay.
	DefaultRetryBaseDelaySec = 1
)

// WorkflowSettings holds the answer workflow tunables.
type WorkflowSettings struct {
	// TopK is how many candidate passages retrieval fetches and keeps.
	TopK int

	// ContextThreshold is the minimum context length in characters below
	// which the workflow exits early instead of synthesizing.
	ContextThreshold int

	// ContextBudget caps the assembled context length in characters.
	// Whole passages are dropped from the tail to stay within it.
	ContextBudget int

	// TimeoutSec bounds each language model / retrieval / rerank call.
	TimeoutSec int

	// RetryMaxAttempts is the total attempt budget for retried calls.
	RetryMaxAttempts int

	// RetryBaseDelaySec is the first backoff delay; it doubles per retry.
	RetryBaseDelaySec int

	// SafetyFailOpen controls what a failed faithfulness judgment does.
	// True (the default) keeps the answer; false refuses it. Changing this
	// hardens the safety gate at the cost of dropping answers on transient
	// model errors.
	SafetyFailOpen bool
}

// CallTimeout returns the per-call timeout as a duration.
func (w WorkflowSettings) CallTimeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

// RetryBaseDelay returns the first backoff delay as a duration.
func (w WorkflowSettings) RetryBaseDelay() time.Duration {
	return time.Duration(w.RetryBaseDelaySec) * time.Second
}

// Normalized returns a copy with zero or negative values replaced by the
// defaults, so a partially filled settings struct is always runnable.
func (w WorkflowSettings) Normalized() WorkflowSettings {
	if w.TopK <= 0 {
		w.TopK = DefaultTopK
	}
	if w.ContextThreshold <= 0 {
		w.ContextThreshold = DefaultContextThreshold
	}
	if w.ContextBudget <= 0 {
		w.ContextBudget = DefaultContextBudget
	}
	if w.TimeoutSec <= 0 {
		w.TimeoutSec = DefaultTimeoutSec
	}
	if w.RetryMaxAttempts <= 0 {
		w.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if w.RetryBaseDelaySec <= 0 {
		w.RetryBaseDelaySec = DefaultRetryBaseDelaySec
	}
	return w
}

// ServerSettings holds the HTTP API configuration.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string
}

// LogSettings holds logging configuration.
type LogSettings struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// File, when set, adds a rotated JSON log file alongside stderr.
	File string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// LLM holds language model provider settings.
	LLM LLMSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// Reranker holds reranker service settings.
	Reranker RerankerSettings

	// Workflow holds the answer workflow tunables.
	Workflow WorkflowSettings

	// Server holds the HTTP API settings.
	Server ServerSettings

	// Log holds logging settings.
	Log LogSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM provider defaults to Groq but carries no API key, so it reports
// unconfigured until the user supplies one and the workflow degrades
// gracefully in the meantime. Embedding and reranking are off by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Provider: AIProviderGroq,
			Model:    "llama3-8b-8192",
		},
		// Embedding is left unconfigured - keyword retrieval still works
		Embedding: EmbeddingSettings{},
		// Reranker is left unconfigured - retrieval keeps fused order
		Reranker: RerankerSettings{},
		Workflow: WorkflowSettings{
			TopK:              DefaultTopK,
			ContextThreshold:  DefaultContextThreshold,
			ContextBudget:     DefaultContextBudget,
			TimeoutSec:        DefaultTimeoutSec,
			RetryMaxAttempts:  DefaultRetryMaxAttempts,
			RetryBaseDelaySec: DefaultRetryBaseDelaySec,
			SafetyFailOpen:    true,
		},
		Server: ServerSettings{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}
