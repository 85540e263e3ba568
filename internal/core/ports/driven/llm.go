package driven

import "context"

// LanguageModel provides text completion for the answer workflow.
// This is an optional service - when nil, the workflow degrades gracefully:
// rewriting is skipped and synthesis produces a deterministic fallback answer.
//
// Implementations may include:
//   - Groq (llama3, mixtral via the OpenAI-compatible API)
//   - OpenAI (gpt-4o, gpt-4o-mini)
//   - Ollama (local models)
type LanguageModel interface {
	// Complete produces a plain-text completion from a prompt.
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// CompleteStructured produces a completion decoded into out, which must
	// be a pointer to a JSON-taggable struct. Implementations instruct the
	// model to emit JSON matching out's shape and decode strictly.
	// A response that cannot be decoded returns a *domain.SchemaError;
	// callers decide whether to fall back to Complete.
	CompleteStructured(ctx context.Context, prompt string, out any) error

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	// Used at startup and by settings validation.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}
