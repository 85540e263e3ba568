// Package groq provides a language model adapter using the Groq API.
// Groq serves open models (llama3, mixtral) behind an OpenAI-compatible
// chat completions endpoint.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LanguageModel = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.groq.com/openai/v1"
	DefaultLLMModel   = "llama3-8b-8192"
	DefaultLLMTimeout = 120 * time.Second

	providerName = "groq"
)

// LLMConfig holds configuration for the Groq LLM service.
type LLMConfig struct {
	// APIKey is the Groq API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.groq.com/openai/v1).
	BaseURL string

	// Model is the LLM model to use (default: llama3-8b-8192).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides language model operations using the Groq API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// chatCompletionRequest is the OpenAI-compatible /chat/completions request format.
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatCompletionMsg `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature,omitempty"`
	Stop           []string            `json:"stop,omitempty"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
}

// chatCompletionMsg is the chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat requests JSON mode.
type responseFormat struct {
	Type string `json:"type"`
}

// chatCompletionResponse is the /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewLLMService creates a new Groq LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigurationError{Component: providerName, Reason: "API key is required"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Complete produces a plain-text completion from a prompt.
func (s *LLMService) Complete(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return s.chatCompletion(ctx, prompt, opts, false)
}

// CompleteStructured produces a completion decoded into out. The request runs
// in JSON mode with a shape hint appended to the prompt; a response that does
// not decode into out returns a *domain.SchemaError.
func (s *LLMService) CompleteStructured(ctx context.Context, prompt string, out any) error {
	shape, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal shape hint: %w", err)
	}
	hinted := fmt.Sprintf("%s\n\nRespond with a single JSON object shaped like: %s", prompt, shape)

	raw, err := s.chatCompletion(ctx, hinted, driven.GenerateOptions{}, true)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return &domain.SchemaError{Raw: raw, Err: err}
	}
	return nil
}

// chatCompletion is the internal implementation for both completion modes.
func (s *LLMService) chatCompletion(
	ctx context.Context,
	prompt string,
	opts driven.GenerateOptions,
	jsonMode bool,
) (string, error) {
	reqBody := chatCompletionRequest{
		Model: s.model,
		Messages: []chatCompletionMsg{
			{Role: "user", Content: prompt},
		},
	}

	if opts.MaxTokens > 0 {
		reqBody.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = opts.Temperature
	}
	if len(opts.StopWords) > 0 {
		reqBody.Stop = opts.StopWords
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", statusError(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	if chatResp.Error != nil {
		return "", statusError(resp.StatusCode, errors.New(chatResp.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}
	if len(chatResp.Choices) == 0 {
		return "", &domain.ProviderError{Provider: providerName, Err: errors.New("no response choices returned")}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// ModelName returns the name of the model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("groq: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
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
func (s *LLMService) Close() error {
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

// extractJSON strips code fences and surrounding prose from a model response,
// keeping the outermost JSON object. Models occasionally wrap JSON mode
// output anyway.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		response = response[start : end+1]
	}
	return response
}
