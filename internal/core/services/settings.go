package services

import (
	"fmt"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"

	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"

	keyRerankerBaseURL = "reranker.base_url"
	keyRerankerModel   = "reranker.model"

	keyTopK              = "workflow.top_k"
	keyContextThreshold  = "workflow.context_threshold"
	keyContextBudget     = "workflow.context_budget"
	keyTimeoutSec        = "workflow.timeout_sec"
	keyRetryMaxAttempts  = "workflow.retry_max_attempts"
	keyRetryBaseDelaySec = "workflow.retry_base_delay_sec"
	keySafetyFailOpen    = "workflow.safety_fail_open"

	keyServerAddr  = "server.addr"
	keyCORSOrigins = "server.cors_origins"

	keyLogLevel = "log.level"
	keyLogFile  = "log.file"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		Reranker: domain.RerankerSettings{
			BaseURL: s.configStore.GetString(keyRerankerBaseURL),
			Model:   s.getString(keyRerankerModel, domain.DefaultRerankerModel),
		},
		Workflow: domain.WorkflowSettings{
			TopK:              s.getInt(keyTopK, defaults.Workflow.TopK),
			ContextThreshold:  s.getInt(keyContextThreshold, defaults.Workflow.ContextThreshold),
			ContextBudget:     s.getInt(keyContextBudget, defaults.Workflow.ContextBudget),
			TimeoutSec:        s.getInt(keyTimeoutSec, defaults.Workflow.TimeoutSec),
			RetryMaxAttempts:  s.getInt(keyRetryMaxAttempts, defaults.Workflow.RetryMaxAttempts),
			RetryBaseDelaySec: s.getInt(keyRetryBaseDelaySec, defaults.Workflow.RetryBaseDelaySec),
			SafetyFailOpen:    s.getBool(keySafetyFailOpen, defaults.Workflow.SafetyFailOpen),
		},
		Server: domain.ServerSettings{
			Addr:        s.getString(keyServerAddr, defaults.Server.Addr),
			CORSOrigins: s.getStringSlice(keyCORSOrigins, defaults.Server.CORSOrigins),
		},
		Log: domain.LogSettings{
			Level: s.getString(keyLogLevel, defaults.Log.Level),
			File:  s.configStore.GetString(keyLogFile),
		},
	}

	return settings, nil
}

// Save persists application settings.
//
//nolint:gocyclo // Sequential persistence of every settings section
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	// Save LLM settings
	if err := s.configStore.Set(keyLLMProvider, settings.LLM.Provider.String()); err != nil {
		return fmt.Errorf("save llm provider: %w", err)
	}
	if err := s.configStore.Set(keyLLMModel, settings.LLM.Model); err != nil {
		return fmt.Errorf("save llm model: %w", err)
	}
	if err := s.configStore.Set(keyLLMBaseURL, settings.LLM.BaseURL); err != nil {
		return fmt.Errorf("save llm base_url: %w", err)
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	// Save embedding settings
	if err := s.configStore.Set(keyEmbedProvider, settings.Embedding.Provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, settings.Embedding.Model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if err := s.configStore.Set(keyEmbedBaseURL, settings.Embedding.BaseURL); err != nil {
		return fmt.Errorf("save embedding base_url: %w", err)
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	// Save reranker settings
	if err := s.configStore.Set(keyRerankerBaseURL, settings.Reranker.BaseURL); err != nil {
		return fmt.Errorf("save reranker base_url: %w", err)
	}
	if err := s.configStore.Set(keyRerankerModel, settings.Reranker.Model); err != nil {
		return fmt.Errorf("save reranker model: %w", err)
	}

	// Save workflow settings
	if err := s.configStore.Set(keyTopK, settings.Workflow.TopK); err != nil {
		return fmt.Errorf("save top_k: %w", err)
	}
	if err := s.configStore.Set(keyContextThreshold, settings.Workflow.ContextThreshold); err != nil {
		return fmt.Errorf("save context_threshold: %w", err)
	}
	if err := s.configStore.Set(keyContextBudget, settings.Workflow.ContextBudget); err != nil {
		return fmt.Errorf("save context_budget: %w", err)
	}
	if err := s.configStore.Set(keyTimeoutSec, settings.Workflow.TimeoutSec); err != nil {
		return fmt.Errorf("save timeout_sec: %w", err)
	}
	if err := s.configStore.Set(keyRetryMaxAttempts, settings.Workflow.RetryMaxAttempts); err != nil {
		return fmt.Errorf("save retry_max_attempts: %w", err)
	}
	if err := s.configStore.Set(keyRetryBaseDelaySec, settings.Workflow.RetryBaseDelaySec); err != nil {
		return fmt.Errorf("save retry_base_delay_sec: %w", err)
	}
	if err := s.configStore.Set(keySafetyFailOpen, settings.Workflow.SafetyFailOpen); err != nil {
		return fmt.Errorf("save safety_fail_open: %w", err)
	}

	// Save server settings
	if err := s.configStore.Set(keyServerAddr, settings.Server.Addr); err != nil {
		return fmt.Errorf("save server addr: %w", err)
	}
	if err := s.configStore.Set(keyCORSOrigins, settings.Server.CORSOrigins); err != nil {
		return fmt.Errorf("save cors origins: %w", err)
	}

	// Save log settings
	if err := s.configStore.Set(keyLogLevel, settings.Log.Level); err != nil {
		return fmt.Errorf("save log level: %w", err)
	}
	if err := s.configStore.Set(keyLogFile, settings.Log.File); err != nil {
		return fmt.Errorf("save log file: %w", err)
	}

	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		defaults := domain.DefaultLLMModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.LLM.Model = defaultModel
		}
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.LLM.BaseURL = ""
	}

	// Set API key
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	validProviders := domain.AllEmbeddingProviders()
	valid := false
	for _, p := range validProviders {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		defaults := domain.DefaultEmbeddingModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.Embedding.Model = defaultModel
		}
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}

	// Set API key
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetReranker configures the reranker endpoint. An empty baseURL disables
// reranking; an empty model keeps the default cross-encoder.
func (s *SettingsService) SetReranker(baseURL, model string) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Reranker.BaseURL = baseURL
	if model != "" {
		settings.Reranker.Model = model
	} else {
		settings.Reranker.Model = domain.DefaultRerankerModel
	}

	return s.Save(settings)
}

// Validate checks if current settings are internally consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.LLM.Provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", settings.LLM.Provider)
	}
	if settings.Embedding.Provider != "" && !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", settings.Embedding.Provider)
	}

	// The workflow tunables must survive normalisation unchanged, otherwise
	// the stored values are out of range.
	if settings.Workflow != settings.Workflow.Normalized() {
		return fmt.Errorf("workflow settings out of range: %+v", settings.Workflow)
	}

	if settings.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
