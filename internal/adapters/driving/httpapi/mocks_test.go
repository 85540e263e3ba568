package httpapi

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// mockAnswerService replays a canned event stream.
type mockAnswerService struct {
	events []domain.WorkflowEvent
}

func (m *mockAnswerService) Ask(ctx context.Context, _ string) <-chan domain.WorkflowEvent {
	out := make(chan domain.WorkflowEvent, len(m.events))
	go func() {
		defer close(out)
		for _, ev := range m.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (m *mockAnswerService) Answer(ctx context.Context, query string) (string, error) {
	for ev := range m.Ask(ctx, query) {
		switch ev.Kind {
		case domain.EventWorkflowTerminated:
			return ev.Final, nil
		case domain.EventStageFailed:
			return "", ev.Err
		}
	}
	return "", context.Canceled
}

// mockSettingsService serves fixed settings.
type mockSettingsService struct {
	settings *domain.AppSettings
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings != nil {
		return m.settings, nil
	}
	defaults := domain.DefaultAppSettings()
	return &defaults, nil
}

func (m *mockSettingsService) Save(*domain.AppSettings) error { return m.err }

func (m *mockSettingsService) SetLLMProvider(domain.AIProvider, string, string) error {
	return m.err
}

func (m *mockSettingsService) SetEmbeddingProvider(domain.AIProvider, string, string) error {
	return m.err
}

func (m *mockSettingsService) SetReranker(string, string) error { return m.err }

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateLLMConfig() error { return m.err }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.err }
