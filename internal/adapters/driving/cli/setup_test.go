package cli

import (
	"context"
	"errors"
	"time"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
)

// setupTestServices swaps the package service variables for mocks and
// marks bootstrap as done. The returned cleanup restores everything.
func setupTestServices() func() {
	oldAnswer := answerService
	oldIngest := ingestService
	oldSearch := searchService
	oldSettings := settingsService
	oldBootstrapped := bootstrapped

	answerService = &mockAnswerService{
		events: []domain.WorkflowEvent{
			domain.StageStarted("req-1", domain.StageRewrite),
			domain.StageStarted("req-1", domain.StageRetrieve),
			domain.StageStarted("req-1", domain.StageSynthesize),
			domain.WorkflowTerminated("req-1", "Granite is an igneous rock [1]."),
		},
	}
	ingestService = &mockIngestService{
		report: &domain.IngestReport{
			Source:    domain.SourceTypeWeb,
			Target:    "https://example.com/geology",
			Documents: 1,
			Chunks:    4,
			Embedded:  4,
			Duration:  120 * time.Millisecond,
		},
		documents: []domain.Document{
			{
				ID:         "doc-1",
				SourceType: domain.SourceTypeWeb,
				URI:        "https://example.com/geology",
				Title:      "Introduction to Geology",
			},
		},
		stats: &driving.CorpusStats{Documents: 1, Chunks: 4},
	}
	searchService = &mockSearchService{}
	settingsService = &mockSettingsService{}
	bootstrapped = true

	return func() {
		answerService = oldAnswer
		ingestService = oldIngest
		searchService = oldSearch
		settingsService = oldSettings
		bootstrapped = oldBootstrapped
	}
}

// mockAnswerService replays a fixed event sequence.
type mockAnswerService struct {
	events []domain.WorkflowEvent
	asked  string
}

func (m *mockAnswerService) Ask(_ context.Context, query string) <-chan domain.WorkflowEvent {
	m.asked = query
	ch := make(chan domain.WorkflowEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch
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
	return "", errors.New("no terminal event")
}

// mockIngestService returns canned corpus data.
type mockIngestService struct {
	report    *domain.IngestReport
	documents []domain.Document
	document  *domain.Document
	stats     *driving.CorpusStats
	err       error

	removedID string
}

func (m *mockIngestService) Ingest(_ context.Context, source domain.SourceType, target string) (*domain.IngestReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	report := *m.report
	report.Source = source
	report.Target = target
	return &report, nil
}

func (m *mockIngestService) Documents(_ context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.documents, nil
}

func (m *mockIngestService) Document(_ context.Context, documentID string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.document == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, nil
}

func (m *mockIngestService) Remove(_ context.Context, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.removedID = documentID
	return nil
}

func (m *mockIngestService) Stats(_ context.Context) (*driving.CorpusStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

// mockSearchService returns canned passages.
type mockSearchService struct {
	passages []domain.Passage
	err      error
}

func (m *mockSearchService) Search(_ context.Context, _ string, _ int) ([]domain.Passage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.passages, nil
}

// mockSettingsService serves a fixed settings value.
type mockSettingsService struct {
	settings    *domain.AppSettings
	err         error
	validateErr error
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

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	if m.err != nil {
		return m.err
	}
	m.settings = settings
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	return m.err
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	return m.err
}

func (m *mockSettingsService) SetReranker(baseURL, model string) error {
	return m.err
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.validateErr
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.validateErr
}
