package mcp

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer string
	err    error
}

func (m *mockAnswerService) Ask(_ context.Context, _ string) <-chan domain.WorkflowEvent {
	out := make(chan domain.WorkflowEvent, 1)
	if m.err != nil {
		out <- domain.StageFailed("req", domain.StageSynthesize, m.err)
	} else {
		out <- domain.WorkflowTerminated("req", m.answer)
	}
	close(out)
	return out
}

func (m *mockAnswerService) Answer(_ context.Context, _ string) (string, error) {
	return m.answer, m.err
}

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	passages []domain.Passage
	gotLimit int
	err      error
}

func (m *mockSearchService) Search(_ context.Context, _ string, k int) ([]domain.Passage, error) {
	m.gotLimit = k
	return m.passages, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report    *domain.IngestReport
	documents []domain.Document
	document  *domain.Document
	stats     *driving.CorpusStats
	err       error
}

func (m *mockIngestService) Ingest(_ context.Context, _ domain.SourceType, _ string) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Documents(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockIngestService) Document(_ context.Context, _ string) (*domain.Document, error) {
	if m.document == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.document, m.err
}

func (m *mockIngestService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestService) Stats(_ context.Context) (*driving.CorpusStats, error) {
	return m.stats, m.err
}
