package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// mockAnswerService is a test double for driving.AnswerService.
type mockAnswerService struct {
	events []domain.WorkflowEvent
	asked  string
}

func (m *mockAnswerService) Ask(ctx context.Context, query string) <-chan domain.WorkflowEvent {
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

func newTestApp(t *testing.T, answer *mockAnswerService) *App {
	t.Helper()

	app, err := NewApp(&Ports{Answer: answer})
	require.NoError(t, err)

	// Deliver dimensions so the app is ready.
	model, _ := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return model.(*App)
}

func TestNewApp(t *testing.T) {
	t.Run("valid ports", func(t *testing.T) {
		app, err := NewApp(&Ports{Answer: &mockAnswerService{}})
		require.NoError(t, err)
		assert.NotNil(t, app)
		assert.False(t, app.Ready())
	})

	t.Run("missing answer service", func(t *testing.T) {
		app, err := NewApp(&Ports{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingAnswerService)
		assert.Nil(t, app)
	})
}

func TestApp_WindowSize(t *testing.T) {
	app, err := NewApp(&Ports{Answer: &mockAnswerService{}})
	require.NoError(t, err)
	assert.False(t, app.Ready())

	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	app = model.(*App)

	assert.True(t, app.Ready())
	assert.Equal(t, 100, app.width)
	assert.Equal(t, 40, app.height)
}

func TestApp_ViewBeforeReady(t *testing.T) {
	app, err := NewApp(&Ports{Answer: &mockAnswerService{}})
	require.NoError(t, err)

	assert.Contains(t, app.View(), "Initialising...")
}

func TestApp_SubmitQuestion(t *testing.T) {
	svc := &mockAnswerService{events: []domain.WorkflowEvent{
		domain.WorkflowTerminated("req-1", "Quarry indexes documents [1]."),
	}}
	app := newTestApp(t, svc)

	app.input.SetValue("what is quarry?")
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)

	assert.True(t, app.busy)
	require.Len(t, app.transcript, 1)
	assert.Equal(t, roleUser, app.transcript[0].role)
	assert.Equal(t, "what is quarry?", app.transcript[0].content)
	assert.Equal(t, "what is quarry?", svc.asked)
	assert.Empty(t, app.input.Value())
	assert.NotNil(t, cmd)
}

func TestApp_SubmitEmptyQuestion(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})

	app.input.SetValue("   ")
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)

	assert.False(t, app.busy)
	assert.Empty(t, app.transcript)
	assert.Nil(t, cmd)
}

func TestApp_SubmitWhileBusy(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})
	app.busy = true

	app.input.SetValue("another question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
}

func TestApp_WorkflowEvents(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})
	app.busy = true

	stream := make(chan domain.WorkflowEvent, 1)

	// Stage progress updates the status line and keeps reading.
	model, cmd := app.Update(workflowEventMsg{
		event:  domain.StageStarted("req-1", domain.StageRetrieve),
		stream: stream,
	})
	app = model.(*App)
	assert.Equal(t, domain.StageRetrieve, app.stage)
	assert.True(t, app.busy)
	assert.NotNil(t, cmd)

	// Termination appends the answer and ends the run.
	model, cmd = app.Update(workflowEventMsg{
		event:  domain.WorkflowTerminated("req-1", "Granite is an igneous rock [2]."),
		stream: stream,
	})
	app = model.(*App)
	assert.False(t, app.busy)
	assert.Nil(t, cmd)
	require.Len(t, app.transcript, 1)
	assert.Equal(t, roleAssistant, app.transcript[0].role)
	assert.Equal(t, "Granite is an igneous rock [2].", app.transcript[0].content)
}

func TestApp_WorkflowFailure(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})
	app.busy = true

	stream := make(chan domain.WorkflowEvent)
	model, cmd := app.Update(workflowEventMsg{
		event:  domain.StageFailed("req-1", domain.StageSynthesize, errors.New("model unavailable")),
		stream: stream,
	})
	app = model.(*App)

	assert.False(t, app.busy)
	assert.Nil(t, cmd)
	require.Len(t, app.transcript, 1)
	assert.Equal(t, roleError, app.transcript[0].role)
	assert.Equal(t, "model unavailable", app.transcript[0].content)
}

func TestApp_StreamClosed(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})
	app.busy = true
	app.stage = domain.StageRetrieve

	model, _ := app.Update(streamClosedMsg{})
	app = model.(*App)

	assert.False(t, app.busy)
	assert.Empty(t, app.stage)
}

func TestApp_QuitKey(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_View(t *testing.T) {
	app := newTestApp(t, &mockAnswerService{})

	t.Run("empty transcript shows hint", func(t *testing.T) {
		assert.Contains(t, app.View(), "Ask a question about your corpus")
	})

	t.Run("transcript shows entries", func(t *testing.T) {
		app.transcript = []entry{
			{role: roleUser, content: "what is quarry?"},
			{role: roleAssistant, content: "Quarry answers questions about a corpus [1]."},
		}
		app.refreshViewport()

		view := app.View()
		assert.Contains(t, view, "what is quarry?")
		assert.Contains(t, view, "Quarry answers questions")
	})

	t.Run("busy shows stage progress", func(t *testing.T) {
		app.busy = true
		app.stage = domain.StageSynthesize

		assert.Contains(t, app.View(), "Synthesizing answer...")
		app.busy = false
	})
}

func TestWaitForEvent(t *testing.T) {
	t.Run("delivers event", func(t *testing.T) {
		stream := make(chan domain.WorkflowEvent, 1)
		stream <- domain.StageStarted("req-1", domain.StageRewrite)

		msg := waitForEvent(stream)()
		evMsg, ok := msg.(workflowEventMsg)
		require.True(t, ok)
		assert.Equal(t, domain.EventStageStarted, evMsg.event.Kind)
	})

	t.Run("closed stream", func(t *testing.T) {
		stream := make(chan domain.WorkflowEvent)
		close(stream)

		msg := waitForEvent(stream)()
		assert.IsType(t, streamClosedMsg{}, msg)
	})
}

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "Rewriting query", stageLabel(domain.StageRewrite))
	assert.Equal(t, "Retrieving context", stageLabel(domain.StageRetrieve))
	assert.Equal(t, "Synthesizing answer", stageLabel(domain.StageSynthesize))
	assert.Equal(t, "Checking answer", stageLabel(domain.StageSafetyCheck))
	assert.Equal(t, "Thinking", stageLabel(domain.WorkflowStage("unknown")))
}
