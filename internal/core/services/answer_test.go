package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// --- Mock implementations ---

// scriptedModel routes completions by prompt prefix so each workflow stage
// can be scripted independently.
type scriptedModel struct {
	rewriteResponse  string
	rewriteFailures  int // transient failures before rewrite succeeds
	rewriteErr       error
	safetyResponse   string
	safetyErr        error
	fallbackResponse string
	fallbackErr      error
	structuredAnswer *domain.StructuredAnswer
	structuredErr    error

	rewriteCalls    int
	safetyCalls     int
	fallbackCalls   int
	structuredCalls int
}

func (m *scriptedModel) Complete(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "Rewrite this query"):
		m.rewriteCalls++
		if m.rewriteFailures > 0 {
			m.rewriteFailures--
			return "", &domain.ProviderError{Provider: "scripted", Err: errors.New("transient")}
		}
		if m.rewriteErr != nil {
			return "", m.rewriteErr
		}
		return m.rewriteResponse, nil
	case strings.HasPrefix(prompt, "Is this answer faithful"):
		m.safetyCalls++
		if m.safetyErr != nil {
			return "", m.safetyErr
		}
		return m.safetyResponse, nil
	default:
		m.fallbackCalls++
		if m.fallbackErr != nil {
			return "", m.fallbackErr
		}
		return m.fallbackResponse, nil
	}
}

func (m *scriptedModel) CompleteStructured(_ context.Context, _ string, out any) error {
	m.structuredCalls++
	if m.structuredErr != nil {
		return m.structuredErr
	}
	if m.structuredAnswer != nil {
		if target, ok := out.(*domain.StructuredAnswer); ok {
			*target = *m.structuredAnswer
		}
	}
	return nil
}

func (m *scriptedModel) ModelName() string { return "scripted" }

func (m *scriptedModel) Ping(_ context.Context) error { return nil }

func (m *scriptedModel) Close() error { return nil }

// mockRetrievalIndex implements driven.RetrievalIndex for testing.
type mockRetrievalIndex struct {
	passages  []domain.Passage
	searchErr error

	searchCalls int
	lastQuery   string
	lastK       int
}

func (m *mockRetrievalIndex) Search(_ context.Context, query string, k int) ([]domain.Passage, error) {
	m.searchCalls++
	m.lastQuery = query
	m.lastK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.passages, nil
}

// blockingRetrieval parks until the context is cancelled.
type blockingRetrieval struct{}

func (blockingRetrieval) Search(ctx context.Context, _ string, _ int) ([]domain.Passage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

// --- Helpers ---

// richPassage returns one passage comfortably above the context threshold.
func richPassage() []domain.Passage {
	return []domain.Passage{{
		ID:      "chunk-1",
		Source:  "encyclopedia",
		Content: strings.Repeat("Paris is the capital and largest city of France. ", 5),
		Score:   0.97,
	}}
}

// newTestService wires a service with instant retries.
func newTestService(llm driven.LanguageModel, retrieval driven.RetrievalIndex) *AnswerService {
	svc := NewAnswerService(llm, retrieval, domain.DefaultAppSettings().Workflow)
	svc.retry.Jitter = false
	svc.retry.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}

// collectEvents drains the stream until it closes.
func collectEvents(t *testing.T, events <-chan domain.WorkflowEvent) []domain.WorkflowEvent {
	t.Helper()
	var collected []domain.WorkflowEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatal("timed out waiting for the event stream to close")
		}
	}
}

// countTerminals returns how many terminal events the stream carried.
func countTerminals(events []domain.WorkflowEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Terminal() {
			n++
		}
	}
	return n
}

// stageSequence flattens events into "kind:stage" strings for comparison.
func stageSequence(events []domain.WorkflowEvent) []string {
	seq := make([]string, 0, len(events))
	for _, ev := range events {
		seq = append(seq, string(ev.Kind)+":"+string(ev.Stage))
	}
	return seq
}

// --- Tests ---

// TestAnswerService_HappyPath tests the full four-stage pipeline
func TestAnswerService_HappyPath(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse: "capital city of France country",
		safetyResponse:  "yes",
		structuredAnswer: &domain.StructuredAnswer{
			Answer:    "Paris is the capital of France.",
			Citations: []string{"encyclopedia"},
		},
	}
	retrieval := &mockRetrievalIndex{passages: richPassage()}
	svc := newTestService(llm, retrieval)

	events := collectEvents(t, svc.Ask(context.Background(), "capital of France?"))

	require.NotEmpty(t, events)
	assert.Equal(t, []string{
		"stage_started:rewrite",
		"stage_completed:rewrite",
		"stage_started:retrieve",
		"stage_completed:retrieve",
		"stage_started:synthesize",
		"stage_completed:synthesize",
		"stage_started:safety",
		"stage_completed:safety",
		"workflow_terminated:terminated",
	}, stageSequence(events))

	last := events[len(events)-1]
	assert.Equal(t, "Paris is the capital of France. (Citations: encyclopedia)", last.Final)

	// Retrieval saw the rewritten query and the configured k
	assert.Equal(t, "capital city of France country", retrieval.lastQuery)
	assert.Equal(t, 5, retrieval.lastK)

	// All events belong to the same request
	for _, ev := range events {
		assert.Equal(t, events[0].RequestID, ev.RequestID)
	}
}

// TestAnswerService_ExactlyOneTerminalEvent tests the terminal guarantee on
// both the success and the failure path
func TestAnswerService_ExactlyOneTerminalEvent(t *testing.T) {
	t.Run("success run", func(t *testing.T) {
		llm := &scriptedModel{
			rewriteResponse:  "q",
			safetyResponse:   "yes",
			structuredAnswer: &domain.StructuredAnswer{Answer: "a"},
		}
		svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

		events := collectEvents(t, svc.Ask(context.Background(), "q"))

		assert.Equal(t, 1, countTerminals(events))
		assert.True(t, events[len(events)-1].Terminal(), "terminal must be the last event")
	})

	t.Run("failure run", func(t *testing.T) {
		llm := &scriptedModel{rewriteErr: &domain.ProviderError{Provider: "scripted", Err: errors.New("down")}}
		svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

		events := collectEvents(t, svc.Ask(context.Background(), "q"))

		assert.Equal(t, 1, countTerminals(events))
		assert.True(t, events[len(events)-1].Terminal(), "terminal must be the last event")
	})
}

// TestAnswerService_CompletedEventsSnapshotState tests that progress events
// carry the state transition that stage produced
func TestAnswerService_CompletedEventsSnapshotState(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "rewritten query",
		safetyResponse:   "yes",
		structuredAnswer: &domain.StructuredAnswer{Answer: "the answer"},
	}
	svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

	events := collectEvents(t, svc.Ask(context.Background(), "original query"))

	byStage := map[string]domain.WorkflowEvent{}
	for _, ev := range events {
		if ev.Kind == domain.EventStageCompleted {
			byStage[string(ev.Stage)] = ev
		}
	}

	require.NotNil(t, byStage["rewrite"].State)
	assert.Equal(t, "rewritten query", byStage["rewrite"].State.Query)
	assert.Empty(t, byStage["rewrite"].State.Context)

	require.NotNil(t, byStage["retrieve"].State)
	assert.NotEmpty(t, byStage["retrieve"].State.Context)

	require.NotNil(t, byStage["synthesize"].State)
	assert.Equal(t, domain.RoleAssistant, byStage["synthesize"].State.LastMessage().Role)
}

// TestAnswerService_EarlyExitOnThinContext tests that weak retrieval skips
// synthesis and safety entirely
func TestAnswerService_EarlyExitOnThinContext(t *testing.T) {
	llm := &scriptedModel{rewriteResponse: "gibberish rewritten"}
	retrieval := &mockRetrievalIndex{passages: []domain.Passage{{ID: "c1", Content: "tiny"}}}
	svc := newTestService(llm, retrieval)

	events := collectEvents(t, svc.Ask(context.Background(), "xyzzy plugh"))

	assert.Equal(t, []string{
		"stage_started:rewrite",
		"stage_completed:rewrite",
		"stage_started:retrieve",
		"stage_completed:retrieve",
		"workflow_terminated:terminated",
	}, stageSequence(events))

	last := events[len(events)-1]
	assert.Equal(t, noAnswerMessage, last.Final)

	// Synthesis and safety never ran
	assert.Zero(t, llm.structuredCalls)
	assert.Zero(t, llm.safetyCalls)
}

// TestAnswerService_EmptyRetrievalExitsEarly tests the no-results case
func TestAnswerService_EmptyRetrievalExitsEarly(t *testing.T) {
	llm := &scriptedModel{rewriteResponse: "anything"}
	svc := newTestService(llm, &mockRetrievalIndex{})

	events := collectEvents(t, svc.Ask(context.Background(), "unanswerable"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventWorkflowTerminated, last.Kind)
	assert.Equal(t, noAnswerMessage, last.Final)
	assert.Zero(t, llm.structuredCalls)
}

// TestAnswerService_NilLLM tests the fully degraded mode: rewrite passes
// through, synthesis yields the placeholder, safety is skipped
func TestAnswerService_NilLLM(t *testing.T) {
	retrieval := &mockRetrievalIndex{passages: richPassage()}
	svc := newTestService(nil, retrieval)

	events := collectEvents(t, svc.Ask(context.Background(), "capital of France?"))

	// All four stages still run
	assert.Equal(t, 1, countTerminals(events))
	assert.Len(t, events, 9)

	// The query reached retrieval unchanged
	assert.Equal(t, "capital of France?", retrieval.lastQuery)

	last := events[len(events)-1]
	assert.Equal(t, "Error: LLM not configured. Query: capital of France?", last.Final)
}

// TestAnswerService_RewriteRetriesTransientFailures tests retry recovery
// with non-decreasing backoff delays
func TestAnswerService_RewriteRetriesTransientFailures(t *testing.T) {
	llm := &scriptedModel{
		rewriteFailures:  2,
		rewriteResponse:  "recovered query",
		safetyResponse:   "yes",
		structuredAnswer: &domain.StructuredAnswer{Answer: "answer"},
	}
	retrieval := &mockRetrievalIndex{passages: richPassage()}
	svc := NewAnswerService(llm, retrieval, domain.DefaultAppSettings().Workflow)
	svc.retry.Jitter = false
	var delays []time.Duration
	svc.retry.sleep = recordingSleep(&delays)

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventWorkflowTerminated, last.Kind)
	assert.Equal(t, 3, llm.rewriteCalls)
	require.Len(t, delays, 2)
	assert.Equal(t, time.Second, delays[0])
	assert.Equal(t, 2*time.Second, delays[1])
	assert.Equal(t, "recovered query", retrieval.lastQuery)
}

// TestAnswerService_RewriteFailureTerminatesStream tests retry exhaustion
func TestAnswerService_RewriteFailureTerminatesStream(t *testing.T) {
	llm := &scriptedModel{rewriteErr: &domain.ProviderError{Provider: "scripted", Status: 503, Err: errors.New("down")}}
	retrieval := &mockRetrievalIndex{passages: richPassage()}
	svc := newTestService(llm, retrieval)

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	assert.Equal(t, []string{
		"stage_started:rewrite",
		"stage_failed:rewrite",
	}, stageSequence(events))

	last := events[len(events)-1]
	require.Error(t, last.Err)
	var we *domain.WorkflowError
	require.ErrorAs(t, last.Err, &we)
	assert.Equal(t, domain.StageRewrite, we.Stage)
	var pe *domain.ProviderError
	assert.ErrorAs(t, last.Err, &pe)

	// Retry budget was spent, retrieval never ran
	assert.Equal(t, 3, llm.rewriteCalls)
	assert.Zero(t, retrieval.searchCalls)
}

// TestAnswerService_RetrievalFailureDegradesToEarlyExit tests that index
// errors are not retried and not fatal: they yield empty context and the
// no-answer terminal
func TestAnswerService_RetrievalFailureDegradesToEarlyExit(t *testing.T) {
	llm := &scriptedModel{rewriteResponse: "q"}
	retrieval := &mockRetrievalIndex{searchErr: errors.New("index corrupted")}
	svc := newTestService(llm, retrieval)

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventWorkflowTerminated, last.Kind)
	assert.Equal(t, noAnswerMessage, last.Final)
	assert.Equal(t, 1, retrieval.searchCalls, "index errors are not retried")
	assert.Zero(t, llm.structuredCalls, "synthesis must not run after a failed retrieval")
}

// TestAnswerService_SchemaErrorFallsBackToPlainCompletion tests the one-shot
// unstructured fallback
func TestAnswerService_SchemaErrorFallsBackToPlainCompletion(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "q",
		safetyResponse:   "yes",
		structuredErr:    &domain.SchemaError{Raw: "not json at all", Err: errors.New("invalid character")},
		fallbackResponse: "Paris, per the retrieved context.",
	}
	svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventWorkflowTerminated, last.Kind)
	assert.Equal(t, "Paris, per the retrieved context.", last.Final)
	assert.Equal(t, 1, llm.structuredCalls)
	assert.Equal(t, 1, llm.fallbackCalls)
}

// TestAnswerService_StructuredProviderErrorFailsStage tests that only schema
// mismatches trigger the fallback
func TestAnswerService_StructuredProviderErrorFailsStage(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse: "q",
		structuredErr:   &domain.ProviderError{Provider: "scripted", Status: 500, Err: errors.New("upstream")},
	}
	svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventStageFailed, last.Kind)
	assert.Equal(t, domain.StageSynthesize, last.Stage)
	assert.Zero(t, llm.fallbackCalls, "provider errors must not trigger the plain-completion fallback")
}

// TestAnswerService_SafetyRefusal tests that a "no" judgment replaces the
// answer with the refusal message
func TestAnswerService_SafetyRefusal(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "q",
		safetyResponse:   "no",
		structuredAnswer: &domain.StructuredAnswer{Answer: "A confidently wrong answer."},
	}
	svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, refusalMessage, last.Final)

	// The refusal is appended to the conversation, not substituted
	var safetyState *domain.RequestState
	for _, ev := range events {
		if ev.Kind == domain.EventStageCompleted && ev.Stage == domain.StageSafetyCheck {
			safetyState = ev.State
		}
	}
	require.NotNil(t, safetyState)
	require.Len(t, safetyState.Conversation, 3)
	assert.Equal(t, "A confidently wrong answer.", safetyState.Conversation[1].Content)
	assert.Equal(t, refusalMessage, safetyState.Conversation[2].Content)
}

// TestAnswerService_SafetyJudgmentNormalised tests tolerant yes parsing
func TestAnswerService_SafetyJudgmentNormalised(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "q",
		safetyResponse:   "  YES\n",
		structuredAnswer: &domain.StructuredAnswer{Answer: "the answer"},
	}
	svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	assert.Equal(t, "the answer", events[len(events)-1].Final)
}

// TestAnswerService_SafetyFailOpen tests that judgment failures keep the
// answer under the default policy
func TestAnswerService_SafetyFailOpen(t *testing.T) {
	tests := []struct {
		name string
		llm  *scriptedModel
	}{
		{
			name: "judgment call fails",
			llm: &scriptedModel{
				rewriteResponse:  "q",
				safetyErr:        &domain.ProviderError{Provider: "scripted", Err: errors.New("timeout")},
				structuredAnswer: &domain.StructuredAnswer{Answer: "kept answer"},
			},
		},
		{
			name: "judgment is malformed",
			llm: &scriptedModel{
				rewriteResponse:  "q",
				safetyResponse:   "well, that depends on interpretation",
				structuredAnswer: &domain.StructuredAnswer{Answer: "kept answer"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.llm, &mockRetrievalIndex{passages: richPassage()})

			events := collectEvents(t, svc.Ask(context.Background(), "q"))

			last := events[len(events)-1]
			assert.Equal(t, domain.EventWorkflowTerminated, last.Kind)
			assert.Equal(t, "kept answer", last.Final)
		})
	}
}

// TestAnswerService_SafetyFailClosed tests the hardened policy
func TestAnswerService_SafetyFailClosed(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "q",
		safetyErr:        &domain.ProviderError{Provider: "scripted", Err: errors.New("timeout")},
		structuredAnswer: &domain.StructuredAnswer{Answer: "dropped answer"},
	}
	settings := domain.DefaultAppSettings().Workflow
	settings.SafetyFailOpen = false
	svc := NewAnswerService(llm, &mockRetrievalIndex{passages: richPassage()}, settings)
	svc.retry.sleep = func(context.Context, time.Duration) error { return nil }

	events := collectEvents(t, svc.Ask(context.Background(), "q"))

	assert.Equal(t, refusalMessage, events[len(events)-1].Final)
}

// TestAnswerService_CancelledMidRetrieval tests that cancellation surfaces
// as a stage failure and the stream still closes
func TestAnswerService_CancelledMidRetrieval(t *testing.T) {
	svc := newTestService(nil, blockingRetrieval{})

	ctx, cancel := context.WithCancel(context.Background())
	stream := svc.Ask(ctx, "q")
	time.AfterFunc(20*time.Millisecond, cancel)

	events := collectEvents(t, stream)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventStageFailed, last.Kind)
	assert.Equal(t, domain.StageRetrieve, last.Stage)
	assert.ErrorIs(t, last.Err, context.Canceled)
}

// TestAnswerService_AnswerBlocking tests the blocking convenience wrapper
func TestAnswerService_AnswerBlocking(t *testing.T) {
	t.Run("returns the final answer", func(t *testing.T) {
		llm := &scriptedModel{
			rewriteResponse:  "q",
			safetyResponse:   "yes",
			structuredAnswer: &domain.StructuredAnswer{Answer: "Paris.", Citations: []string{"doc-1"}},
		}
		svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

		answer, err := svc.Answer(context.Background(), "capital of France?")

		require.NoError(t, err)
		assert.Equal(t, "Paris. (Citations: doc-1)", answer)
	})

	t.Run("surfaces stage failures", func(t *testing.T) {
		llm := &scriptedModel{rewriteErr: &domain.ProviderError{Provider: "scripted", Err: errors.New("model gone")}}
		svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})

		_, err := svc.Answer(context.Background(), "q")

		require.Error(t, err)
		var we *domain.WorkflowError
		assert.ErrorAs(t, err, &we)
	})
}

// TestAnswerService_PromptStoreOverride tests template customisation
func TestAnswerService_PromptStoreOverride(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "ignored",
		safetyResponse:   "yes",
		structuredAnswer: &domain.StructuredAnswer{Answer: "a"},
	}
	svc := newTestService(llm, &mockRetrievalIndex{passages: richPassage()})
	svc.SetPromptStore(&mockPromptStore{prompts: map[string]string{
		driven.PromptQueryRewrite: "Rewrite this query, tersely: %s",
	}})

	events := collectEvents(t, svc.Ask(context.Background(), "original"))

	assert.Equal(t, domain.EventWorkflowTerminated, events[len(events)-1].Kind)
	// The custom template still routed to the rewrite handler
	assert.Equal(t, 1, llm.rewriteCalls)
}

// TestAnswerService_UpdateWorkflowSettings tests tunable replacement between
// requests
func TestAnswerService_UpdateWorkflowSettings(t *testing.T) {
	llm := &scriptedModel{
		rewriteResponse:  "q",
		safetyResponse:   "yes",
		structuredAnswer: &domain.StructuredAnswer{Answer: "a"},
	}
	retrieval := &mockRetrievalIndex{passages: richPassage()}
	svc := newTestService(llm, retrieval)

	collectEvents(t, svc.Ask(context.Background(), "first"))
	assert.Equal(t, 5, retrieval.lastK)

	updated := domain.DefaultAppSettings().Workflow
	updated.TopK = 3
	svc.UpdateWorkflowSettings(updated)

	collectEvents(t, svc.Ask(context.Background(), "second"))
	assert.Equal(t, 3, retrieval.lastK)

	// Out-of-range values are normalised, not applied raw
	updated.TopK = -10
	svc.UpdateWorkflowSettings(updated)
	assert.Equal(t, domain.DefaultAppSettings().Workflow.TopK, svc.workflow().TopK)
}

// TestAssembleContext tests budget trimming of whole passages
func TestAssembleContext(t *testing.T) {
	passage := func(id string, size int) domain.Passage {
		return domain.Passage{ID: id, Content: strings.Repeat("x", size)}
	}

	t.Run("all passages fit", func(t *testing.T) {
		got := assembleContext([]domain.Passage{passage("a", 10), passage("b", 10)}, 100)
		assert.Len(t, got, 21) // 10 + separator + 10
	})

	t.Run("tail passages dropped once over budget", func(t *testing.T) {
		got := assembleContext([]domain.Passage{
			passage("a", 800), passage("b", 800), passage("c", 800),
		}, 2000)
		assert.Len(t, got, 1601) // two passages and one separator
	})

	t.Run("first passage kept even over budget", func(t *testing.T) {
		got := assembleContext([]domain.Passage{passage("a", 5000)}, 2000)
		assert.Len(t, got, 5000)
	})

	t.Run("no passages", func(t *testing.T) {
		assert.Empty(t, assembleContext(nil, 2000))
	})
}
