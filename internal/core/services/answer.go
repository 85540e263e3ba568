package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
	"github.com/quarry-labs/quarry/internal/logger"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

// Default prompt templates. A PromptStore can override these; when it is
// absent or a template is missing, these are used as-is.
const (
	defaultRewritePrompt   = "Rewrite this query for better retrieval: %s"
	defaultSynthesisPrompt = "Answer based on context: %s\nQuery: %s\nProvide citations."
	defaultSafetyPrompt    = "Is this answer faithful to the context? Answer: %s\nContext: %s\nReply yes/no."
)

const (
	// refusalMessage replaces an answer the safety gate rejected.
	refusalMessage = "Unsafe response detected. Refusing."

	// noAnswerMessage terminates a request whose retrieved context was too
	// thin to answer from.
	noAnswerMessage = "No answer: insufficient context retrieved for this query."

	// unconfiguredAnswerFormat is the deterministic synthesis result when
	// no language model is configured.
	unconfiguredAnswerFormat = "Error: LLM not configured. Query: %s"
)

// eventBuffer lets the workflow run a little ahead of a slow consumer
// without blocking on every emit.
const eventBuffer = 8

// AnswerService runs the staged answer workflow: rewrite the question,
// retrieve context, synthesize a cited answer, gate it for faithfulness.
// Each Ask call is one independent request with its own event stream.
//
// The language model is optional. Without it the workflow still completes:
// rewriting passes the query through and synthesis produces a deterministic
// placeholder answer.
type AnswerService struct {
	llm       driven.LanguageModel
	retrieval driven.RetrievalIndex
	prompts   driven.PromptStore

	// mu guards the tunables so serve mode can swap them in while
	// requests are running.
	mu       sync.RWMutex
	settings domain.WorkflowSettings
	retry    *RetryPolicy
}

// NewAnswerService creates a new answer service.
// The llm parameter is optional (can be nil); retrieval is required.
func NewAnswerService(
	llm driven.LanguageModel,
	retrieval driven.RetrievalIndex,
	settings domain.WorkflowSettings,
) *AnswerService {
	settings = settings.Normalized()
	return &AnswerService{
		llm:       llm,
		retrieval: retrieval,
		settings:  settings,
		retry:     NewRetryPolicy(settings.RetryMaxAttempts, settings.RetryBaseDelay()),
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// UpdateWorkflowSettings replaces the workflow tunables. Stages that have
// already read their settings finish with the values they saw; new stages
// pick up the replacement.
func (s *AnswerService) UpdateWorkflowSettings(settings domain.WorkflowSettings) {
	settings = settings.Normalized()
	s.mu.Lock()
	s.settings = settings
	s.retry = NewRetryPolicy(settings.RetryMaxAttempts, settings.RetryBaseDelay())
	s.mu.Unlock()
}

// workflow returns the current tunables.
func (s *AnswerService) workflow() domain.WorkflowSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// retryPolicy returns the current retry policy for provider calls.
func (s *AnswerService) retryPolicy() *RetryPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retry
}

// Ask starts the workflow for one question and returns its event stream.
// The stream delivers stage progress in order and closes after exactly one
// terminal event. Cancelling ctx abandons the run and closes the stream.
func (s *AnswerService) Ask(ctx context.Context, query string) <-chan domain.WorkflowEvent {
	events := make(chan domain.WorkflowEvent, eventBuffer)
	go s.run(ctx, query, events)
	return events
}

// Answer runs the workflow to completion and returns the final answer.
func (s *AnswerService) Answer(ctx context.Context, query string) (string, error) {
	for ev := range s.Ask(ctx, query) {
		switch ev.Kind {
		case domain.EventWorkflowTerminated:
			return ev.Final, nil
		case domain.EventStageFailed:
			return "", ev.Err
		}
	}
	// The stream closed without a terminal event: the run was abandoned.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", context.Canceled
}

// run executes the stages for one request and closes the stream when done.
func (s *AnswerService) run(ctx context.Context, query string, events chan<- domain.WorkflowEvent) {
	defer close(events)

	requestID := uuid.NewString()
	emit := func(ev domain.WorkflowEvent) bool {
		// Prefer delivery while the buffer has room so a cancelled run
		// still surfaces the events it already produced; block only when
		// the consumer has genuinely fallen behind.
		select {
		case events <- ev:
			return true
		default:
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	logger.Section("Answer Workflow")
	logger.Debug("Request %s: %q", requestID, query)

	state := domain.NewRequestState(query)

	// Stage 1: rewrite the query for retrieval. Transient LLM failures are
	// retried with backoff; without an LLM the original query passes through.
	if !emit(domain.StageStarted(requestID, domain.StageRewrite)) {
		return
	}
	rewritten, err := s.rewrite(ctx, state.Query)
	if err != nil {
		logger.Warn("Request %s: rewrite failed: %v", requestID, err)
		emit(domain.StageFailed(requestID, domain.StageRewrite, &domain.WorkflowError{Stage: domain.StageRewrite, Err: err}))
		return
	}
	state = state.WithQuery(rewritten)
	logger.Debug("Request %s: rewritten query: %q", requestID, state.Query)
	if !emit(domain.StageCompleted(requestID, domain.StageRewrite, state)) {
		return
	}

	// Stage 2: retrieve context. Not retried, and not fatal either: an index
	// failure yields empty context, which takes the early exit below. Only a
	// cancelled caller fails the stage.
	if !emit(domain.StageStarted(requestID, domain.StageRetrieve)) {
		return
	}
	assembled, err := s.retrieve(ctx, state.Query)
	if err != nil {
		if ctx.Err() != nil {
			emit(domain.StageFailed(requestID, domain.StageRetrieve, &domain.WorkflowError{Stage: domain.StageRetrieve, Err: err}))
			return
		}
		logger.Warn("Request %s: retrieval failed (%v), continuing with empty context", requestID, err)
		assembled = ""
	}
	state = state.WithContext(assembled)
	logger.Debug("Request %s: assembled %d characters of context", requestID, len(assembled))
	if !emit(domain.StageCompleted(requestID, domain.StageRetrieve, state)) {
		return
	}

	// Thin context cannot ground an answer; exit before spending synthesis
	// calls on it.
	if threshold := s.workflow().ContextThreshold; len(state.Context) < threshold {
		logger.Debug("Request %s: context below threshold (%d < %d), exiting early",
			requestID, len(state.Context), threshold)
		emit(domain.WorkflowTerminated(requestID, noAnswerMessage))
		return
	}

	// Stage 3: synthesize an answer from the context.
	if !emit(domain.StageStarted(requestID, domain.StageSynthesize)) {
		return
	}
	answer, err := s.synthesize(ctx, state)
	if err != nil {
		logger.Warn("Request %s: synthesis failed: %v", requestID, err)
		emit(domain.StageFailed(requestID, domain.StageSynthesize, &domain.WorkflowError{Stage: domain.StageSynthesize, Err: err}))
		return
	}
	state = state.WithMessage(domain.AssistantMessage(answer))
	if !emit(domain.StageCompleted(requestID, domain.StageSynthesize, state)) {
		return
	}

	// Stage 4: gate the answer for faithfulness to the context.
	if !emit(domain.StageStarted(requestID, domain.StageSafetyCheck)) {
		return
	}
	if !s.answerIsSafe(ctx, requestID, answer, state.Context) {
		state = state.WithMessage(domain.AssistantMessage(refusalMessage))
	}
	if !emit(domain.StageCompleted(requestID, domain.StageSafetyCheck, state)) {
		return
	}

	final := state.LastMessage().Content
	logger.Debug("Request %s: terminated with %d character answer", requestID, len(final))
	emit(domain.WorkflowTerminated(requestID, final))
}

// rewrite asks the language model to rephrase the query for retrieval.
// Without a model the query passes through unchanged.
func (s *AnswerService) rewrite(ctx context.Context, query string) (string, error) {
	if s.llm == nil {
		logger.Debug("No language model, skipping query rewrite")
		return query, nil
	}

	prompt := fmt.Sprintf(s.prompt(driven.PromptQueryRewrite, defaultRewritePrompt), query)
	settings := s.workflow()

	var rewritten string
	err := s.retryPolicy().Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, settings.CallTimeout())
		defer cancel()

		response, err := s.llm.Complete(callCtx, prompt, driven.GenerateOptions{Temperature: 0.3})
		if err != nil {
			return err
		}
		rewritten = strings.TrimSpace(response)
		return nil
	})
	if err != nil {
		return "", err
	}
	if rewritten == "" {
		// A model that returns nothing should not wipe out the query.
		return query, nil
	}
	return rewritten, nil
}

// retrieve fetches the top passages and assembles them into a single
// context string within the configured character budget.
func (s *AnswerService) retrieve(ctx context.Context, query string) (string, error) {
	settings := s.workflow()
	callCtx, cancel := context.WithTimeout(ctx, settings.CallTimeout())
	defer cancel()

	passages, err := s.retrieval.Search(callCtx, query, settings.TopK)
	if err != nil {
		return "", err
	}
	logger.Debug("Retrieved %d passages", len(passages))

	return assembleContext(passages, settings.ContextBudget), nil
}

// assembleContext joins passage contents newline-separated, dropping whole
// passages from the tail once the character budget is exceeded. The first
// passage is always kept, over budget or not, so retrieval output is never
// silently discarded entirely.
func assembleContext(passages []domain.Passage, budget int) string {
	var b strings.Builder
	for i, p := range passages {
		addition := len(p.Content)
		if i > 0 {
			addition++ // separator
		}
		if i > 0 && b.Len()+addition > budget {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Content)
	}
	return b.String()
}

// synthesize produces the answer for the assembled context. A structured
// completion is attempted first; if the model's output does not match the
// expected shape, the same prompt is re-run once as a plain completion and
// its text is used verbatim.
func (s *AnswerService) synthesize(ctx context.Context, state domain.RequestState) (string, error) {
	if s.llm == nil {
		logger.Debug("No language model, producing placeholder answer")
		return fmt.Sprintf(unconfiguredAnswerFormat, state.Query), nil
	}

	prompt := fmt.Sprintf(s.prompt(driven.PromptAnswerSynthesis, defaultSynthesisPrompt), state.Context, state.Query)
	settings := s.workflow()

	callCtx, cancel := context.WithTimeout(ctx, settings.CallTimeout())
	defer cancel()

	var structured domain.StructuredAnswer
	err := s.llm.CompleteStructured(callCtx, prompt, &structured)
	if err == nil {
		return structured.String(), nil
	}

	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		return "", err
	}

	logger.Debug("Structured synthesis failed (%v), falling back to plain completion", err)
	fallbackCtx, cancelFallback := context.WithTimeout(ctx, settings.CallTimeout())
	defer cancelFallback()

	response, err := s.llm.Complete(fallbackCtx, prompt, driven.GenerateOptions{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// answerIsSafe judges whether the answer is faithful to the context.
// The judgment asks for a literal yes/no; "yes" allows, "no" refuses,
// and anything else - a failed call, a rambling reply, no model at all -
// falls back to the configured fail-open policy.
func (s *AnswerService) answerIsSafe(ctx context.Context, requestID, answer, contextText string) bool {
	if s.llm == nil {
		logger.Debug("No language model, skipping safety check")
		return true
	}

	prompt := fmt.Sprintf(s.prompt(driven.PromptSafetyCheck, defaultSafetyPrompt), answer, contextText)
	settings := s.workflow()

	callCtx, cancel := context.WithTimeout(ctx, settings.CallTimeout())
	defer cancel()

	response, err := s.llm.Complete(callCtx, prompt, driven.GenerateOptions{MaxTokens: 8})
	if err != nil {
		logger.Warn("Request %s: safety check failed (%v), fail-open=%t", requestID, err, settings.SafetyFailOpen)
		return settings.SafetyFailOpen
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes":
		return true
	case "no":
		logger.Info("Request %s: answer refused by safety check", requestID)
		return false
	default:
		logger.Warn("Request %s: safety check returned %q, fail-open=%t", requestID, response, settings.SafetyFailOpen)
		return settings.SafetyFailOpen
	}
}

// prompt loads a template by name, falling back to the built-in default.
func (s *AnswerService) prompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	template, err := s.prompts.Load(name)
	if err != nil || template == "" {
		return fallback
	}
	return template
}
