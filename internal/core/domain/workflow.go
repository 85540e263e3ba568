package domain

// WorkflowStage identifies a state of the answer workflow state machine.
type WorkflowStage string

// Workflow stages, in execution order. StageTerminated is the single
// accepting state; every run ends there.
const (
	// StageRewrite rewrites the user query for better retrieval.
	StageRewrite WorkflowStage = "rewrite"

	// StageRetrieve fetches and reranks supporting passages.
	StageRetrieve WorkflowStage = "retrieve"

	// StageSynthesize produces a cited answer from query and context.
	StageSynthesize WorkflowStage = "synthesize"

	// StageSafetyCheck validates the answer's faithfulness to the context.
	StageSafetyCheck WorkflowStage = "safety"

	// StageTerminated is the terminal state.
	StageTerminated WorkflowStage = "terminated"
)

// IsValid returns true if the stage is recognised.
func (s WorkflowStage) IsValid() bool {
	switch s {
	case StageRewrite, StageRetrieve, StageSynthesize, StageSafetyCheck, StageTerminated:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s WorkflowStage) String() string {
	return string(s)
}

// EventKind tags a WorkflowEvent variant.
type EventKind string

// Workflow event variants.
const (
	// EventStageStarted is emitted before a stage function runs.
	EventStageStarted EventKind = "stage_started"

	// EventStageCompleted is emitted after a stage function returns,
	// carrying a snapshot of the post-stage state.
	EventStageCompleted EventKind = "stage_completed"

	// EventStageFailed is emitted when a stage fails after exhausting its
	// retries. It is the final event of a failed run.
	EventStageFailed EventKind = "stage_failed"

	// EventWorkflowTerminated is emitted on normal completion (including
	// the early exit), carrying the final message content. It is the final
	// event of a successful run.
	EventWorkflowTerminated EventKind = "workflow_terminated"
)

// WorkflowEvent is a tagged notification describing orchestrator progress.
// Events are produced only by the orchestrator and consumed by stream
// adapters; within one request they arrive in strict stage order, and
// exactly one terminal event (stage_failed or workflow_terminated) closes
// every run.
type WorkflowEvent struct {
	// Kind discriminates the variant.
	Kind EventKind

	// RequestID ties the event to one workflow run.
	RequestID string

	// Stage is the stage the event refers to. Unset for workflow_terminated.
	Stage WorkflowStage

	// State is a snapshot of the request state after the stage completed.
	// Only set on stage_completed.
	State *RequestState

	// Err is the stage failure. Only set on stage_failed.
	Err error

	// Final is the final message content. Only set on workflow_terminated.
	Final string
}

// Terminal returns true if this event closes the stream.
func (e WorkflowEvent) Terminal() bool {
	return e.Kind == EventStageFailed || e.Kind == EventWorkflowTerminated
}

// StageStarted builds a stage_started event.
func StageStarted(requestID string, stage WorkflowStage) WorkflowEvent {
	return WorkflowEvent{Kind: EventStageStarted, RequestID: requestID, Stage: stage}
}

// StageCompleted builds a stage_completed event with a state snapshot.
// The state is captured by value; later stage transitions never alter it.
func StageCompleted(requestID string, stage WorkflowStage, state RequestState) WorkflowEvent {
	return WorkflowEvent{Kind: EventStageCompleted, RequestID: requestID, Stage: stage, State: &state}
}

// StageFailed builds a stage_failed event.
func StageFailed(requestID string, stage WorkflowStage, err error) WorkflowEvent {
	return WorkflowEvent{Kind: EventStageFailed, RequestID: requestID, Stage: stage, Err: err}
}

// WorkflowTerminated builds a workflow_terminated event carrying the final
// message content.
func WorkflowTerminated(requestID string, final string) WorkflowEvent {
	return WorkflowEvent{Kind: EventWorkflowTerminated, RequestID: requestID, Final: final}
}
