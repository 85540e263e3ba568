package driving

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// AnswerService runs the staged answer workflow for external actors.
type AnswerService interface {
	// Ask starts the workflow for one question and returns its event
	// stream. The channel delivers stage progress in order and is closed
	// after exactly one terminal event: a workflow_terminated carrying the
	// final answer, or a stage_failed carrying the error. Cancelling ctx
	// abandons the run; the channel still closes.
	//
	// Each call is an independent request. Ask never blocks the caller on
	// workflow execution - consumption happens at the caller's pace.
	Ask(ctx context.Context, query string) <-chan domain.WorkflowEvent

	// Answer runs the workflow to completion and returns the final answer.
	// This is the blocking convenience form of Ask for callers that do not
	// stream (CLI one-shots, MCP tools).
	Answer(ctx context.Context, query string) (string, error)
}
