package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// workflowEventMsg carries one orchestrator event plus the stream it came
// from, so the next read can be scheduled.
type workflowEventMsg struct {
	event  domain.WorkflowEvent
	stream <-chan domain.WorkflowEvent
}

// streamClosedMsg signals the event stream ended without a terminal event.
type streamClosedMsg struct{}

// waitForEvent reads the next workflow event as a command. The read blocks
// inside the command goroutine, never in Update.
func waitForEvent(stream <-chan domain.WorkflowEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-stream
		if !ok {
			return streamClosedMsg{}
		}
		return workflowEventMsg{event: ev, stream: stream}
	}
}
