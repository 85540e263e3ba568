package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// entryRole distinguishes who a transcript entry belongs to.
type entryRole int

const (
	roleUser entryRole = iota
	roleAssistant
	roleError
)

// entry is one line of the chat transcript.
type entry struct {
	role    entryRole
	content string
}

// App is the chat TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *Styles

	// keymap holds the keybindings.
	keymap *KeyMap

	// input is the question entry field.
	input textinput.Model

	// viewport scrolls the transcript.
	viewport viewport.Model

	// spinner animates while a workflow runs.
	spinner spinner.Model

	// transcript is the conversation so far.
	transcript []entry

	// busy is true while a workflow run is in flight.
	busy bool

	// stage is the workflow stage currently running. Empty between runs.
	stage domain.WorkflowStage

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates the first WindowSizeMsg has arrived.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask a question about your corpus..."
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(s.Stage),
	)

	return &App{
		ports:    ports,
		ctx:      context.Background(),
		styles:   s,
		keymap:   DefaultKeyMap(),
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
	}, nil
}

// WithContext sets the context used for workflow runs.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// Init initialises the application.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the chat view.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		a.ready = true
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keymap.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keymap.Submit):
			return a, a.submit()
		case key.Matches(msg, a.keymap.ScrollUp), key.Matches(msg, a.keymap.ScrollDown):
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}
		// Everything else is typing.
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case workflowEventMsg:
		return a, a.handleWorkflowEvent(msg)

	case streamClosedMsg:
		a.busy = false
		a.stage = ""
		return a, nil
	}

	// Forward remaining messages (cursor blink and the like) to the
	// components.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// submit starts a workflow run for the typed question. Empty input and
// in-flight runs are ignored.
func (a *App) submit() tea.Cmd {
	question := strings.TrimSpace(a.input.Value())
	if question == "" || a.busy {
		return nil
	}

	a.transcript = append(a.transcript, entry{role: roleUser, content: question})
	a.input.Reset()
	a.busy = true
	a.stage = ""
	a.refreshViewport()

	stream := a.ports.Answer.Ask(a.ctx, question)
	return tea.Batch(a.spinner.Tick, waitForEvent(stream))
}

// handleWorkflowEvent folds one orchestrator event into the view and
// schedules the next read until a terminal event arrives.
func (a *App) handleWorkflowEvent(msg workflowEventMsg) tea.Cmd {
	switch ev := msg.event; ev.Kind {
	case domain.EventStageStarted:
		a.stage = ev.Stage

	case domain.EventWorkflowTerminated:
		a.transcript = append(a.transcript, entry{role: roleAssistant, content: ev.Final})
		a.busy = false
		a.stage = ""
		a.refreshViewport()
		return nil

	case domain.EventStageFailed:
		a.transcript = append(a.transcript, entry{role: roleError, content: ev.Err.Error()})
		a.busy = false
		a.stage = ""
		a.refreshViewport()
		return nil
	}

	return waitForEvent(msg.stream)
}

// View renders the chat view.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var status string
	switch {
	case a.busy:
		status = a.spinner.View() + " " + a.styles.Stage.Render(stageLabel(a.stage)+"...")
	default:
		status = a.styles.Help.Render(a.helpLine())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.styles.Title.Render("Quarry Chat"),
		a.viewport.View(),
		status,
		a.styles.InputField.Render(a.input.View()),
	)
}

// resize recalculates component dimensions from the terminal size.
func (a *App) resize(width, height int) {
	a.width = width
	a.height = height

	a.input.Width = max(20, width-8)

	// Title, status and the bordered input each take fixed rows.
	const chrome = 5
	vpHeight := height - chrome
	if vpHeight < 3 {
		vpHeight = 3
	}
	a.viewport.Width = max(20, width)
	a.viewport.Height = vpHeight
	a.refreshViewport()
}

// refreshViewport re-renders the transcript and keeps the latest entry
// visible.
func (a *App) refreshViewport() {
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

// renderTranscript renders the conversation, wrapped to the viewport width.
func (a *App) renderTranscript() string {
	if len(a.transcript) == 0 {
		return a.styles.Muted.Render("Ask a question about your corpus to get started.")
	}

	var b strings.Builder
	for i, e := range a.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(a.styles.You.Render("You: ") + e.content)
		case roleAssistant:
			b.WriteString(a.styles.Answer.Render("Quarry: ") + e.content)
		case roleError:
			b.WriteString(a.styles.Error.Render("Error: " + e.content))
		}
	}

	width := a.viewport.Width
	if width <= 0 {
		return b.String()
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

// helpLine renders the keybinding hints.
func (a *App) helpLine() string {
	bindings := a.keymap.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// stageLabel translates a workflow stage into a progress message.
func stageLabel(stage domain.WorkflowStage) string {
	switch stage {
	case domain.StageRewrite:
		return "Rewriting query"
	case domain.StageRetrieve:
		return "Retrieving context"
	case domain.StageSynthesize:
		return "Synthesizing answer"
	case domain.StageSafetyCheck:
		return "Checking answer"
	default:
		return "Thinking"
	}
}
