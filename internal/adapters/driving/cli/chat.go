package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/quarry-labs/quarry/internal/adapters/driving/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch the interactive chat terminal",
	Long: `Launch the interactive terminal interface for asking questions.

Type a question and press Enter; stage progress is shown while the
workflow runs and the cited answer appears in the transcript.

Controls:
  Enter       - Send question
  PgUp/PgDn   - Scroll transcript
  Esc, Ctrl+C - Quit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	// Recover with a stack trace; a bare panic inside bubbletea leaves
	// the terminal in raw mode with no explanation.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in chat: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(&tui.Ports{Answer: answerService})
	if err != nil {
		return fmt.Errorf("failed to create chat interface: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface error: %w", err)
	}

	return nil
}
