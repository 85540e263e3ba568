package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested corpus",
	Long: `Runs the answer workflow for a single question: the query is
rewritten for retrieval, relevant passages are fetched and reranked,
and a cited answer is synthesised and checked against its sources.

Stage transitions are printed as the workflow progresses, followed by
the answer. Multi-word questions do not need quoting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question is empty")
	}

	for ev := range answerService.Ask(cmd.Context(), question) {
		switch ev.Kind {
		case domain.EventStageStarted:
			cmd.Printf("[%s]\n", ev.Stage)

		case domain.EventWorkflowTerminated:
			cmd.Println()
			cmd.Println(ev.Final)
			return nil

		case domain.EventStageFailed:
			return fmt.Errorf("workflow failed at %s: %w", ev.Stage, ev.Err)
		}
	}

	return errors.New("answer stream ended unexpectedly")
}
