// Package cli implements the quarry command-line interface using cobra.
// Commands talk to the core exclusively through driving ports; the
// package-level service variables are populated by bootstrapServices on
// first use and swapped for mocks in tests.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/quarry-labs/quarry/internal/core/ports/driving"
	"github.com/quarry-labs/quarry/internal/logger"
)

// version is set via ldflags at build time.
var version = "dev"

// verbose enables debug logging for all commands.
var verbose bool

// Services behind the driving ports. Populated by bootstrapServices;
// tests replace them directly.
var (
	answerService   driving.AnswerService
	ingestService   driving.IngestService
	searchService   driving.SearchService
	settingsService driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Question answering over your own documents",
	Long: `Quarry answers questions about documents you ingest.

It retrieves relevant passages from a local corpus using keyword and
semantic search, optionally reranks them with a cross-encoder, and
synthesises a cited answer with a language model. All state lives under
~/.quarry.

Get started:
  quarry settings wizard          configure providers
  quarry ingest https://...       build the corpus
  quarry ask "your question"      get a cited answer`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return bootstrapServices(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and releases resources afterwards.
func Execute() error {
	defer shutdownServices()
	return rootCmd.Execute()
}
