package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest [target]",
	Short: "Ingest documents into the corpus",
	Long: `Loads documents from a source, splits them into overlapping chunks,
computes embeddings when an embedding provider is configured, and indexes
everything for retrieval.

The target is a URL, a local path, or a GitHub repository
(https://github.com/owner/repo or owner/repo). The source type is
inferred from the target; use --source to override.

Examples:
  quarry ingest https://en.wikipedia.org/wiki/Geology
  quarry ingest ~/notes
  quarry ingest golang/go --source github`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSource, "source", "s", "",
		"source type: web, filesystem or github (default: inferred)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	target := args[0]

	var source domain.SourceType
	if ingestSource == "" {
		source = inferSourceType(target)
	} else {
		source = domain.SourceType(ingestSource)
		if !source.IsValid() {
			return fmt.Errorf("invalid source type %q (want web, filesystem or github)", ingestSource)
		}
	}

	ctx := cmd.Context()
	cmd.Printf("Ingesting %s (%s)...\n", target, source)

	report, err := ingestService.Ingest(ctx, source, target)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %d chunks from %d documents in %s.\n",
		report.Chunks, report.Documents, report.Duration.Round(time.Millisecond))
	if report.Embedded == 0 && report.Chunks > 0 {
		cmd.Println("No embedding provider configured; chunks are indexed for keyword search only.")
	}
	if report.Skipped > 0 {
		cmd.Printf("Skipped %d inputs (binary, oversized or unreadable).\n", report.Skipped)
	}

	// Best-effort corpus summary.
	if stats, err := ingestService.Stats(ctx); err == nil {
		cmd.Printf("Corpus: %d documents, %d chunks.\n", stats.Documents, stats.Chunks)
	}

	return nil
}

// inferSourceType guesses the connector from the target's shape. URLs on
// a github.com host and owner/repo shorthands map to the GitHub loader;
// other URLs are web pages; everything else is a local path.
func inferSourceType(target string) domain.SourceType {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		rest := strings.TrimPrefix(strings.TrimPrefix(target, "https://"), "http://")
		if strings.HasPrefix(rest, "github.com/") || strings.HasPrefix(rest, "www.github.com/") {
			return domain.SourceTypeGitHub
		}
		return domain.SourceTypeWeb
	}

	// owner/repo shorthand: exactly one slash, no path separators that
	// exist locally, no leading dot or tilde.
	if !strings.HasPrefix(target, ".") && !strings.HasPrefix(target, "~") && !strings.HasPrefix(target, "/") {
		parts := strings.Split(target, "/")
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return domain.SourceTypeGitHub
		}
	}

	return domain.SourceTypeFilesystem
}
