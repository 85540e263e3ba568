package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
	Long:  `List, inspect, or remove documents from the corpus.`,
	RunE:  runDocumentsList,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Print a document's content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document from the corpus",
	Long:  `Deletes the document along with its chunks, keyword index entries and vectors.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsRemove,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsRemoveCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := cmd.Context()
	docs, err := ingestService.Documents(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested yet. Run 'quarry ingest' to build the corpus.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		title := docs[i].Title
		if title == "" {
			title = docs[i].URI
		}
		cmd.Printf("  [%d] %s (%s)\n", i+1, title, docs[i].SourceType)
		cmd.Printf("      ID:  %s\n", docs[i].ID)
		cmd.Printf("      URI: %s\n", docs[i].URI)
		cmd.Println()
	}

	if stats, err := ingestService.Stats(ctx); err == nil {
		cmd.Printf("%d documents, %d chunks indexed.\n", stats.Documents, stats.Chunks)
	}

	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	doc, err := ingestService.Document(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}

	cmd.Printf("Title:  %s\n", doc.Title)
	cmd.Printf("Source: %s\n", doc.SourceType)
	cmd.Printf("URI:    %s\n", doc.URI)
	cmd.Println()
	cmd.Println(doc.Content)
	return nil
}

func runDocumentsRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	documentID := args[0]
	if err := ingestService.Remove(cmd.Context(), documentID); err != nil {
		return fmt.Errorf("removing document: %w", err)
	}

	cmd.Printf("Document %s removed.\n", documentID)
	return nil
}
