package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/docq/internal/core/domain"
)

var statusUsage bool

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show a document's processing state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusUsage, "usage", false, "show the owner's usage counters")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}
	ctx := context.Background()

	if len(args) == 0 {
		if !statusUsage {
			return errors.New("provide a document id or --usage")
		}
		return printUsage(ctx, cmd)
	}

	doc, err := documentStore.GetDocument(ctx, args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document %s not found", args[0])
		}
		return fmt.Errorf("loading document: %w", err)
	}

	cmd.Printf("Document: %s\n", doc.ID)
	if doc.Title != "" {
		cmd.Printf("Title:    %s\n", doc.Title)
	}
	cmd.Printf("Status:   %s\n", doc.Status)
	cmd.Printf("Chunks:   %d\n", doc.ChunkCount)
	if doc.Chunking.Truncated {
		cmd.Printf("Note:     content truncated at %d of %d chunks\n",
			doc.Chunking.StoredCount, doc.Chunking.OriginalCount)
	}
	if doc.Error != nil {
		cmd.Printf("Error:    %s: %s (%s)\n", doc.Error.Type, doc.Error.Message,
			doc.Error.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if statusUsage {
		return printUsage(ctx, cmd)
	}
	return nil
}

func printUsage(ctx context.Context, cmd *cobra.Command) error {
	usage, err := documentStore.GetUsage(ctx, owner())
	if err != nil {
		return fmt.Errorf("loading usage: %w", err)
	}
	cmd.Printf("Usage for %s: %d documents, %d chunks\n",
		usage.OwnerID, usage.DocumentCount, usage.ChunkCount)
	return nil
}
