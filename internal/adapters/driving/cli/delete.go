package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/docq/internal/core/domain"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document and its stored chunks",
	Long: `Removes the document's vectors, its uploaded source file and its
metadata row. Vector removal failures abort the deletion; a failed
file cleanup is reported as a warning and the document is still
deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if deletionService == nil {
		return errors.New("deletion service not configured")
	}

	report, err := deletionService.DeleteDocument(context.Background(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document %s not found", args[0])
		}
		return fmt.Errorf("deletion failed: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	for _, w := range report.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}
	return nil
}
