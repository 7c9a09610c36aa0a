package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/normalize"
)

var (
	ingestTitle       string
	ingestStoragePath string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document for question answering",
	Long: `Reads a text file, splits it into overlapping chunks, embeds the
chunks and stores them for retrieval. Use "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (default: file name)")
	ingestCmd.Flags().StringVar(&ingestStoragePath, "storage-path", "", "object storage path of the uploaded source file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if documentStore == nil || ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	path := args[0]

	var content []byte
	var err error
	if path == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	title := ingestTitle
	if title == "" && path != "-" {
		title = filepath.Base(path)
	}

	text := normalize.Text(normalize.Detect(path), content)

	doc := &domain.Document{
		ID:          uuid.NewString(),
		OwnerID:     owner(),
		Title:       title,
		Status:      domain.StatusPending,
		Content:     text,
		StoragePath: ingestStoragePath,
	}

	ctx := context.Background()
	if err := documentStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if err := ingestionService.ProcessDocument(ctx, doc.ID); err != nil {
		cmd.PrintErrf("Ingestion failed: %v\n", err)
		cmd.Printf("Document ID: %s (status: %s)\n", doc.ID, domain.StatusFailed)
		return err
	}

	stored, err := documentStore.GetDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("loading stored document: %w", err)
	}

	cmd.Printf("Document ID: %s\n", stored.ID)
	cmd.Printf("Status:      %s\n", stored.Status)
	cmd.Printf("Chunks:      %d\n", stored.ChunkCount)
	if stored.Chunking.Truncated {
		cmd.Printf("Note:        content truncated at %d of %d chunks\n",
			stored.Chunking.StoredCount, stored.Chunking.OriginalCount)
	}
	return nil
}
