package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// fmtPrecision rounds elapsed times for terminal output.
const fmtPrecision = time.Millisecond

var (
	retrieveTopK     int
	retrieveMinScore float64
	retrieveJSON     bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [document-id] [question]",
	Short: "Retrieve the passages most relevant to a question",
	Long: `Embeds the question (served from cache when the same question was
asked before) and returns the most similar chunks of the document.`,
	Args: cobra.ExactArgs(2),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "n", 0, "maximum number of passages (default 5)")
	retrieveCmd.Flags().Float64Var(&retrieveMinScore, "min-score", 0, "similarity threshold (default 0.7)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	result, err := retrievalService.Retrieve(context.Background(), args[0], args[1], domain.RetrievalOptions{
		TopK:     retrieveTopK,
		MinScore: retrieveMinScore,
		OwnerID:  owner(),
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(result.Chunks) == 0 {
		cmd.Println("No relevant passages found.")
		return nil
	}

	cmd.Printf("Passages (cache hit: %t, %s):\n\n", result.CacheHit, result.Elapsed.Round(fmtPrecision))
	for i, c := range result.Chunks {
		cmd.Printf("  [%d] chunk %d (%.2f)\n", i+1, c.Index, c.Score)
		cmd.Printf("      %s\n\n", snippet(c.Content, 200))
	}
	return nil
}

// snippet trims content to at most n runes for terminal output.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
