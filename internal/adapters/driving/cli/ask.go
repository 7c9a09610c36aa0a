package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
	"github.com/veritas-labs/docq/internal/logger"
)

var (
	askTopK     int
	askMinScore float64
	askNoStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask [document-id] [question]",
	Short: "Ask a question about a document",
	Long: `Retrieves the passages most relevant to the question, builds a
citation-numbered prompt within the token budget, and streams the
model's answer.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "n", 0, "maximum number of passages (default 5)")
	askCmd.Flags().Float64Var(&askMinScore, "min-score", 0, "similarity threshold (default 0.7)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "wait for the full answer instead of streaming")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if retrievalService == nil || llmService == nil || promptBuilder == nil {
		return errors.New("services not configured")
	}

	documentID, question := args[0], args[1]
	ctx := context.Background()

	result, err := retrievalService.Retrieve(ctx, documentID, question, domain.RetrievalOptions{
		TopK:     askTopK,
		MinScore: askMinScore,
		OwnerID:  owner(),
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if len(result.Chunks) == 0 {
		cmd.Println("No relevant passages found; cannot answer from this document.")
		return nil
	}

	prompt := promptBuilder.Build(result.Chunks)
	logger.Debug("prompt holds %d citations, ~%d tokens", prompt.Citations, prompt.EstimatedTokens)

	validation := promptBuilder.ValidateContext(prompt.SystemPrompt, question, nil)
	if !validation.Valid {
		return fmt.Errorf("request of ~%d tokens exceeds the %d-token context window",
			validation.TotalTokens, validation.Limit)
	}

	messages := []domain.ChatMessage{
		{Role: "system", Content: prompt.SystemPrompt},
		{Role: "user", Content: question},
	}
	opts := driven.ChatOptions{}
	if cfg != nil {
		opts.MaxTokens = cfg.LLM.MaxTokens
		opts.Temperature = cfg.LLM.Temperature
	}

	if askNoStream {
		answer, err := llmService.Chat(ctx, messages, opts)
		if err != nil {
			return fmt.Errorf("answer generation failed: %w", err)
		}
		cmd.Println(answer)
	} else {
		stream, err := llmService.ChatStream(ctx, messages, opts)
		if err != nil {
			return fmt.Errorf("answer generation failed: %w", err)
		}
		for chunk := range stream {
			if chunk.Err != nil {
				cmd.Println()
				return fmt.Errorf("answer stream failed: %w", chunk.Err)
			}
			cmd.Print(chunk.Content)
		}
		cmd.Println()
	}

	cmd.Printf("\nSources (%d passages", prompt.Citations)
	if result.CacheHit {
		cmd.Print(", cached query")
	}
	cmd.Println("):")
	for i, c := range result.Chunks {
		if i >= prompt.Citations {
			break
		}
		cmd.Printf("  [%d] chunk %d (%.2f)\n", i+1, c.Index, c.Score)
	}
	return nil
}
