package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/docq/internal/core/domain"
)

func TestEstimateTokensLatin(t *testing.T) {
	// 40 Latin characters ≈ 10 tokens.
	text := strings.Repeat("abcd", 10)
	assert.Equal(t, 10, EstimateTokens(text))
}

func TestEstimateTokensCJK(t *testing.T) {
	// 40 CJK characters ≈ 20 tokens: CJK is denser per character.
	text := strings.Repeat("检索", 20)
	assert.Equal(t, 20, EstimateTokens(text))
}

func TestEstimateTokensMixed(t *testing.T) {
	cjk := strings.Repeat("字", 10)  // ≈ 5
	latin := strings.Repeat("x", 8) // ≈ 2
	assert.Equal(t, 7, EstimateTokens(cjk+latin))
}

func TestEstimateTokensEmpty(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
}

func TestBuildNumbersCitations(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	prompt := b.Build([]domain.ScoredChunk{
		{Content: "first passage", Score: 0.9},
		{Content: "second passage", Score: 0.8},
		{Content: "third passage", Score: 0.7},
	})

	assert.Equal(t, 3, prompt.Citations)
	assert.Contains(t, prompt.SystemPrompt, "[1] first passage")
	assert.Contains(t, prompt.SystemPrompt, "[2] second passage")
	assert.Contains(t, prompt.SystemPrompt, "[3] third passage")
	assert.Contains(t, prompt.SystemPrompt, "square brackets")
	assert.Greater(t, prompt.EstimatedTokens, 0)
}

func TestBuildEmptyChunks(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	prompt := b.Build(nil)
	assert.Zero(t, prompt.Citations)
	assert.Contains(t, prompt.SystemPrompt, "Context passages:")
}

func TestBuildDropsLowestScoresFirst(t *testing.T) {
	// Each chunk ≈ 100/4 + overhead tokens; a tight budget forces
	// drops. The lowest-scored chunk (middle position) must go first
	// and the survivors keep their original relative order.
	big := strings.Repeat("word ", 20) // 100 chars ≈ 25 tokens

	b := NewPromptBuilder(70, 0)
	prompt := b.Build([]domain.ScoredChunk{
		{Content: "A " + big, Score: 0.95},
		{Content: "B " + big, Score: 0.55},
		{Content: "C " + big, Score: 0.90},
	})

	assert.Less(t, prompt.Citations, 3)
	assert.Contains(t, prompt.SystemPrompt, "A word")
	assert.NotContains(t, prompt.SystemPrompt, "B word")

	if prompt.Citations == 2 {
		// A kept its place ahead of C.
		aPos := strings.Index(prompt.SystemPrompt, "[1] A")
		cPos := strings.Index(prompt.SystemPrompt, "[2] C")
		assert.GreaterOrEqual(t, aPos, 0)
		assert.Greater(t, cPos, aPos)
	}
}

func TestBuildWithinBudgetKeepsAll(t *testing.T) {
	b := NewPromptBuilder(10000, 0)

	prompt := b.Build([]domain.ScoredChunk{
		{Content: "alpha", Score: 0.9},
		{Content: "beta", Score: 0.1},
	})
	assert.Equal(t, 2, prompt.Citations)
}

func TestValidateContext(t *testing.T) {
	b := NewPromptBuilder(0, 100)

	v := b.ValidateContext(strings.Repeat("abcd", 50), "short?", nil)
	require.False(t, v.Valid)
	assert.Equal(t, 100, v.Limit)
	assert.Greater(t, v.TotalTokens, 100)

	v = b.ValidateContext("tiny system", "short?", nil)
	assert.True(t, v.Valid)
}

func TestValidateContextCountsHistory(t *testing.T) {
	b := NewPromptBuilder(0, 50)

	history := []domain.ChatMessage{
		{Role: "user", Content: strings.Repeat("abcd", 30)},
		{Role: "assistant", Content: strings.Repeat("abcd", 30)},
	}

	v := b.ValidateContext("sys", "q", history)
	assert.False(t, v.Valid)
	assert.GreaterOrEqual(t, v.TotalTokens, 60)
}
