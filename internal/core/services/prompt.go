package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// Prompt budgeting defaults.
const (
	// DefaultTokenBudget bounds the retrieved context block.
	DefaultTokenBudget = 2000

	// DefaultContextWindow is the model's total context limit used by
	// ValidateContext.
	DefaultContextWindow = 8192
)

// citationOverheadTokens approximates the "[n] " marker and blank
// line around each passage.
const citationOverheadTokens = 6

const systemPromptHeader = `You are a helpful assistant answering questions about a document.
Answer using ONLY the numbered context passages below. Cite every fact
by its passage number in square brackets, e.g. [2]. If the passages do
not contain the answer, say you cannot find it in the document.

Context passages:
`

// BuiltPrompt is the assembled, budgeted context.
type BuiltPrompt struct {
	// SystemPrompt is the full system message, citations included.
	SystemPrompt string

	// EstimatedTokens is the heuristic token count of SystemPrompt.
	EstimatedTokens int

	// Citations is the number of passages included.
	Citations int
}

// ContextValidation reports whether a full request fits the model's
// context window. It never fails; callers decide whether to truncate
// further or reject.
type ContextValidation struct {
	Valid       bool
	TotalTokens int
	Limit       int
}

// PromptBuilder assembles a token-budgeted, citation-numbered context
// from retrieved chunks.
type PromptBuilder struct {
	tokenBudget   int
	contextWindow int
}

// NewPromptBuilder creates a builder. Zero values select the defaults.
func NewPromptBuilder(tokenBudget, contextWindow int) *PromptBuilder {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	return &PromptBuilder{tokenBudget: tokenBudget, contextWindow: contextWindow}
}

// EstimateTokens approximates the token count of text. CJK-dense text
// runs about one token per 2 characters, Latin-dense about one per 4.
// Heuristic only, not tokenizer-accurate.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}

	tokens := (cjk+1)/2 + (other+3)/4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // extension A
		return true
	case r >= 0x3000 && r <= 0x30FF: // CJK punctuation, kana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	case r >= 0xF900 && r <= 0xFAFF: // compatibility ideographs
		return true
	default:
		return false
	}
}

// Build assembles the system prompt from retrieved chunks. When the
// chunks exceed the token budget, the lowest-scored ones are dropped
// first; the kept chunks preserve their original relative order and
// are renumbered 1..k.
func (b *PromptBuilder) Build(chunks []domain.ScoredChunk) BuiltPrompt {
	kept := b.fitToBudget(chunks)

	var sb strings.Builder
	sb.WriteString(systemPromptHeader)
	for i, ch := range kept {
		sb.WriteString(fmt.Sprintf("\n[%d] %s\n", i+1, ch.Content))
	}

	prompt := sb.String()
	return BuiltPrompt{
		SystemPrompt:    prompt,
		EstimatedTokens: EstimateTokens(prompt),
		Citations:       len(kept),
	}
}

// ValidateContext checks system prompt + user message + rolling
// history against the model's total context limit.
func (b *PromptBuilder) ValidateContext(system, userMessage string, history []domain.ChatMessage) ContextValidation {
	total := EstimateTokens(system) + EstimateTokens(userMessage)
	for _, msg := range history {
		total += EstimateTokens(msg.Content)
	}

	return ContextValidation{
		Valid:       total <= b.contextWindow,
		TotalTokens: total,
		Limit:       b.contextWindow,
	}
}

// fitToBudget drops chunks from the lowest-score end until the
// running total fits the budget, preserving input order among the
// kept chunks.
func (b *PromptBuilder) fitToBudget(chunks []domain.ScoredChunk) []domain.ScoredChunk {
	// The budget covers the retrieved passages; the fixed header is
	// accounted for by ValidateContext against the full window.
	costs := make([]int, len(chunks))
	total := 0
	for i, ch := range chunks {
		costs[i] = EstimateTokens(ch.Content) + citationOverheadTokens
		total += costs[i]
	}

	drop := make(map[int]bool)
	if total > b.tokenBudget {
		// Positions ordered worst-first.
		byScore := make([]int, len(chunks))
		for i := range byScore {
			byScore[i] = i
		}
		sort.SliceStable(byScore, func(a, c int) bool {
			return chunks[byScore[a]].Score < chunks[byScore[c]].Score
		})

		for _, pos := range byScore {
			if total <= b.tokenBudget {
				break
			}
			drop[pos] = true
			total -= costs[pos]
		}
	}

	kept := make([]domain.ScoredChunk, 0, len(chunks)-len(drop))
	for i, ch := range chunks {
		if !drop[i] {
			kept = append(kept, ch)
		}
	}
	return kept
}
