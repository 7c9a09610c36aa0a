// Package chunker splits document text into overlapping, size-bounded
// chunks for embedding. Splitting is recursive by separator
// preference (paragraph > line > sentence > character) and operates
// on runes, so multi-byte content is never cut mid-codepoint.
package chunker

import (
	"strings"

	"github.com/google/uuid"

	"github.com/veritas-labs/docq/internal/core/domain"
)

// DefaultChunkSize is the default chunk size in runes.
const DefaultChunkSize = 1000

// DefaultOverlap is the default overlap between consecutive chunks in runes.
const DefaultOverlap = 200

// DefaultMaxChunks is the ceiling on chunks per document. Chunks
// beyond it are dropped and the document records the truncation.
const DefaultMaxChunks = 10000

// sentence-ending runes, Latin and CJK.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, ';': true,
	'。': true, '！': true, '？': true, '；': true,
}

// Splitter splits text into chunks.
type Splitter struct {
	chunkSize int
	overlap   int
	maxChunks int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithMaxChunks sets the per-document chunk ceiling.
func WithMaxChunks(maxChunks int) Option {
	return func(s *Splitter) {
		if maxChunks > 0 {
			s.maxChunks = maxChunks
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		maxChunks: DefaultMaxChunks,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for forward progress.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Result is the outcome of splitting one document.
type Result struct {
	// Chunks are the ordered chunks, Index 0..n-1 contiguous.
	Chunks []domain.Chunk

	// Stats records truncation bookkeeping.
	Stats domain.ChunkStats
}

// Split splits content into chunks for the given document.
// Fails with EMPTY_CONTENT when content is empty or whitespace-only.
func (s *Splitter) Split(documentID, content string) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewPipelineError(domain.CodeEmptyContent, "document content is empty")
	}

	runes := []rune(content)
	cuts := s.cutPoints(runes)

	originalCount := len(cuts) - 1
	storedCount := originalCount
	truncated := false
	if originalCount > s.maxChunks {
		cuts = cuts[:s.maxChunks+1]
		storedCount = s.maxChunks
		truncated = true
	}

	chunks := make([]domain.Chunk, 0, storedCount)
	for i := 0; i < storedCount; i++ {
		start := cuts[i]
		if over := start - s.overlap; i > 0 && over >= 0 {
			start = over
		} else if i > 0 {
			start = 0
		}

		text := string(runes[start:cuts[i+1]])
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Index:      i,
			Content:    text,
			Length:     cuts[i+1] - start,
			Metadata: map[string]any{
				"start": start,
				"end":   cuts[i+1],
			},
		})
	}

	return &Result{
		Chunks: chunks,
		Stats: domain.ChunkStats{
			Truncated:     truncated,
			OriginalCount: originalCount,
			StoredCount:   storedCount,
		},
	}, nil
}

// cutPoints returns the ascending rune offsets where the text is cut,
// starting with 0 and ending with len(runes). Chunk i spans
// cuts[i]..cuts[i+1] before overlap is applied.
func (s *Splitter) cutPoints(runes []rune) []int {
	n := len(runes)
	cuts := []int{0}

	cur := 0
	for cur < n {
		end := cur + s.chunkSize
		if end >= n {
			cuts = append(cuts, n)
			break
		}
		cut := s.splitPoint(runes, cur, end)
		cuts = append(cuts, cut)
		cur = cut
	}

	return cuts
}

// splitPoint picks the best cut in (cur, end]. Preference: after the
// last paragraph break in the window, then the last line break, then
// the last sentence end, then a hard cut at end.
func (s *Splitter) splitPoint(runes []rune, cur, end int) int {
	// Don't cut in the first half of the window; tiny chunks embed
	// poorly and inflate the chunk count.
	floor := cur + s.chunkSize/2

	lastPara, lastLine, lastSentence := -1, -1, -1
	for i := cur + 1; i < end; i++ {
		cut := i + 1
		if cut <= floor || cut > end {
			continue
		}
		switch {
		case runes[i] == '\n' && runes[i-1] == '\n':
			lastPara = cut
		case runes[i] == '\n':
			lastLine = cut
		case sentenceEnders[runes[i]]:
			lastSentence = cut
		}
	}

	switch {
	case lastPara > cur:
		return lastPara
	case lastLine > cur:
		return lastLine
	case lastSentence > cur:
		return lastSentence
	default:
		return end
	}
}
