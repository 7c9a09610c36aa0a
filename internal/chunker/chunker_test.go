package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/docq/internal/core/domain"
)

func TestSplitEmptyContent(t *testing.T) {
	s := New()

	for _, content := range []string{"", "   ", "\n\t \n"} {
		_, err := s.Split("doc-1", content)
		require.Error(t, err)
		assert.Equal(t, domain.CodeEmptyContent, domain.CodeOf(err))
	}
}

func TestSplitShortContent(t *testing.T) {
	s := New()

	res, err := s.Split("doc-1", "hello world")
	require.NoError(t, err)

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "hello world", res.Chunks[0].Content)
	assert.Equal(t, 0, res.Chunks[0].Index)
	assert.Equal(t, "doc-1", res.Chunks[0].DocumentID)
	assert.False(t, res.Stats.Truncated)
	assert.Equal(t, 1, res.Stats.OriginalCount)
	assert.Equal(t, 1, res.Stats.StoredCount)
}

func TestSplitContiguousIndexes(t *testing.T) {
	s := New(WithChunkSize(50), WithOverlap(10))

	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
	}

	res, err := s.Split("doc-1", b.String())
	require.NoError(t, err)
	require.Greater(t, len(res.Chunks), 1)

	for i, ch := range res.Chunks {
		assert.Equal(t, i, ch.Index)
		assert.NotEmpty(t, ch.ID)
		assert.LessOrEqual(t, ch.Length, 50+10)
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := New(WithChunkSize(40), WithOverlap(0))

	content := strings.Repeat("aaaa bbbb cccc.\n\n", 10)
	res, err := s.Split("doc-1", content)
	require.NoError(t, err)

	// Every chunk except possibly the last should end on a paragraph
	// break rather than a mid-word hard cut.
	for _, ch := range res.Chunks[:len(res.Chunks)-1] {
		assert.True(t, strings.HasSuffix(ch.Content, "\n\n"), "chunk %d: %q", ch.Index, ch.Content)
	}
}

// reconstruct rebuilds the original text from chunks by dropping each
// chunk's overlap prefix, using the recorded rune offsets.
func reconstruct(t *testing.T, chunks []domain.Chunk) string {
	t.Helper()

	var b strings.Builder
	prevEnd := 0
	for _, ch := range chunks {
		runes := []rune(ch.Content)
		end, ok := ch.Metadata["end"].(int)
		require.True(t, ok)
		fresh := end - prevEnd
		require.LessOrEqual(t, fresh, len(runes))
		b.WriteString(string(runes[len(runes)-fresh:]))
		prevEnd = end
	}
	return b.String()
}

func TestSplitRoundTripsMultibyteContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"cjk", strings.Repeat("这是一个关于向量检索的测试文档。", 200)},
		{"emoji", strings.Repeat("Results 🎉 are in! Ünïcödé wörks. ", 150)},
		{"mixed", strings.Repeat("中文 and English mixed 内容。\nNew line here.\n\n", 120)},
	}

	s := New(WithChunkSize(100), WithOverlap(20))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Split("doc-1", tt.content)
			require.NoError(t, err)

			// No chunk may contain invalid UTF-8 from a mid-codepoint cut.
			for _, ch := range res.Chunks {
				assert.True(t, strings.ToValidUTF8(ch.Content, "�") == ch.Content)
			}

			assert.Equal(t, tt.content, reconstruct(t, res.Chunks))
		})
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := New(WithChunkSize(50), WithOverlap(10))

	content := strings.Repeat("0123456789", 20)
	res, err := s.Split("doc-1", content)
	require.NoError(t, err)
	require.Greater(t, len(res.Chunks), 1)

	for i := 1; i < len(res.Chunks); i++ {
		prev := []rune(res.Chunks[i-1].Content)
		curr := []rune(res.Chunks[i].Content)
		// The first 10 runes of each chunk repeat the tail of the
		// previous one.
		assert.Equal(t, string(prev[len(prev)-10:]), string(curr[:10]))
	}
}

func TestSplitTruncatesAtCeiling(t *testing.T) {
	// 50,000 repetitions of a 5-rune sentence: 250,000 runes. With a
	// 20-rune chunk size the natural split exceeds the 10,000 ceiling.
	content := strings.Repeat("这是测试。", 50000)

	s := New(WithChunkSize(20), WithOverlap(0), WithMaxChunks(10000))

	res, err := s.Split("doc-big", content)
	require.NoError(t, err)

	assert.Len(t, res.Chunks, 10000)
	assert.True(t, res.Stats.Truncated)
	assert.Greater(t, res.Stats.OriginalCount, 10000)
	assert.Equal(t, 10000, res.Stats.StoredCount)
	assert.Equal(t, 9999, res.Chunks[9999].Index)
}

func TestSplitClampsExcessiveOverlap(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(100))

	res, err := s.Split("doc-1", strings.Repeat("x", 500))
	require.NoError(t, err)
	// Still makes forward progress.
	assert.Greater(t, len(res.Chunks), 1)
	assert.Less(t, len(res.Chunks), 50)
}
