package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	assert.Equal(t, FormatHTML, Detect("page.html"))
	assert.Equal(t, FormatHTML, Detect("PAGE.HTM"))
	assert.Equal(t, FormatMarkdown, Detect("README.md"))
	assert.Equal(t, FormatPlain, Detect("notes.txt"))
	assert.Equal(t, FormatPlain, Detect("noext"))
}

func TestTextPlainNormalisesLineEndings(t *testing.T) {
	got := Text(FormatPlain, []byte("line one\r\nline two\r\n"))
	assert.Equal(t, "line one\nline two\n", got)
}

func TestTextHTMLStripsMarkup(t *testing.T) {
	raw := []byte(`<html><head><title>T</title><style>p{color:red}</style></head>
<body><p>First &amp; foremost.</p><script>alert(1)</script><p>Second paragraph.</p></body></html>`)

	got := Text(FormatHTML, raw)
	assert.Equal(t, "First & foremost.\n\nSecond paragraph.", got)
}

func TestTextMarkdownStripsSyntax(t *testing.T) {
	raw := []byte("# Heading\n\nSome *emphasis* and a [link](https://example.com).\n\n- item one\n- item two\n")

	got := Text(FormatMarkdown, raw)
	assert.Contains(t, got, "Heading")
	assert.Contains(t, got, "Some emphasis and a link.")
	assert.Contains(t, got, "item one")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "https://example.com")
}

func TestTextMarkdownDropsCodeBlocks(t *testing.T) {
	raw := []byte("Intro.\n\n```go\nfunc secret() {}\n```\n\nOutro with `code`.")

	got := Text(FormatMarkdown, raw)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "Outro with code.")
}
