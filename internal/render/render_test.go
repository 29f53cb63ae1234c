package render

import (
	"bytes"
	"strings"
	"testing"

	"yotta-chat-go/internal/model"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestEscapeNeutralizesMarkup(t *testing.T) {
	doc := NewDocument()
	r := NewHTMLRenderer(doc)

	r.Render(model.RoleUser, `<script>alert("x")</script>`+"\nnext <b>line</b>", nil)

	blocks := doc.Blocks()
	require.Len(t, blocks, 1)
	assert.NotContains(t, blocks[0].HTML, "<script>")
	assert.NotContains(t, blocks[0].HTML, "<b>")
	assert.Contains(t, blocks[0].HTML, "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;")
	assert.Contains(t, blocks[0].HTML, "<br/>next &lt;b&gt;line&lt;/b&gt;")
	assert.Equal(t, `<script>alert("x")</script>`+"\nnext <b>line</b>", blocks[0].Text)
}

func TestRenderAnswerWithCitations(t *testing.T) {
	doc := NewDocument()
	r := NewHTMLRenderer(doc)

	r.Render(model.RoleBot, "42", []model.Citation{{Source: "doc.pdf", Page: intPtr(3)}})

	b := doc.Blocks()[0]
	assert.Contains(t, b.HTML, "42")
	assert.Contains(t, b.CitationsHTML, "doc.pdf")
	assert.Contains(t, b.CitationsHTML, "page 3")
	assert.True(t, strings.HasPrefix(b.CitationsHTML, "<strong>Sources:</strong>"))
}

func TestUserBlocksHaveNoCitations(t *testing.T) {
	doc := NewDocument()
	NewHTMLRenderer(doc).Render(model.RoleUser, "hi", []model.Citation{{Source: "x"}})
	assert.Empty(t, doc.Blocks()[0].CitationsHTML)
}

func TestCitationsHTMLEscapesAndFiltersLinks(t *testing.T) {
	out := CitationsHTML([]model.Citation{
		{Source: `<img src=x onerror=alert(1)>`, URL: "javascript:alert(1)"},
		{Source: "site", URL: "https://example.com/a?b=1&c=2"},
	})
	assert.NotContains(t, out, "<img")
	assert.NotContains(t, out, `href="javascript:`)
	assert.Contains(t, out, `href="#"`)
	assert.Contains(t, out, `href="https://example.com/a?b=1&amp;c=2"`)
	assert.Contains(t, out, " • ")
}

func TestReplaceLastRemovesPlaceholder(t *testing.T) {
	doc := NewDocument()
	r := NewHTMLRenderer(doc)

	r.Render(model.RoleBot, "welcome", nil)
	r.Render(model.RoleUser, "question", nil)
	r.Placeholder("Thinking…")
	assert.True(t, doc.HasPlaceholder())

	r.ReplaceLast(model.RoleBot, "answer", nil)

	blocks := doc.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, "welcome", blocks[0].Text)
	assert.Equal(t, "question", blocks[1].Text)
	assert.Equal(t, "answer", blocks[2].Text)
	assert.False(t, doc.HasPlaceholder())
	assert.Equal(t, 2, doc.ScrolledTo())
}

func TestReplaceLastWithoutPlaceholderAppends(t *testing.T) {
	doc := NewDocument()
	r := NewHTMLRenderer(doc)
	r.Render(model.RoleBot, "welcome", nil)

	r.ReplaceLast(model.RoleBot, "answer", nil)

	require.Equal(t, 2, doc.Len())
	assert.Equal(t, "welcome", doc.Blocks()[0].Text)
}

func TestReset(t *testing.T) {
	doc := NewDocument()
	r := NewHTMLRenderer(doc)
	r.Render(model.RoleUser, "a", nil)
	r.Reset()
	assert.Equal(t, 0, doc.Len())
	assert.Equal(t, -1, doc.ScrolledTo())
}

func TestTerminalRenderer(t *testing.T) {
	color.NoColor = true
	out := &bytes.Buffer{}
	doc := NewDocument()
	r := NewTerminalRenderer(doc, out)

	r.Render(model.RoleUser, "hello\x1b[2J", nil)
	r.Placeholder("Thinking…")
	r.ReplaceLast(model.RoleBot, "42", []model.Citation{{Source: "doc.pdf", Page: intPtr(3)}})

	text := out.String()
	// ESC 被去掉，剩余的字符原样输出
	assert.Contains(t, text, "You: hello[2J\n")
	assert.NotContains(t, text, "\x1b[2J")
	assert.Contains(t, text, "Yotta: Thinking…\n")
	// 占位行被清除
	assert.Contains(t, text, "\033[1A\033[2K")
	assert.Contains(t, text, "Yotta: 42\n")
	assert.Contains(t, text, "Sources: doc.pdf, page 3")

	require.Equal(t, 2, doc.Len())
	assert.False(t, doc.HasPlaceholder())
}

func TestWriteHTML(t *testing.T) {
	doc := NewDocument()
	r := NewHTMLRenderer(doc)
	r.Render(model.RoleUser, "<b>bold?</b>", nil)
	r.Render(model.RoleBot, "42", []model.Citation{{Source: "doc.pdf", Page: intPtr(3)}})
	r.Placeholder("Thinking…")

	buf := &bytes.Buffer{}
	require.NoError(t, WriteHTML(buf, doc))

	page := buf.String()
	assert.Contains(t, page, `<div class="message user">`)
	assert.Contains(t, page, "&lt;b&gt;bold?&lt;/b&gt;")
	assert.NotContains(t, page, "<b>bold?</b>")
	assert.Contains(t, page, "page 3")
	assert.NotContains(t, page, "Thinking…")
}
