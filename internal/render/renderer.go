package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"yotta-chat-go/internal/model"

	"github.com/fatih/color"
)

// Renderer 定义了消息渲染的接口。
type Renderer interface {
	// Render 追加一个消息块并滚动到末尾。
	Render(role model.Role, text string, citations []model.Citation)
	// Placeholder 追加一个临时的占位块（例如 "Thinking…"）。
	Placeholder(text string)
	// ReplaceLast 移除最近的占位块，并在原位置渲染真正的回答。
	ReplaceLast(role model.Role, text string, citations []model.Citation)
	// Reset 清空所有消息。
	Reset()
	Document() *Document
}

// HTMLRenderer 只维护 Document，用于导出和测试。
type HTMLRenderer struct {
	doc *Document
}

// NewHTMLRenderer 创建一个渲染到 doc 的 HTMLRenderer。
func NewHTMLRenderer(doc *Document) *HTMLRenderer {
	return &HTMLRenderer{doc: doc}
}

func (r *HTMLRenderer) Render(role model.Role, text string, citations []model.Citation) {
	r.doc.append(newBlock(role, text, citations, false))
}

func (r *HTMLRenderer) Placeholder(text string) {
	r.doc.append(newBlock(model.RoleBot, text, nil, true))
}

func (r *HTMLRenderer) ReplaceLast(role model.Role, text string, citations []model.Citation) {
	r.doc.removeLastPlaceholder()
	r.Render(role, text, citations)
}

func (r *HTMLRenderer) Reset() {
	r.doc.Reset()
}

func (r *HTMLRenderer) Document() *Document {
	return r.doc
}

// TerminalRenderer 把消息打印到终端，同时维护 Document。
type TerminalRenderer struct {
	*HTMLRenderer
	mu  sync.Mutex
	out io.Writer
	// placeholderLines 是最近一次打印的占位块所占的行数，0 表示末尾不是占位块
	placeholderLines int

	userLabel *color.Color
	botLabel  *color.Color
	errText   *color.Color
	cite      *color.Color
}

// NewTerminalRenderer 创建一个输出到 out 的终端渲染器。
func NewTerminalRenderer(doc *Document, out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{
		HTMLRenderer: NewHTMLRenderer(doc),
		out:          out,
		userLabel:    color.New(color.FgCyan, color.Bold),
		botLabel:     color.New(color.FgGreen, color.Bold),
		errText:      color.New(color.FgRed),
		cite:         color.New(color.Faint),
	}
}

func (r *TerminalRenderer) Render(role model.Role, text string, citations []model.Citation) {
	r.HTMLRenderer.Render(role, text, citations)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.print(role, text, citations)
	r.placeholderLines = 0
}

func (r *TerminalRenderer) Placeholder(text string) {
	r.HTMLRenderer.Placeholder(text)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholderLines = r.print(model.RoleBot, text, nil)
}

func (r *TerminalRenderer) ReplaceLast(role model.Role, text string, citations []model.Citation) {
	r.HTMLRenderer.ReplaceLast(role, text, citations)
	r.mu.Lock()
	defer r.mu.Unlock()
	// 光标上移并清除占位块所在的行
	for i := 0; i < r.placeholderLines; i++ {
		fmt.Fprint(r.out, "\033[1A\033[2K")
	}
	r.print(role, text, citations)
	r.placeholderLines = 0
}

func (r *TerminalRenderer) Reset() {
	r.HTMLRenderer.Reset()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cite.Fprintln(r.out, "--- conversation cleared ---")
	r.placeholderLines = 0
}

// Notice 打印一条不进入对话记录的状态信息。
func (r *TerminalRenderer) Notice(msg string, isErr bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isErr {
		r.errText.Fprintln(r.out, msg)
	} else {
		r.cite.Fprintln(r.out, msg)
	}
	r.placeholderLines = 0
}

// print 输出一个消息块，返回占用的行数。
func (r *TerminalRenderer) print(role model.Role, text string, citations []model.Citation) int {
	label := r.botLabel
	if role == model.RoleUser {
		label = r.userLabel
	}
	text = terminalSafe(text)
	label.Fprintf(r.out, "%s: ", role.Label())
	fmt.Fprintln(r.out, text)
	lines := strings.Count(text, "\n") + 1
	if role == model.RoleBot && len(citations) > 0 {
		r.cite.Fprintln(r.out, "  "+terminalSafe(CitationsText(citations)))
		lines++
	}
	return lines
}

// terminalSafe 去掉控制字符（保留换行和制表符），避免回答中的转义序列操纵终端。
func terminalSafe(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.ReplaceAll(text, "\r\n", "\n"))
}
