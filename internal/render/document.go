// Package render 负责把对话消息渲染成文档块，并保证文本内容被转义。
package render

import (
	"html"
	"strings"
	"sync"

	"yotta-chat-go/internal/model"
)

// Block 是文档中的一个消息块。
type Block struct {
	Role          model.Role
	Text          string
	HTML          string // 已转义的正文，换行替换为 <br/>
	Citations     []model.Citation
	CitationsHTML string
	Placeholder   bool
}

// Document 是只追加的消息块列表，相当于页面中的聊天容器。
// 除了 ReplaceLast 移除末尾的占位块和 Reset 以外，块的顺序不会改变。
type Document struct {
	mu     sync.Mutex
	blocks []Block
	// scrolledTo 记录视图滚动到的块下标，每次追加后都滚到末尾
	scrolledTo int
}

// NewDocument 创建一个空文档。
func NewDocument() *Document {
	return &Document{scrolledTo: -1}
}

func (d *Document) append(b Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks = append(d.blocks, b)
	d.scrolledTo = len(d.blocks) - 1
}

// removeLastPlaceholder 移除最近追加的占位块，没有占位块时返回 false。
func (d *Document) removeLastPlaceholder() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.blocks) - 1; i >= 0; i-- {
		if d.blocks[i].Placeholder {
			d.blocks = append(d.blocks[:i], d.blocks[i+1:]...)
			d.scrolledTo = len(d.blocks) - 1
			return true
		}
	}
	return false
}

// Blocks 返回当前所有块的副本。
func (d *Document) Blocks() []Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// Len 返回块的数量。
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blocks)
}

// ScrolledTo 返回视图当前所在的块下标，空文档为 -1。
func (d *Document) ScrolledTo() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolledTo
}

// HasPlaceholder 判断是否还有未被替换的占位块。
func (d *Document) HasPlaceholder() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.blocks {
		if b.Placeholder {
			return true
		}
	}
	return false
}

// Reset 清空文档。
func (d *Document) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks = nil
	d.scrolledTo = -1
}

// Escape 转义任意文本，使其不会被当作标记解释，换行变成 <br/>。
func Escape(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br/>")
}

// CitationsHTML 渲染引用列表，只有 http(s) 链接会成为可点击的 href。
func CitationsHTML(citations []model.Citation) string {
	if len(citations) == 0 {
		return ""
	}
	items := make([]string, 0, len(citations))
	for _, c := range citations {
		href := "#"
		if strings.HasPrefix(c.URL, "http://") || strings.HasPrefix(c.URL, "https://") {
			href = html.EscapeString(c.URL)
		}
		items = append(items, `<a href="`+href+`" title="From local docs">`+html.EscapeString(c.Describe())+`</a>`)
	}
	return "<strong>Sources:</strong> " + strings.Join(items, " • ")
}

// CitationsText 是终端中显示的引用列表。
func CitationsText(citations []model.Citation) string {
	if len(citations) == 0 {
		return ""
	}
	items := make([]string, 0, len(citations))
	for _, c := range citations {
		items = append(items, c.Describe())
	}
	return "Sources: " + strings.Join(items, " • ")
}

func newBlock(role model.Role, text string, citations []model.Citation, placeholder bool) Block {
	b := Block{
		Role:        role,
		Text:        text,
		HTML:        Escape(text),
		Placeholder: placeholder,
	}
	// 只有机器人的回答展示引用
	if role == model.RoleBot && len(citations) > 0 {
		b.Citations = append([]model.Citation(nil), citations...)
		b.CitationsHTML = CitationsHTML(citations)
	}
	return b
}
