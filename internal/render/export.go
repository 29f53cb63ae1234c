package render

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

var pageTemplate = template.Must(template.New("transcript").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Yotta chat transcript</title>
<style>
body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;background:#f6f7f9}
.message{display:flex;margin:.5rem 0}.message.user{justify-content:flex-end}
.bubble{padding:.6rem .9rem;border-radius:.8rem;background:#fff;max-width:80%}
.user .bubble{background:#dbeafe}.meta{font-size:.75rem;color:#666}
.citations{font-size:.8rem;margin-top:.4rem;color:#444}
</style>
</head>
<body>
<div id="chat">
{{- range .Blocks}}
<div class="message {{.Role}}"><div class="bubble"><div class="meta">{{.Label}}</div><div class="content">{{.Content}}</div>
{{- if .Citations}}<div class="citations">{{.Citations}}</div>{{end}}</div></div>
{{- end}}
</div>
<footer>Exported {{.Exported}}</footer>
</body>
</html>
`))

type exportBlock struct {
	Role      string
	Label     string
	Content   template.HTML
	Citations template.HTML
}

// WriteHTML 把文档导出为独立的 HTML 页面，占位块不会被导出。
// Block.HTML 与 CitationsHTML 在渲染时已经转义过，这里直接作为 template.HTML 输出。
func WriteHTML(w io.Writer, doc *Document) error {
	blocks := doc.Blocks()
	data := struct {
		Blocks   []exportBlock
		Exported string
	}{Exported: time.Now().Format("2006-01-02 15:04:05")}

	for _, b := range blocks {
		if b.Placeholder {
			continue
		}
		data.Blocks = append(data.Blocks, exportBlock{
			Role:      string(b.Role),
			Label:     b.Role.Label(),
			Content:   template.HTML(b.HTML),
			Citations: template.HTML(b.CitationsHTML),
		})
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("导出对话失败: %w", err)
	}
	return nil
}
