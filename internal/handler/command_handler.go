// Package handler 把终端输入的每一行分发到聊天窗口的各个操作。
package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"yotta-chat-go/internal/service"
	"yotta-chat-go/internal/widget"
	"yotta-chat-go/pkg/log"
)

// Notifier 显示不进入对话记录的状态信息。
type Notifier interface {
	Notice(msg string, isErr bool)
}

// ConfirmFunc 向用户确认一个操作。
type ConfirmFunc func(prompt string) bool

const helpText = `Commands:
  <text>                 ask a question
  /upload <file> [...]   upload one or more files
  /files                 list uploaded files
  /remove <name>         remove a file from the local list
  /clear                 clear the conversation and uploaded files
  /ingest                ingest documents on the server
  /export <file.html>    save the conversation as HTML
  /session               show the session id
  /help                  show this help
  /quit                  exit`

// CommandHandler 负责处理一行用户输入。
type CommandHandler struct {
	widget  *widget.Widget
	notify  Notifier
	confirm ConfirmFunc
}

// NewCommandHandler 创建一个新的 CommandHandler。
func NewCommandHandler(w *widget.Widget, notify Notifier, confirm ConfirmFunc) *CommandHandler {
	return &CommandHandler{widget: w, notify: notify, confirm: confirm}
}

// Handle 处理一行输入，返回 true 表示用户要求退出。
func (h *CommandHandler) Handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		// 错误已经渲染在回答的位置，这里不再重复提示
		_ = h.widget.Ask(ctx, trimmed)
		return false
	}

	fields := strings.Fields(trimmed)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	log.Debugf("执行命令: %s, 参数: %v", cmd, args)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		h.notify.Notice(helpText, false)
	case "/session":
		h.notify.Notice("Session: "+h.widget.SessionID(), false)
	case "/upload":
		h.upload(ctx, args)
	case "/files":
		h.listFiles()
	case "/remove":
		h.remove(args)
	case "/clear":
		h.clear(ctx)
	case "/ingest":
		h.ingest(ctx)
	case "/export":
		h.export(args)
	default:
		h.notify.Notice(fmt.Sprintf("Unknown command %s. Type /help for the list.", cmd), true)
	}
	return false
}

func (h *CommandHandler) upload(ctx context.Context, paths []string) {
	_, err := h.widget.Upload(ctx, paths)
	if status := h.widget.UploadStatus(); status != "" {
		h.notify.Notice(status, err != nil || len(paths) == 0)
	}
}

func (h *CommandHandler) listFiles() {
	files := h.widget.Files()
	if len(files) == 0 {
		h.notify.Notice("No files uploaded yet.", false)
		return
	}
	var b strings.Builder
	b.WriteString("Uploaded files:")
	for _, f := range files {
		b.WriteString("\n  - ")
		b.WriteString(f)
	}
	h.notify.Notice(b.String(), false)
}

func (h *CommandHandler) remove(args []string) {
	if len(args) == 0 {
		h.notify.Notice("Usage: /remove <name>", true)
		return
	}
	name := strings.Join(args, " ")
	if !h.widget.RemoveFile(name) {
		h.notify.Notice(fmt.Sprintf("%s is not in the list.", name), true)
		return
	}
	h.notify.Notice(fmt.Sprintf("Removed %s.", name), false)
}

func (h *CommandHandler) clear(ctx context.Context) {
	cleared, err := h.widget.ClearSession(ctx, func() bool {
		return h.confirm == nil || h.confirm("Clear the conversation and uploaded files?")
	})
	if err != nil {
		h.notify.Notice("Could not clear the session: "+err.Error(), true)
		return
	}
	if cleared {
		h.notify.Notice("Session cleared.", false)
	}
}

func (h *CommandHandler) ingest(ctx context.Context) {
	control := h.widget.IngestControl()
	if control.Busy() {
		h.notify.Notice(control.Label(), true)
		return
	}
	h.notify.Notice(control.BusyLabel(), false)
	msg, err := h.widget.Ingest(ctx)
	if errors.Is(err, service.ErrBusy) {
		h.notify.Notice("Ingestion is already running.", true)
		return
	}
	h.notify.Notice(msg, err != nil)
}

func (h *CommandHandler) export(args []string) {
	if len(args) != 1 {
		h.notify.Notice("Usage: /export <file.html>", true)
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		h.notify.Notice("Export failed: "+err.Error(), true)
		return
	}
	defer f.Close()
	if err := h.widget.Export(f); err != nil {
		h.notify.Notice("Export failed: "+err.Error(), true)
		return
	}
	h.notify.Notice("Conversation saved to "+args[0], false)
}
