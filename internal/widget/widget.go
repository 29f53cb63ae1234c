// Package widget 把会话、渲染和各个操作组装成一个聊天窗口对象。
// 每次启动只创建一个 Widget，它持有会话标识和已上传文件列表。
package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/model"
	"yotta-chat-go/internal/render"
	"yotta-chat-go/internal/repository"
	"yotta-chat-go/internal/service"
	"yotta-chat-go/pkg/log"
	"yotta-chat-go/pkg/yotta"
)

// ErrMissingHandle 表示初始化时缺少必需的依赖。
var ErrMissingHandle = errors.New("widget: missing required handle")

// Handles 是 Widget 依赖的全部外部句柄，在 New 中一次性校验。
type Handles struct {
	Config   config.Config
	Client   yotta.Client
	Store    repository.SessionStore
	Renderer render.Renderer
}

// Widget 是一个聊天窗口。
type Widget struct {
	cfg      config.Config
	renderer render.Renderer
	session  service.SessionService
	chat     service.ChatService
	uploads  service.UploadService
	ingest   service.IngestService
}

// validate 在开始交互之前检查所有句柄，缺失时给出明确的名字。
func (h Handles) validate() error {
	var missing []string
	if h.Client == nil {
		missing = append(missing, "Client")
	}
	if h.Store == nil {
		missing = append(missing, "Store")
	}
	if h.Renderer == nil {
		missing = append(missing, "Renderer")
	} else if h.Renderer.Document() == nil {
		missing = append(missing, "Renderer.Document")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingHandle, strings.Join(missing, ", "))
	}
	if err := h.Config.Validate(); err != nil {
		return err
	}
	return nil
}

// New 校验句柄、加载会话标识、渲染欢迎语。
func New(ctx context.Context, h Handles) (*Widget, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}

	session := service.NewSessionService(h.Store, h.Client, h.Config.Session.Key, h.Config.Session.RotateOnClear)
	if _, err := session.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load session id: %w", err)
	}

	w := &Widget{
		cfg:      h.Config,
		renderer: h.Renderer,
		session:  session,
		chat:     service.NewChatService(h.Client, h.Renderer, session, h.Config.Chat),
		uploads:  service.NewUploadService(h.Client, session, h.Config.Upload.StatusTTL),
		ingest:   service.NewIngestService(h.Client),
	}

	if h.Config.Chat.Welcome != "" {
		h.Renderer.Render(model.RoleBot, h.Config.Chat.Welcome, nil)
	}
	return w, nil
}

// SessionID 返回当前的会话标识。
func (w *Widget) SessionID() string {
	return w.session.ID()
}

// Document 返回消息文档。
func (w *Widget) Document() *render.Document {
	return w.renderer.Document()
}

// Ask 发送一个问题。
func (w *Widget) Ask(ctx context.Context, text string) error {
	return w.chat.Ask(ctx, text)
}

// Upload 上传文件，返回后端保存的文件名。
func (w *Widget) Upload(ctx context.Context, paths []string) ([]string, error) {
	return w.uploads.Upload(ctx, paths)
}

// RemoveFile 从本地列表中移除一个文件。
func (w *Widget) RemoveFile(name string) bool {
	return w.uploads.Remove(name)
}

// Files 返回已上传的文件名。
func (w *Widget) Files() []string {
	return w.uploads.Files()
}

// UploadStatus 返回上传状态提示。
func (w *Widget) UploadStatus() string {
	return w.uploads.Status()
}

// ClearSession 在确认后清理后端会话，并清空消息和已上传文件列表。
func (w *Widget) ClearSession(ctx context.Context, confirm func() bool) (bool, error) {
	return w.session.Clear(ctx, confirm, w.renderer, w.uploads)
}

// Ingest 触发后端文档入库。
func (w *Widget) Ingest(ctx context.Context) (string, error) {
	return w.ingest.Ingest(ctx)
}

// IngestControl 返回入库按钮的状态。
func (w *Widget) IngestControl() *service.Control {
	return w.ingest.Control()
}

// Export 把当前对话导出为 HTML。
func (w *Widget) Export(out io.Writer) error {
	return render.WriteHTML(out, w.renderer.Document())
}

// Close 在配置了 beacon_on_exit 时通知后端回收会话，最多等待 beacon_timeout。
func (w *Widget) Close() {
	if !w.cfg.Session.BeaconOnExit {
		return
	}
	wait := w.cfg.Session.BeaconTimeout
	if wait <= 0 {
		wait = 2 * time.Second
	}
	select {
	case <-w.session.Beacon():
	case <-time.After(wait + 500*time.Millisecond):
		log.Warnf("beacon 超时, 不再等待")
	}
}
