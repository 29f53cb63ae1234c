// Package fakeapi 是一个内存中的假后端，按照 v1 契约实现聊天、上传、清理和入库接口，供测试使用。
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"yotta-chat-go/internal/model"
	"yotta-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// Reply 是一次聊天请求的回复：状态码和任意 JSON 响应体。
type Reply struct {
	Status int
	Body   any
}

// UploadCall 记录一次上传请求。
type UploadCall struct {
	SessionID string
	Files     map[string]string
}

// Backend 记录收到的所有请求，回复可以在测试中替换。
type Backend struct {
	mu sync.Mutex

	calls        int
	chatRequests []model.ChatRequest
	contracts    []string
	uploads      []UploadCall
	cleared      []string
	ingestCalls  int

	// ChatReply 为 nil 时返回 "You asked: <question>" 和一条 doc.pdf 引用
	ChatReply func(req model.ChatRequest) Reply
	// UploadReply 为 nil 时把所有文件名作为 saved 返回
	UploadReply func(call UploadCall) Reply
	ClearStatus int
	IngestReply Reply
	// StreamError 非空时 websocket 接口返回 {"error": ...}
	StreamError string
	// StreamFrames 非空时 websocket 接口原样发送这些文本帧，然后等待客户端关闭
	StreamFrames []string
}

// New 创建一个默认行为的假后端。
func New() *Backend {
	return &Backend{
		ClearStatus: http.StatusOK,
		IngestReply: Reply{Status: http.StatusOK, Body: gin.H{"ingested_chunks": 12}},
	}
}

// Handler 返回注册了全部路由的 gin 引擎。
func (b *Backend) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(b.requestLogger(), gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/chat", b.chat)
		api.GET("/chat/ws", b.chatStream)
		api.POST("/upload", b.upload)
		api.POST("/clear_session", b.clearSession)
		api.POST("/ingest", b.ingest)
	}
	return r
}

// Configure 在锁内修改回复设置，测试中途改变后端行为时使用。
func (b *Backend) Configure(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *Backend) countCall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
}

func (b *Backend) reply(req model.ChatRequest) Reply {
	b.mu.Lock()
	chatReply := b.ChatReply
	b.mu.Unlock()
	if chatReply != nil {
		return chatReply(req)
	}
	page := 1
	return Reply{Status: http.StatusOK, Body: gin.H{
		"answer":    "You asked: " + req.Question,
		"citations": []model.Citation{{ID: "1", Source: "doc.pdf", Page: &page}},
	}}
}

func (b *Backend) chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Body must be JSON"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Field 'question' is required and must be non-empty"})
		return
	}

	b.mu.Lock()
	b.chatRequests = append(b.chatRequests, req)
	b.contracts = append(b.contracts, c.GetHeader(model.ContractHeader))
	b.mu.Unlock()

	rep := b.reply(req)
	if raw, ok := rep.Body.(string); ok {
		c.Data(rep.Status, "application/json", []byte(raw))
		return
	}
	c.JSON(rep.Status, rep.Body)
}

// chatStream 按 {"chunk"} 帧逐词下发回答，最后发送 {"type":"completion"}。
func (b *Backend) chatStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	var req model.ChatRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Warnf("从 WebSocket 读取消息失败: %v", err)
		return
	}
	b.mu.Lock()
	b.chatRequests = append(b.chatRequests, req)
	b.contracts = append(b.contracts, c.GetHeader(model.ContractHeader))
	streamErr := b.StreamError
	frames := append([]string(nil), b.StreamFrames...)
	b.mu.Unlock()

	if len(frames) > 0 {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
		return
	}

	if streamErr != "" {
		_ = conn.WriteJSON(gin.H{"error": streamErr})
		_ = conn.WriteJSON(gin.H{"type": model.FrameCompletion, "status": "finished"})
		return
	}

	rep := b.reply(req)
	var body model.ChatResponse
	raw, _ := json.Marshal(rep.Body)
	_ = json.Unmarshal(raw, &body)

	words := strings.SplitAfter(body.Answer, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := conn.WriteJSON(gin.H{"chunk": w}); err != nil {
			return
		}
	}
	_ = conn.WriteJSON(gin.H{"citations": body.Citations})
	_ = conn.WriteJSON(gin.H{"type": model.FrameCompletion, "status": "finished"})
	// 等待客户端关闭
	_, _, _ = conn.ReadMessage()
}

func (b *Backend) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart body required"})
		return
	}
	call := UploadCall{SessionID: c.PostForm("session_id"), Files: map[string]string{}}
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot open " + fh.Filename})
			return
		}
		data, _ := io.ReadAll(f)
		_ = f.Close()
		call.Files[fh.Filename] = string(data)
	}
	if len(call.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No files uploaded"})
		return
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, call)
	uploadReply := b.UploadReply
	b.mu.Unlock()

	if uploadReply != nil {
		rep := uploadReply(call)
		c.JSON(rep.Status, rep.Body)
		return
	}
	saved := make([]string, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		saved = append(saved, fh.Filename)
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func (b *Backend) clearSession(c *gin.Context) {
	id := c.PostForm("session_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "session_id is required"})
		return
	}
	b.mu.Lock()
	b.cleared = append(b.cleared, id)
	status := b.ClearStatus
	b.mu.Unlock()

	if status >= 300 {
		c.JSON(status, gin.H{"detail": "clear failed"})
		return
	}
	c.Status(status)
}

func (b *Backend) ingest(c *gin.Context) {
	b.mu.Lock()
	b.ingestCalls++
	rep := b.IngestReply
	b.mu.Unlock()
	c.JSON(rep.Status, rep.Body)
}

// Calls 返回收到的请求总数。
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// ChatRequests 返回收到的聊天请求。
func (b *Backend) ChatRequests() []model.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.ChatRequest(nil), b.chatRequests...)
}

// Contracts 返回每个聊天请求携带的契约版本头。
func (b *Backend) Contracts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.contracts...)
}

// Uploads 返回收到的上传请求。
func (b *Backend) Uploads() []UploadCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]UploadCall(nil), b.uploads...)
}

// Cleared 返回被清理的会话标识。
func (b *Backend) Cleared() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.cleared...)
}

// IngestCalls 返回入库接口的调用次数。
func (b *Backend) IngestCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ingestCalls
}
