package service

import (
	"net/http/httptest"
	"testing"
	"time"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/fakeapi"
	"yotta-chat-go/internal/model"
	"yotta-chat-go/internal/render"
	"yotta-chat-go/internal/repository"
	"yotta-chat-go/pkg/yotta"
)

// countingRenderer 记录每种渲染操作被调用的次数。
type countingRenderer struct {
	*render.HTMLRenderer
	renders, placeholders, replaces, resets int
}

func newCountingRenderer() *countingRenderer {
	return &countingRenderer{HTMLRenderer: render.NewHTMLRenderer(render.NewDocument())}
}

func (r *countingRenderer) Render(role model.Role, text string, citations []model.Citation) {
	r.renders++
	r.HTMLRenderer.Render(role, text, citations)
}

func (r *countingRenderer) Placeholder(text string) {
	r.placeholders++
	r.HTMLRenderer.Placeholder(text)
}

func (r *countingRenderer) ReplaceLast(role model.Role, text string, citations []model.Citation) {
	r.replaces++
	r.HTMLRenderer.ReplaceLast(role, text, citations)
}

func (r *countingRenderer) Reset() {
	r.resets++
	r.HTMLRenderer.Reset()
}

func (r *countingRenderer) total() int {
	return r.renders + r.placeholders + r.replaces + r.resets
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		API: config.APIConfig{
			BaseURL:    baseURL,
			ChatPath:   "/api/chat",
			UploadPath: "/api/upload",
			ClearPath:  "/api/clear_session",
			IngestPath: "/api/ingest",
			Timeout:    5 * time.Second,
		},
		Chat: config.ChatConfig{
			TopK:        4,
			Transport:   "http",
			StreamPath:  "/api/chat/ws",
			Placeholder: "Thinking…",
			Fallback:    "I don't know based on the available documents.",
		},
		Session: config.SessionConfig{Store: "memory", Key: "yotta_session_id", BeaconTimeout: time.Second},
		Upload:  config.UploadConfig{StatusTTL: time.Minute},
	}
}

type testEnv struct {
	backend  *fakeapi.Backend
	cfg      config.Config
	client   yotta.Client
	store    repository.SessionStore
	session  SessionService
	renderer *countingRenderer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := fakeapi.New()
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	client := yotta.NewClient(cfg)
	store := repository.NewMemorySessionStore()
	return &testEnv{
		backend:  backend,
		cfg:      cfg,
		client:   client,
		store:    store,
		session:  NewSessionService(store, client, cfg.Session.Key, false),
		renderer: newCountingRenderer(),
	}
}

// unreachableURL 返回一个已经关闭的服务地址，请求会以网络错误失败。
func unreachableURL() string {
	server := httptest.NewServer(nil)
	url := server.URL
	server.Close()
	return url
}
