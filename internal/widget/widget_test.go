package widget

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/fakeapi"
	"yotta-chat-go/internal/model"
	"yotta-chat-go/internal/render"
	"yotta-chat-go/internal/repository"
	"yotta-chat-go/pkg/yotta"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcome = "Hi! I'm Yotta - your property management assistant."

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
			Welcome:     welcome,
			Placeholder: "Thinking…",
			Fallback:    "I don't know based on the available documents.",
		},
		Session: config.SessionConfig{
			Store:         "memory",
			Key:           "yotta_session_id",
			BeaconOnExit:  true,
			BeaconTimeout: time.Second,
		},
		Upload: config.UploadConfig{StatusTTL: time.Minute},
	}
}

func newWidget(t *testing.T, store repository.SessionStore) (*Widget, *fakeapi.Backend) {
	t.Helper()
	backend := fakeapi.New()
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	w, err := New(context.Background(), Handles{
		Config:   cfg,
		Client:   yotta.NewClient(cfg),
		Store:    store,
		Renderer: render.NewHTMLRenderer(render.NewDocument()),
	})
	require.NoError(t, err)
	return w, backend
}

func TestNewRendersWelcome(t *testing.T) {
	w, backend := newWidget(t, repository.NewMemorySessionStore())

	blocks := w.Document().Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, model.RoleBot, blocks[0].Role)
	assert.Equal(t, welcome, blocks[0].Text)
	assert.NotEmpty(t, w.SessionID())
	assert.Equal(t, 0, backend.Calls())
}

func TestNewMissingHandles(t *testing.T) {
	cfg := testConfig("http://localhost:8000")

	_, err := New(context.Background(), Handles{Config: cfg})
	require.ErrorIs(t, err, ErrMissingHandle)
	assert.Contains(t, err.Error(), "Client")
	assert.Contains(t, err.Error(), "Store")
	assert.Contains(t, err.Error(), "Renderer")

	_, err = New(context.Background(), Handles{
		Config:   cfg,
		Client:   yotta.NewClient(cfg),
		Store:    repository.NewMemorySessionStore(),
		Renderer: render.NewHTMLRenderer(nil),
	})
	require.ErrorIs(t, err, ErrMissingHandle)
	assert.Contains(t, err.Error(), "Renderer.Document")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("not a url")
	_, err := New(context.Background(), Handles{
		Config:   cfg,
		Client:   yotta.NewClient(cfg),
		Store:    repository.NewMemorySessionStore(),
		Renderer: render.NewHTMLRenderer(render.NewDocument()),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingHandle)
}

func TestSessionSurvivesRestart(t *testing.T) {
	store := repository.NewMemorySessionStore()
	first, _ := newWidget(t, store)
	second, _ := newWidget(t, store)
	assert.Equal(t, first.SessionID(), second.SessionID())
}

func TestConversationFlow(t *testing.T) {
	w, backend := newWidget(t, repository.NewMemorySessionStore())
	ctx := context.Background()

	require.NoError(t, w.Ask(ctx, "late fees?"))
	require.Equal(t, 3, w.Document().Len())

	path := filepath.Join(t.TempDir(), "lease.txt")
	require.NoError(t, os.WriteFile(path, []byte("rent"), 0o600))
	saved, err := w.Upload(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{"lease.txt"}, saved)
	assert.Equal(t, "Uploaded 1 file(s).", w.UploadStatus())

	cleared, err := w.ClearSession(ctx, func() bool { return true })
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Equal(t, 0, w.Document().Len())
	assert.Empty(t, w.Files())
	assert.Equal(t, []string{w.SessionID()}, backend.Cleared())
}

func TestExport(t *testing.T) {
	w, _ := newWidget(t, repository.NewMemorySessionStore())
	require.NoError(t, w.Ask(context.Background(), "<i>rent?</i>"))

	buf := &bytes.Buffer{}
	require.NoError(t, w.Export(buf))
	assert.Contains(t, buf.String(), "You asked: &lt;i&gt;rent?&lt;/i&gt;")
}

func TestCloseSendsBeacon(t *testing.T) {
	w, backend := newWidget(t, repository.NewMemorySessionStore())
	w.Close()
	assert.Equal(t, []string{w.SessionID()}, backend.Cleared())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, closeStore, err := OpenStore(ctx, config.SessionConfig{Store: "memory"})
	require.NoError(t, err)
	closeStore()
	assert.NotNil(t, store)

	path := filepath.Join(t.TempDir(), "session.json")
	store, closeStore, err = OpenStore(ctx, config.SessionConfig{Store: "file", FilePath: path})
	require.NoError(t, err)
	defer closeStore()
	require.NoError(t, store.Set(ctx, "k", "v"))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	mr := miniredis.RunT(t)
	store, closeRedis, err := OpenStore(ctx, config.SessionConfig{Store: "redis", Redis: config.RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	defer closeRedis()
	require.NoError(t, store.Set(ctx, "k", "v"))
	assert.True(t, mr.Exists("yotta:session:k"))

	_, _, err = OpenStore(ctx, config.SessionConfig{Store: "cookie"})
	assert.Error(t, err)
}
