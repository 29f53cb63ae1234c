// Package yotta provides a client for the Yotta question-answering backend.
package yotta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/model"
	"yotta-chat-go/pkg/log"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// File is one file to be uploaded.
type File struct {
	Name   string
	Reader io.Reader
}

// Client defines the interface for the backend client.
type Client interface {
	// Chat posts a v1 chat request and returns the validated response.
	Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error)
	// StreamChat sends the request over websocket and calls onChunk for every streamed piece.
	StreamChat(ctx context.Context, req model.ChatRequest, onChunk func(string)) (model.ChatResponse, error)
	Upload(ctx context.Context, sessionID string, files []File) (model.UploadResponse, error)
	ClearSession(ctx context.Context, sessionID string) error
	// Beacon fires a clear request without waiting for it. The returned channel closes when it is done.
	Beacon(sessionID string) <-chan struct{}
	Ingest(ctx context.Context) (model.IngestResponse, error)
}

type httpClient struct {
	api           config.APIConfig
	streamPath    string
	beaconTimeout time.Duration
	client        *http.Client
}

// NewClient creates a new backend client from the api/chat/session config sections.
func NewClient(cfg config.Config) Client {
	return &httpClient{
		api:           cfg.API,
		streamPath:    cfg.Chat.StreamPath,
		beaconTimeout: cfg.Session.BeaconTimeout,
		client:        &http.Client{Timeout: cfg.API.Timeout},
	}
}

// Chat calls the chat endpoint with the v1 body {session_id, question, top_k}.
func (c *httpClient) Chat(ctx context.Context, reqBody model.ChatRequest) (model.ChatResponse, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.Endpoint(c.api.ChatPath), bytes.NewReader(reqBytes))
	if err != nil {
		return model.ChatResponse{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Infof("[YottaClient] 发送聊天请求, session: %s, question_len: %d", reqBody.SessionID, len(reqBody.Question))
	body, err := c.do(req)
	if err != nil {
		return model.ChatResponse{}, err
	}

	resp, err := model.DecodeChatResponse(body)
	if err != nil {
		log.Errorf("[YottaClient] 聊天响应结构不符合约定: %v", err)
		return model.ChatResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	log.Infof("[YottaClient] 收到回答, answer_len: %d, citations: %d", len(resp.Answer), len(resp.Citations))
	return resp, nil
}

// Upload sends session_id plus one "files" part per file as multipart/form-data.
func (c *httpClient) Upload(ctx context.Context, sessionID string, files []File) (model.UploadResponse, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return model.UploadResponse{}, fmt.Errorf("failed to write session field: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return model.UploadResponse{}, fmt.Errorf("failed to create form file %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return model.UploadResponse{}, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return model.UploadResponse{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.Endpoint(c.api.UploadPath), buf)
	if err != nil {
		return model.UploadResponse{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	log.Infof("[YottaClient] 上传 %d 个文件, session: %s", len(files), sessionID)
	body, err := c.do(req)
	if err != nil {
		return model.UploadResponse{}, err
	}

	var resp model.UploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.UploadResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp, nil
}

// ClearSession posts a form-encoded session_id to the clear endpoint. Any 2xx is success.
func (c *httpClient) ClearSession(ctx context.Context, sessionID string) error {
	form := url.Values{"session_id": {sessionID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.Endpoint(c.api.ClearPath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create clear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err = c.do(req)
	return err
}

// Beacon is the unload-time clear: it runs in the background with its own timeout.
func (c *httpClient) Beacon(sessionID string) <-chan struct{} {
	done := make(chan struct{})
	timeout := c.beaconTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.ClearSession(ctx, sessionID); err != nil {
			log.Warnf("[YottaClient] beacon 清理会话失败, session: %s, error: %v", sessionID, err)
			return
		}
		log.Infof("[YottaClient] beacon 已清理会话 %s", sessionID)
	}()
	return done
}

// Ingest triggers backend ingestion. Bodies other than {ingested_chunks} are kept raw.
func (c *httpClient) Ingest(ctx context.Context) (model.IngestResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.Endpoint(c.api.IngestPath), nil)
	if err != nil {
		return model.IngestResponse{}, fmt.Errorf("failed to create ingest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return model.IngestResponse{}, err
	}

	resp := model.IngestResponse{Raw: json.RawMessage(bytes.TrimSpace(body))}
	if len(resp.Raw) == 0 {
		resp.Raw = json.RawMessage("null")
		return resp, nil
	}
	// 非对象响应同样原样展示
	_ = json.Unmarshal(body, &resp)
	return resp, nil
}

// do executes the request and returns the body of a 2xx response, or an *APIError.
func (c *httpClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set(model.ContractHeader, model.ContractVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[YottaClient] 调用 %s 失败, error: %v", req.URL.Path, err)
		return nil, fmt.Errorf("failed to call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp, body)
		log.Errorf("[YottaClient] %s 返回非 2xx 状态码: %s, detail: %s", req.URL.Path, resp.Status, apiErr.Detail)
		return nil, apiErr
	}
	return body, nil
}
