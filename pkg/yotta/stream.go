package yotta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"yotta-chat-go/internal/model"
	"yotta-chat-go/pkg/log"

	"github.com/gorilla/websocket"
)

// streamURL rewrites the http(s) base URL into a ws(s) URL for the stream path.
func (c *httpClient) streamURL() string {
	u := c.api.Endpoint(c.streamPath)
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// StreamChat sends one v1 request frame and collects {"chunk"} frames until a completion frame.
func (c *httpClient) StreamChat(ctx context.Context, reqBody model.ChatRequest, onChunk func(string)) (model.ChatResponse, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.client.Timeout}
	header := http.Header{}
	header.Set(model.ContractHeader, model.ContractVersion)

	conn, resp, err := dialer.DialContext(ctx, c.streamURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return model.ChatResponse{}, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Detail: resp.Status}
		}
		return model.ChatResponse{}, fmt.Errorf("failed to connect chat stream: %w", err)
	}
	defer conn.Close()

	// ctx 取消时关闭连接以中断阻塞的读取
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(reqBody); err != nil {
		return model.ChatResponse{}, fmt.Errorf("failed to send chat frame: %w", err)
	}

	answer := &strings.Builder{}
	result := model.ChatResponse{Citations: []model.Citation{}}
	for {
		// http.Client.Timeout 不作用于 websocket，每次读取单独设置超时
		if c.client.Timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.client.Timeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return model.ChatResponse{}, ctx.Err()
			}
			return model.ChatResponse{}, fmt.Errorf("failed to read from stream: %w", err)
		}

		var frame model.StreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Errorf("[YottaClient] 流式帧无法解析: %v", err)
			return model.ChatResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		if frame.Error != "" {
			return model.ChatResponse{}, &APIError{Detail: frame.Error}
		}
		if frame.Chunk != "" {
			answer.WriteString(frame.Chunk)
			if onChunk != nil {
				onChunk(frame.Chunk)
			}
		}
		if len(frame.Citations) > 0 {
			result.Citations = append(result.Citations, frame.Citations...)
		}
		if frame.Type == model.FrameCompletion || frame.Type == model.FrameStop {
			break
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	result.Answer = answer.String()
	return result, nil
}
