package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ContractVersion 是客户端与后端约定的接口版本，随请求头 X-Yotta-Contract 发送。
const ContractVersion = "v1"

// ContractHeader 是携带接口版本的请求头。
const ContractHeader = "X-Yotta-Contract"

// ChatRequest 是 v1 版本的聊天请求体。
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k"`
}

// ChatResponse 是 v1 版本的聊天响应体，answer 与 citations 都可以缺省。
type ChatResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// ErrResponseShape 表示响应体与约定的结构不符。
var ErrResponseShape = errors.New("response does not match the expected shape")

// DecodeChatResponse 在使用字段前先校验响应结构。
// 顶层必须是对象，answer 存在时必须是字符串，citations 存在时必须是数组。
func DecodeChatResponse(body []byte) (ChatResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", ErrResponseShape, err)
	}
	if fields == nil {
		return ChatResponse{}, fmt.Errorf("%w: body is null", ErrResponseShape)
	}

	var resp ChatResponse
	if raw, ok := fields["answer"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.Answer); err != nil {
			return ChatResponse{}, fmt.Errorf("%w: answer must be a string", ErrResponseShape)
		}
	}
	if raw, ok := fields["citations"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &resp.Citations); err != nil {
			return ChatResponse{}, fmt.Errorf("%w: citations: %v", ErrResponseShape, err)
		}
	}
	if resp.Citations == nil {
		resp.Citations = []Citation{}
	}
	return resp, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// UploadResponse 是上传接口的响应体。
type UploadResponse struct {
	Saved []string `json:"saved"`
}

// IngestResponse 是入库接口的响应，Raw 保留原始 JSON 以便原样展示。
type IngestResponse struct {
	IngestedChunks *int            `json:"ingested_chunks"`
	Raw            json.RawMessage `json:"-"`
}

// StreamFrame 是 websocket 流式聊天中的单帧。
// 与后端约定：{"chunk": "..."}、{"type": "completion"}、{"error": "..."}。
type StreamFrame struct {
	Chunk     string     `json:"chunk,omitempty"`
	Type      string     `json:"type,omitempty"`
	Status    string     `json:"status,omitempty"`
	Error     string     `json:"error,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
}

// 流式帧类型
const (
	FrameCompletion = "completion"
	FrameStop       = "stop"
)
