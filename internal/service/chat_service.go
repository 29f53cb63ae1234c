package service

import (
	"context"
	"strings"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/model"
	"yotta-chat-go/internal/render"
	"yotta-chat-go/pkg/log"
	"yotta-chat-go/pkg/yotta"
)

// GenericErrorText 是网络失败或响应不可用时显示的通用提示。
const GenericErrorText = "Sorry, something went wrong."

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Ask 发送一个问题并渲染回答。空白输入直接忽略。
	Ask(ctx context.Context, text string) error
}

type chatService struct {
	client   yotta.Client
	renderer render.Renderer
	session  SessionService
	cfg      config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(client yotta.Client, renderer render.Renderer, session SessionService, cfg config.ChatConfig) ChatService {
	return &chatService{
		client:   client,
		renderer: renderer,
		session:  session,
		cfg:      cfg,
	}
}

// Ask 先渲染用户消息和占位块，请求结束后（无论成功与否）恰好替换一次占位块。
func (s *chatService) Ask(ctx context.Context, text string) error {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil
	}

	s.renderer.Render(model.RoleUser, question, nil)
	s.renderer.Placeholder(s.cfg.Placeholder)

	req := model.ChatRequest{
		SessionID: s.session.ID(),
		Question:  question,
		TopK:      s.cfg.TopK,
	}

	var (
		resp model.ChatResponse
		err  error
	)
	if s.cfg.Transport == "websocket" {
		resp, err = s.client.StreamChat(ctx, req, func(chunk string) {
			log.Debugf("收到流式分块, len: %d", len(chunk))
		})
	} else {
		resp, err = s.client.Chat(ctx, req)
	}
	if err != nil {
		log.Error("聊天请求失败", err)
		s.renderer.ReplaceLast(model.RoleBot, errorText(err), nil)
		return err
	}

	answer := resp.Answer
	if strings.TrimSpace(answer) == "" {
		answer = s.cfg.Fallback
	}
	s.renderer.ReplaceLast(model.RoleBot, answer, resp.Citations)
	return nil
}

// errorText 把错误转换成展示给用户的文本，后端给出的 detail 会附在通用提示之后。
func errorText(err error) string {
	if apiErr, ok := yotta.AsAPIError(err); ok && apiErr.Detail != "" {
		return "Sorry, something went wrong: " + apiErr.Detail
	}
	return GenericErrorText
}
