package service

import (
	"context"
	"fmt"

	"yotta-chat-go/pkg/log"
	"yotta-chat-go/pkg/yotta"
)

// IngestService 定义了触发后端文档入库的接口。
type IngestService interface {
	// Ingest 请求期间禁用控件，结束后恢复，返回要展示给用户的文本。
	Ingest(ctx context.Context) (string, error)
	Control() *Control
}

type ingestService struct {
	client  yotta.Client
	control *Control
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(client yotta.Client) IngestService {
	return &ingestService{
		client:  client,
		control: NewControl("Ingest documents", "Ingesting…"),
	}
}

func (s *ingestService) Control() *Control {
	return s.control
}

func (s *ingestService) Ingest(ctx context.Context) (string, error) {
	if !s.control.Begin() {
		return "", ErrBusy
	}
	defer s.control.End()

	resp, err := s.client.Ingest(ctx)
	if err != nil {
		log.Error("文档入库失败", err)
		detail := err.Error()
		if apiErr, ok := yotta.AsAPIError(err); ok {
			detail = apiErr.Detail
		}
		return "Ingestion failed: " + detail, err
	}

	if resp.IngestedChunks != nil {
		log.Infof("文档入库完成, chunks: %d", *resp.IngestedChunks)
		return fmt.Sprintf("Ingested %d chunks.", *resp.IngestedChunks), nil
	}
	// 其他响应原样展示
	return string(resp.Raw), nil
}
