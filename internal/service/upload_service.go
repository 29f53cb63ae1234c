package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"yotta-chat-go/pkg/log"
	"yotta-chat-go/pkg/yotta"
)

// NoFilesText 是没有选择文件时的提示。
const NoFilesText = "Please choose at least one file."

// UploadService 定义了文件上传的接口，已上传的文件名只保存在本地列表中。
type UploadService interface {
	Upload(ctx context.Context, paths []string) ([]string, error)
	// Remove 只从本地列表中移除，不会通知后端。
	Remove(name string) bool
	Files() []string
	Status() string
	Reset()
}

type uploadService struct {
	client    yotta.Client
	session   SessionService
	statusTTL time.Duration

	mu     sync.Mutex
	files  []string
	status StatusLine
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(client yotta.Client, session SessionService, statusTTL time.Duration) UploadService {
	return &uploadService{
		client:    client,
		session:   session,
		statusTTL: statusTTL,
	}
}

// Upload 把所选文件和会话标识一起上传，成功后把后端返回的文件名追加到本地列表。
func (s *uploadService) Upload(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		s.status.Set(NoFilesText, s.statusTTL)
		return nil, nil
	}

	files := make([]yotta.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll(files)
			s.fail(fmt.Errorf("failed to open %s: %w", p, err))
			return nil, err
		}
		files = append(files, yotta.File{Name: filepath.Base(p), Reader: f})
	}
	defer closeAll(files)

	resp, err := s.client.Upload(ctx, s.session.ID(), files)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.files = append(s.files, resp.Saved...)
	s.mu.Unlock()
	s.status.Set(fmt.Sprintf("Uploaded %d file(s).", len(resp.Saved)), s.statusTTL)
	log.Infow("文件上传成功", "session", s.session.ID(), "saved", resp.Saved)
	return resp.Saved, nil
}

// fail 显示错误信息，statusTTL 之后自动清空。
func (s *uploadService) fail(err error) {
	log.Error("文件上传失败", err)
	text := err.Error()
	if apiErr, ok := yotta.AsAPIError(err); ok {
		text = apiErr.Detail
	}
	s.status.Set("Upload failed: "+text, s.statusTTL)
}

func closeAll(files []yotta.File) {
	for _, f := range files {
		if c, ok := f.Reader.(*os.File); ok {
			_ = c.Close()
		}
	}
}

func (s *uploadService) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.files {
		if f == name {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return true
		}
	}
	return false
}

func (s *uploadService) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

func (s *uploadService) Status() string {
	return s.status.Get()
}

func (s *uploadService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}
