package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"yotta-chat-go/internal/repository"
	"yotta-chat-go/pkg/log"
	"yotta-chat-go/pkg/yotta"

	"github.com/google/uuid"
)

// Resetter 是清理会话时需要一起清空的本地状态（消息列表、已上传文件列表）。
type Resetter interface {
	Reset()
}

// SessionService 管理客户端的会话标识。
type SessionService interface {
	// Load 读取已保存的标识，没有时生成一个新的并保存。
	Load(ctx context.Context) (string, error)
	ID() string
	// Rotate 丢弃当前标识并生成新的标识。
	Rotate(ctx context.Context) (string, error)
	// Clear 在 confirm 返回 true 时请求后端清理会话，成功后清空 local 中的本地状态。
	Clear(ctx context.Context, confirm func() bool, local ...Resetter) (bool, error)
	// Beacon 在退出时尽力通知后端回收会话。
	Beacon() <-chan struct{}
}

type sessionService struct {
	store         repository.SessionStore
	client        yotta.Client
	key           string
	rotateOnClear bool

	mu sync.RWMutex
	id string
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(store repository.SessionStore, client yotta.Client, key string, rotateOnClear bool) SessionService {
	return &sessionService{
		store:         store,
		client:        client,
		key:           key,
		rotateOnClear: rotateOnClear,
	}
}

// Load 不会因为存储失败而失败：读写错误只记录日志，生成的标识仍然可用。
func (s *sessionService) Load(ctx context.Context) (string, error) {
	stored, err := s.store.Get(ctx, s.key)
	if err == nil && stored != "" {
		s.setID(stored)
		log.Infof("复用已保存的会话标识: %s", stored)
		return stored, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Warnf("读取会话标识失败, 将生成新的标识: %v", err)
	}

	id := NewSessionID()
	if err := s.store.Set(ctx, s.key, id); err != nil {
		log.Warnf("保存会话标识失败, 本次运行仍使用 %s: %v", id, err)
	}
	s.setID(id)
	log.Infof("生成新的会话标识: %s", id)
	return id, nil
}

func (s *sessionService) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *sessionService) setID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

func (s *sessionService) Rotate(ctx context.Context) (string, error) {
	if err := s.store.Delete(ctx, s.key); err != nil {
		log.Warnf("删除会话标识失败: %v", err)
	}
	return s.Load(ctx)
}

func (s *sessionService) Clear(ctx context.Context, confirm func() bool, local ...Resetter) (bool, error) {
	if confirm != nil && !confirm() {
		return false, nil
	}

	id := s.ID()
	if err := s.client.ClearSession(ctx, id); err != nil {
		log.Errorf("清理会话 %s 失败: %v", id, err)
		return false, fmt.Errorf("failed to clear session: %w", err)
	}

	for _, r := range local {
		if r != nil {
			r.Reset()
		}
	}
	if s.rotateOnClear {
		if _, err := s.Rotate(ctx); err != nil {
			return true, err
		}
	}
	log.Infof("会话 %s 已清理", id)
	return true, nil
}

func (s *sessionService) Beacon() <-chan struct{} {
	return s.client.Beacon(s.ID())
}

// NewSessionID 优先生成随机 UUID，失败时回退到 "毫秒时间戳-随机后缀"。
func NewSessionID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	log.Warnf("生成 UUID 失败, 使用时间戳回退: %v", err)
	return fallbackSessionID()
}

func fallbackSessionID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), time.Now().UnixNano()%100000)
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
