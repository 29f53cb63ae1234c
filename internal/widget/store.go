package widget

import (
	"context"
	"fmt"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/repository"
	"yotta-chat-go/pkg/database"
)

// OpenStore 根据 session.store 创建会话存储，返回的 closer 用于退出时释放连接。
func OpenStore(ctx context.Context, cfg config.SessionConfig) (repository.SessionStore, func(), error) {
	switch cfg.Store {
	case "memory":
		return repository.NewMemorySessionStore(), func() {}, nil
	case "redis":
		rdb, err := database.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisSessionStore(rdb), func() { _ = rdb.Close() }, nil
	case "file", "":
		return repository.NewFileSessionStore(cfg.FilePath), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
