// Package repository 提供了会话标识的存储实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

// ErrNotFound 表示存储中没有这个 key。
var ErrNotFound = errors.New("session key not found")

// SessionStore 定义了会话标识的读写接口，相当于浏览器的 localStorage / sessionStorage。
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ---------------------------------------------------------------- redis

// redisKeyTTL 是空闲过期时间，每次读取都会重新计时
const redisKeyTTL = 7 * 24 * time.Hour

type redisSessionStore struct {
	redisClient *redis.Client
	prefix      string
}

// NewRedisSessionStore 创建一个基于 Redis 的持久化存储，可在多台机器间共享。
func NewRedisSessionStore(redisClient *redis.Client) SessionStore {
	return &redisSessionStore{redisClient: redisClient, prefix: "yotta:session:"}
}

func (r *redisSessionStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.redisClient.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session key: %w", err)
	}
	// 活跃用户的标识不应过期
	if err := r.redisClient.Expire(ctx, r.prefix+key, redisKeyTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to refresh session key: %w", err)
	}
	return val, nil
}

func (r *redisSessionStore) Set(ctx context.Context, key, value string) error {
	if err := r.redisClient.Set(ctx, r.prefix+key, value, redisKeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set session key: %w", err)
	}
	return nil
}

func (r *redisSessionStore) Delete(ctx context.Context, key string) error {
	if err := r.redisClient.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------- memory

type memorySessionStore struct {
	c *cache.Cache
}

// NewMemorySessionStore 创建一个只在当前进程内有效的存储，进程退出即丢失（对应 sessionStorage）。
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{c: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (m *memorySessionStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (m *memorySessionStore) Set(_ context.Context, key, value string) error {
	m.c.Set(key, value, cache.NoExpiration)
	return nil
}

func (m *memorySessionStore) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// ---------------------------------------------------------------- file

type fileSessionStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSessionStore 创建一个以 JSON 文件保存的持久化存储（对应 localStorage）。
func NewFileSessionStore(path string) SessionStore {
	return &fileSessionStore{path: path}
}

func (f *fileSessionStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session file: %w", err)
	}
	return values, nil
}

func (f *fileSessionStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}
	// 先写临时文件再 rename，避免写到一半时被读到
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (f *fileSessionStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fileSessionStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *fileSessionStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}
