// Package config 负责加载和管理客户端的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个客户端的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Session SessionConfig `mapstructure:"session"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Log     LogConfig     `mapstructure:"log"`
}

// APIConfig 存储后端地址与各个端点路径。
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	ChatPath   string        `mapstructure:"chat_path" validate:"required,startswith=/"`
	UploadPath string        `mapstructure:"upload_path" validate:"required,startswith=/"`
	ClearPath  string        `mapstructure:"clear_path" validate:"required,startswith=/"`
	IngestPath string        `mapstructure:"ingest_path" validate:"required,startswith=/"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// ChatConfig 存储聊天相关的配置。
type ChatConfig struct {
	TopK        int    `mapstructure:"top_k" validate:"min=1,max=50"`
	Transport   string `mapstructure:"transport" validate:"oneof=http websocket"`
	StreamPath  string `mapstructure:"stream_path" validate:"required,startswith=/"`
	Welcome     string `mapstructure:"welcome"`
	Placeholder string `mapstructure:"placeholder" validate:"required"`
	Fallback    string `mapstructure:"fallback" validate:"required"`
}

// SessionConfig 存储会话标识的存储方式。
type SessionConfig struct {
	Store         string        `mapstructure:"store" validate:"oneof=file memory redis"`
	Key           string        `mapstructure:"key" validate:"required"`
	FilePath      string        `mapstructure:"file_path"`
	RotateOnClear bool          `mapstructure:"rotate_on_clear"`
	BeaconOnExit  bool          `mapstructure:"beacon_on_exit"`
	BeaconTimeout time.Duration `mapstructure:"beacon_timeout" validate:"min=0"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// UploadConfig 存储上传状态提示的显示时间。
type UploadConfig struct {
	StatusTTL time.Duration `mapstructure:"status_ttl" validate:"min=0"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

// setDefaults 注册所有默认值，配置文件和环境变量可以覆盖它们。
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.chat_path", "/api/chat")
	v.SetDefault("api.upload_path", "/api/upload")
	v.SetDefault("api.clear_path", "/api/clear_session")
	v.SetDefault("api.ingest_path", "/api/ingest")
	v.SetDefault("api.timeout", 60*time.Second)

	v.SetDefault("chat.top_k", 4)
	v.SetDefault("chat.transport", "http")
	v.SetDefault("chat.stream_path", "/api/chat/ws")
	v.SetDefault("chat.welcome", "Hi! I'm Yotta - your property management assistant. Ask me about leases, fees, maintenance, or policies.")
	v.SetDefault("chat.placeholder", "Thinking…")
	v.SetDefault("chat.fallback", "I don't know based on the available documents.")

	v.SetDefault("session.store", "file")
	v.SetDefault("session.key", "yotta_session_id")
	v.SetDefault("session.file_path", defaultSessionFile())
	v.SetDefault("session.rotate_on_clear", false)
	v.SetDefault("session.beacon_on_exit", true)
	v.SetDefault("session.beacon_timeout", 2*time.Second)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)

	v.SetDefault("upload.status_ttl", 4*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".yotta", "session.json")
	}
	return filepath.Join(dir, "yotta", "session.json")
}

// Load 读取 .env、可选的 YAML 文件以及 YOTTA_ 前缀的环境变量，并校验结果。
// configPath 为空或文件不存在时只使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	// .env 是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("YOTTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 与前端的 window.API_URL 覆盖对应
	_ = v.BindEnv("api.base_url", "YOTTA_API_URL", "YOTTA_API_BASE_URL")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 校验配置，redis 存储必须提供地址。
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Session.Store == "redis" && c.Session.Redis.Addr == "" {
		return errors.New("配置校验失败: session.redis.addr 不能为空")
	}
	if c.Session.Store == "file" && c.Session.FilePath == "" {
		return errors.New("配置校验失败: session.file_path 不能为空")
	}
	return nil
}

// Endpoint 拼接 base_url 与路径。
func (c APIConfig) Endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
