// Package main 启动一个内存中的 v1 契约后端，用于本地联调终端客户端。
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/fakeapi"
	"yotta-chat-go/pkg/log"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file (log section only)")
	flag.Parse()

	// 1. 初始化日志记录器
	cfg, err := config.Load(*configPath)
	if err != nil {
		// 配置不可用时仍然可以用默认日志启动
		cfg.Log.Level, cfg.Log.Format = "info", "console"
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, "", true)
	defer log.Sync()
	if err != nil {
		log.Warnf("配置加载失败, 使用默认日志设置: %v", err)
	}

	// 2. 创建路由
	backend := fakeapi.New()
	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("开发后端启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Infof("服务已关闭, 共处理 %d 个请求", backend.Calls())
}
