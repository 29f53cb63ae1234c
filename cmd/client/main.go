// Package main 是终端聊天客户端的入口。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"yotta-chat-go/internal/config"
	"yotta-chat-go/internal/handler"
	"yotta-chat-go/internal/render"
	"yotta-chat-go/internal/widget"
	"yotta-chat-go/pkg/log"
	"yotta-chat-go/pkg/yotta"

	"github.com/fatih/color"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

// run 完成初始化并运行交互循环，返回后所有 defer 都已执行。
func run(configPath string) error {
	// 1. 初始化配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	// 2. 初始化日志记录器，交互模式下只写文件
	if cfg.Log.OutputPath == "" {
		cfg.Log.OutputPath = "logs"
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath, false)
	defer log.Sync()
	log.Infow("客户端启动", "baseURL", cfg.API.BaseURL, "store", cfg.Session.Store, "transport", cfg.Chat.Transport)

	// Ctrl-C 取消正在进行的请求并退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化会话存储
	store, closeStore, err := widget.OpenStore(ctx, cfg.Session)
	if err != nil {
		log.Error("会话存储初始化失败", err)
		return fmt.Errorf("会话存储初始化失败: %w", err)
	}
	defer closeStore()

	// 4. 组装窗口
	renderer := render.NewTerminalRenderer(render.NewDocument(), color.Output)
	w, err := widget.New(ctx, widget.Handles{
		Config:   cfg,
		Client:   yotta.NewClient(cfg),
		Store:    store,
		Renderer: renderer,
	})
	if err != nil {
		log.Error("窗口初始化失败", err)
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer w.Close()

	lines := readLines(os.Stdin)
	confirm := func(prompt string) bool {
		color.Yellow("%s [y/N] ", prompt)
		select {
		case line, ok := <-lines:
			if !ok {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "y" || answer == "yes"
		case <-ctx.Done():
			return false
		}
	}
	h := handler.NewCommandHandler(w, renderer, confirm)
	color.New(color.Faint).Printf("Connected to %s (session %s). Type /help for commands.\n", cfg.API.BaseURL, w.SessionID())

	for {
		select {
		case <-ctx.Done():
			log.Info("接收到停机信号，正在退出...")
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if h.Handle(ctx, line) {
				return nil
			}
		}
	}
}

// readLines 在后台逐行读取输入，EOF 时关闭通道。
func readLines(f *os.File) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			out <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Error("读取输入失败", err)
		}
	}()
	return out
}
