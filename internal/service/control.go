// Package service 包含了客户端的业务逻辑层。
package service

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy 表示控件正在执行上一次操作。
var ErrBusy = errors.New("action already in progress")

// Control 是一个触发按钮的状态：idle -> busy -> idle。
type Control struct {
	mu        sync.Mutex
	idleLabel string
	busyLabel string
	busy      bool
}

// NewControl 创建一个空闲状态的控件。
func NewControl(idleLabel, busyLabel string) *Control {
	return &Control{idleLabel: idleLabel, busyLabel: busyLabel}
}

// Begin 把控件切换到 busy，已经是 busy 时返回 false。
func (c *Control) Begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

// End 恢复控件的可用状态和原来的标签。
func (c *Control) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
}

// Busy 返回控件是否被禁用。
func (c *Control) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Label 返回当前显示的标签。
func (c *Control) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return c.busyLabel
	}
	return c.idleLabel
}

// BusyLabel 返回 busy 状态下的标签。
func (c *Control) BusyLabel() string {
	return c.busyLabel
}

// StatusLine 是一行会自动消失的状态提示。
type StatusLine struct {
	mu    sync.Mutex
	text  string
	gen   uint64
	timer *time.Timer
}

// Set 显示 text，ttl > 0 时在 ttl 之后自动清空。
// 较新的 Set 会取消之前的定时清空。
func (s *StatusLine) Set(text string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if ttl <= 0 {
		return
	}
	gen := s.gen
	s.timer = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen {
			s.text = ""
			s.timer = nil
		}
	})
}

// Get 返回当前的状态提示。
func (s *StatusLine) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}
