// Package model 包含了客户端的数据模型与后端接口契约。
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"yotta-chat-go/pkg/log"
)

// Role 表示消息的发送方。
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Label 返回消息块上显示的名字。
func (r Role) Label() string {
	if r == RoleUser {
		return "You"
	}
	return "Yotta"
}

// Message 是对话中的一条消息，只存在于 Document 中，不做持久化。
type Message struct {
	Role      Role
	Text      string
	Citations []Citation
}

// Citation 是回答所引用的来源信息，仅用于展示。
type Citation struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
	Page   *int   `json:"page,omitempty"`
	OCR    bool   `json:"ocr,omitempty"`
	URL    string `json:"url,omitempty"`
}

// ErrInvalidCitation 表示引用项既不是字符串也不是对象。
var ErrInvalidCitation = errors.New("citation must be a string or an object")

// UnmarshalJSON 同时接受字符串路径和 {id, source, page, ocr, url} 对象。
func (c *Citation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidCitation
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Citation{Source: s}
		return nil
	case '{':
		var raw struct {
			ID     json.RawMessage `json:"id"`
			Source string          `json:"source"`
			Page   json.RawMessage `json:"page"`
			OCR    bool            `json:"ocr"`
			URL    string          `json:"url"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*c = Citation{Source: raw.Source, OCR: raw.OCR, URL: raw.URL}
		c.ID = looseString(raw.ID)
		page, ok := parsePage(raw.Page)
		if !ok {
			// 页码只用于展示，无法识别时丢弃而不是让整个回答失败
			log.Warnw("忽略无法识别的引用页码", "source", c.Label(), "page", string(raw.Page))
		}
		c.Page = page
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCitation, string(data))
	}
}

// looseString 把数字或字符串形式的 id 统一成字符串。
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// parsePage 接受整数（包括 3.0）或数字字符串 "3"。缺省或 null 返回 (nil, true)，
// 其他值返回 (nil, false)。
func parsePage(raw json.RawMessage) (*int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return nil, false
	}
	page := int(f)
	return &page, true
}

// Label 返回引用的显示名，source 为空时回退到 id。
func (c Citation) Label() string {
	if c.Source != "" {
		return c.Source
	}
	return c.ID
}

// Describe 返回一条引用的完整描述，例如 "doc.pdf, page 3, OCR"。
func (c Citation) Describe() string {
	parts := []string{c.Label()}
	if c.Page != nil {
		parts = append(parts, "page "+strconv.Itoa(*c.Page))
	}
	if c.OCR {
		parts = append(parts, "OCR")
	}
	if c.URL != "" {
		parts = append(parts, c.URL)
	}
	return strings.Join(parts, ", ")
}
