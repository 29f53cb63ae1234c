package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunInvalidConfig(t *testing.T) {
	err := run(writeConfig(t, "chat:\n  top_k: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置加载失败")
}

func TestRunStoreFailureReturnsError(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	logDir := t.TempDir()
	err := run(writeConfig(t, "session:\n  store: redis\n  redis:\n    addr: \""+addr+"\"\nlog:\n  output_path: \""+logDir+"\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "会话存储初始化失败")

	// 返回前日志已经刷新到文件
	data, readErr := os.ReadFile(filepath.Join(logDir, "client.log"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "会话存储初始化失败")
}
