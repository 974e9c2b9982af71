package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLoggerLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("debug message")
	logger.SetLevel(INFO)
	logger.Debug("hidden")
	logger.Info("训练表 2 行")
	logger.Warning("warn")
	logger.Error("boom")

	content := readLog(t, path)
	assert.Contains(t, content, "DEBUG: debug message")
	assert.NotContains(t, content, "hidden")
	assert.Contains(t, content, "INFO: 训练表 2 行")
	assert.Contains(t, content, "WARNING: warn")
	assert.Contains(t, content, "ERROR: boom")
	assert.Equal(t, 4, strings.Count(content, "\n"))
}

func TestLoggerConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("line")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, strings.Count(readLog(t, path), "INFO: line\n"))
}

func TestLoggerReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("before")
	// 模拟外部 logrotate：先改名再 Reopen
	require.NoError(t, os.Rename(path, filepath.Join(dir, "app.log.1")))
	require.NoError(t, logger.Reopen(""))
	logger.Info("after")

	assert.Contains(t, readLog(t, filepath.Join(dir, "app.log.1")), "before")
	assert.Contains(t, readLog(t, path), "after")
	assert.NotContains(t, readLog(t, path), "before")

	other := filepath.Join(dir, "other.log")
	require.NoError(t, logger.Reopen(other))
	logger.Info("moved")
	assert.Contains(t, readLog(t, other), "moved")
}

func TestLoggerCheckRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	rotated, err := logger.CheckRotate(1024)
	require.NoError(t, err)
	assert.False(t, rotated)

	for i := 0; i < 50; i++ {
		logger.Info(strings.Repeat("x", 40))
	}
	rotated, err = logger.CheckRotate(1024)
	require.NoError(t, err)
	assert.True(t, rotated)

	logger.Info("fresh")
	assert.Contains(t, readLog(t, path), "fresh")
	assert.NotContains(t, readLog(t, path), "xxxx")

	matches, err := filepath.Glob(filepath.Join(dir, "app.*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLoggerClosed(t *testing.T) {
	logger, err := NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	// 关闭后写日志不应 panic
	logger.Info("ignored")
	require.NoError(t, logger.Close())
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"1024":             1024,
		"10 * 1024 * 1024": 10 * 1024 * 1024,
		"10*1024*1024":     10 * 1024 * 1024,
		" 2 *3 ":           6,
	}
	for expr, want := range cases {
		got, err := ParseSize(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}

	_, err := ParseSize("10MB")
	assert.Error(t, err)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "FATAL", FATAL.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
