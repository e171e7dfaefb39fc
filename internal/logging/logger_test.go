package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pdfchat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observe installs an in-memory zap core and returns its recorded entries.
func observe(t *testing.T, lc config.LoggingConfig) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	install(zap.New(core), lc, nil)
	t.Cleanup(CloseAll)
	return logs
}

func TestDisabledByDefault(t *testing.T) {
	CloseAll()
	require.NoError(t, Initialize(config.LoggingConfig{}))

	assert.False(t, IsDebugMode())
	assert.False(t, IsCategoryEnabled(CategoryAPI))

	// Must not panic
	API("request %d", 1)
	Get(CategoryUpload).Error("boom")
}

func TestCategoriesRouteToCore(t *testing.T) {
	logs := observe(t, config.LoggingConfig{DebugMode: true})

	API("chat completed in %dms", 12)
	UploadError("upload failed: %v", "timeout")
	SessionDebug("mode=%s", "PDF Mode")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "chat completed in 12ms", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "api", entries[0].ContextMap()["category"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "upload", entries[1].ContextMap()["category"])

	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, "session", entries[2].ContextMap()["category"])
}

func TestBootDebug(t *testing.T) {
	logs := observe(t, config.LoggingConfig{DebugMode: true})

	BootDebug("timeouts: chat=%v", 0)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "boot", entries[0].ContextMap()["category"])
	assert.Equal(t, "timeouts: chat=0", entries[0].Message)
}

func TestCategoryFilter(t *testing.T) {
	logs := observe(t, config.LoggingConfig{
		DebugMode:  true,
		Categories: map[string]bool{"watch": false},
	})

	Watch("ignored")
	Store("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
}

func TestWithFields(t *testing.T) {
	logs := observe(t, config.LoggingConfig{DebugMode: true})

	Get(CategoryAPI).WithFields(map[string]interface{}{"request_id": 7}).Info("done")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 7, entries[0].ContextMap()["request_id"])
}

func TestGetCachesLoggers(t *testing.T) {
	observe(t, config.LoggingConfig{DebugMode: true})

	a := Get(CategoryUI)
	b := Get(CategoryUI)
	assert.Same(t, a, b)
}

func TestConcurrentGet(t *testing.T) {
	logs := observe(t, config.LoggingConfig{DebugMode: true})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Get(CategoryUpload).Info("progress %d", n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, logs.Len())
}

func TestInitializeWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "pdfchat.log")

	require.NoError(t, Initialize(config.LoggingConfig{
		DebugMode:  true,
		Level:      "info",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}))
	API("hello from test")
	Get(CategoryAPI).Debug("below level")
	CloseAll()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"message":"hello from test"`)
	assert.Contains(t, content, `"category":"api"`)
	assert.False(t, strings.Contains(content, "below level"))
}

func TestInitializeRequiresFile(t *testing.T) {
	err := Initialize(config.LoggingConfig{DebugMode: true})
	assert.Error(t, err)
	CloseAll()
}

func TestTimerThreshold(t *testing.T) {
	logs := observe(t, config.LoggingConfig{DebugMode: true})

	StartTimer(CategoryAPI, "fast").StopWithThreshold(time.Hour)
	StartTimer(CategoryAPI, "slow").StopWithThreshold(-1)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.True(t, strings.HasPrefix(entries[0].Message, "fast completed in"))
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.True(t, strings.HasPrefix(entries[1].Message, "slow took"))
}
