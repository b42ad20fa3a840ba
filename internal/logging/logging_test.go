package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/serroba/turl/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("builds console and json loggers", func(t *testing.T) {
		for _, format := range []string{"", "console", "json"} {
			logger, err := logging.New(logging.Config{Format: format, Level: "info"})

			require.NoError(t, err)
			assert.NotNil(t, logger)
		}
	})

	t.Run("rejects unknown formats and levels", func(t *testing.T) {
		_, err := logging.New(logging.Config{Format: "xml", Level: "info"})
		require.Error(t, err)

		_, err = logging.New(logging.Config{Level: "loud"})
		require.Error(t, err)
	})

	t.Run("writes to the rotating file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "turl.log")

		logger, err := logging.New(logging.Config{Level: "debug", File: path})
		require.NoError(t, err)

		logger.Info("hello file", zap.String("key", "abc"))
		_ = logger.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello file")
		assert.Contains(t, string(data), `"key":"abc"`)
	})
}

func TestWatermillAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := logging.NewWatermillAdapter(zap.New(core))

	adapter.Info("subscribed", watermill.LogFields{"topic": "url.created"})
	adapter.With(watermill.LogFields{"consumer": "analytics"}).Error("ack failed", errors.New("boom"), nil)
	adapter.Trace("polling", nil)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "subscribed", entries[0].Message)
	assert.Equal(t, "url.created", entries[0].ContextMap()["topic"])
	assert.Equal(t, "analytics", entries[1].ContextMap()["consumer"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}
