package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile-backend/internal/infrastructure/config"
)

func TestLoad(t *testing.T) {
	t.Run("parses yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: 9090
  allowed_origins:
    - http://localhost:8000
storage:
  database_path: /tmp/test.db
gemini:
  api_key: test-key
  model: gemini-2.5-flash
reconcile:
  fuzzy_window_days: 3
  emit_delay_millis: 10
observability:
  logging:
    level: debug
    format: json
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := config.Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"http://localhost:8000"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, "/tmp/test.db", cfg.Storage.DatabasePath)
		assert.Equal(t, "test-key", cfg.Gemini.APIKey)
		assert.Equal(t, 3, cfg.Reconcile.FuzzyWindowDays)
		assert.Equal(t, 10, cfg.Reconcile.EmitDelayMillis)
		assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	})

	t.Run("expands environment variables", func(t *testing.T) {
		t.Setenv("TEST_GEMINI_KEY", "expanded-key")

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "gemini:\n  api_key: ${TEST_GEMINI_KEY}\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "expanded-key", cfg.Gemini.APIKey)
	})

	t.Run("applies defaults for missing sections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage:\n  database_path: x.db\n"), 0o644))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 2, cfg.Reconcile.FuzzyWindowDays)
		assert.Equal(t, "info", cfg.Observability.Logging.Level)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := config.Load("/nonexistent/config.yaml")
		assert.Error(t, err)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECONCILE_DB_PATH", "env.db")
	t.Setenv("RECONCILE_FUZZY_WINDOW_DAYS", "5")
	t.Setenv("LOG_FORMAT", "json")

	cfg := config.LoadFromEnv()

	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 5, cfg.Reconcile.FuzzyWindowDays)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
}
