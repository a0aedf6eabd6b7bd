package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "transactionlog", cfg.Admin.Username)
	assert.Equal(t, "admintransactionlog", cfg.Admin.Password)
	assert.Equal(t, "./transaction.json", cfg.Ingest.File)
	assert.Equal(t, "aggregate", cfg.Ingest.DepositMode)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, 10, cfg.App.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "info", cfg.Database.LogLevel, "database logging follows log.level")
}

func TestLoadDatabaseLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\ndatabase:\n  log_level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "warn", cfg.Database.LogLevel)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9100
database:
  driver: sqlite
  path: /tmp/ledger.db
jwt:
  secret: from-file
  access_ttl: 15m
ingest:
  deposit_mode: sequential
app:
  page_size: 25
  max_page_size: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TXLOG_ADMIN_PASSWORD", "from-env")
	t.Setenv("TXLOG_SERVER_PORT", "9200")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port, "env wins over the file")
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.Path)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "from-env", cfg.Admin.Password)
	assert.Equal(t, "sequential", cfg.Ingest.DepositMode)
	assert.Equal(t, 25, cfg.App.PageSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"unknown driver":       "database:\n  driver: postgres\n",
		"mysql without dsn":    "database:\n  driver: mysql\n",
		"unknown deposit mode": "ingest:\n  deposit_mode: batched\n",
		"page size over max":   "app:\n  page_size: 200\n  max_page_size: 100\n",
		"unknown log level":    "log:\n  level: loud\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
