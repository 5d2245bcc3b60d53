package fileloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewFileLoader("").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 20*time.Second, cfg.Web.ShutdownTimeout)
	assert.Equal(t, "defect-events", cfg.Kafka.DefectEventsTopic)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.Kafka.GroupID)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFileLoader_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
web:
  port: 9000
  max_defect_keys: 50
  read_timeout: 2s
db:
  dsn: postgres://db/defects
  max_conns: 20
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
  group_id: defect-audit
log:
  level: debug
`)

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, 50, cfg.Web.MaxDefectKeys)
	assert.Equal(t, 2*time.Second, cfg.Web.ReadTimeout)
	assert.Equal(t, "postgres://db/defects", cfg.DB.DSN)
	assert.Equal(t, int32(20), cfg.DB.MaxConns)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "defect-audit", cfg.Kafka.GroupID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8090, cfg.Web.DebugPort, "unset keys keep defaults")
}

func TestFileLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db:\n  dsn: postgres://file/defects\n")
	t.Setenv("DEFECT_DB_DSN", "postgres://env/defects")
	t.Setenv("DEFECT_WEB_PORT", "7000")
	t.Setenv("DEFECT_KAFKA_ENABLED", "true")
	t.Setenv("DEFECT_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/defects", cfg.DB.DSN)
	assert.Equal(t, 7000, cfg.Web.Port)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestFileLoader_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load(context.Background())
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("invalid settings", func(t *testing.T) {
		path := writeConfig(t, "kafka:\n  enabled: true\n")
		_, err := NewFileLoader(path).Load(context.Background())
		assert.ErrorContains(t, err, "kafka.brokers is required")
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewFileLoader("").Load(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
