package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/不存在的路径/engine.yaml")
	require.NoError(t, err)

	assert.Equal(t, "process-engine", cfg.ProcessEngine.General.InstanceName)
	assert.Equal(t, "info", cfg.ProcessEngine.General.LogLevel)
	assert.Equal(t, "dev", cfg.ProcessEngine.General.Env)
	assert.Equal(t, "memory", cfg.GetDatabaseType())
	assert.Equal(t, 10, cfg.ProcessEngine.Storage.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.ProcessEngine.Storage.Database.MaxIdleConns)
	assert.Equal(t, 2*time.Hour, cfg.ProcessEngine.Storage.Database.ConnMaxLifetime)
	assert.Equal(t, "activity", cfg.ProcessEngine.History.Level)
	assert.Equal(t, 64, cfg.ProcessEngine.Events.BufferSize)
	// 计数优化和事件分发默认开启
	assert.True(t, cfg.CountingEnabled())
	assert.True(t, cfg.EventsEnabled())
}

func TestLoad_ParsesYAMLAndMergesDefaults(t *testing.T) {
	content := `
process-engine:
  general:
    instance_name: "订单引擎"
    log_level: "debug"
  storage:
    database:
      type: "sqlite"
      dsn: "file:engine.db"
      max_open_conns: 20
  runtime:
    performance_counting_enabled: false
  history:
    level: "full"
  events:
    enabled: false
`
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "订单引擎", cfg.ProcessEngine.General.InstanceName)
	assert.Equal(t, "debug", cfg.ProcessEngine.General.LogLevel)
	assert.Equal(t, "sqlite", cfg.GetDatabaseType())
	assert.Equal(t, "file:engine.db", cfg.GetDatabaseDSN())
	assert.Equal(t, 20, cfg.ProcessEngine.Storage.Database.MaxOpenConns)
	assert.Equal(t, "full", cfg.ProcessEngine.History.Level)
	assert.False(t, cfg.CountingEnabled())
	assert.False(t, cfg.EventsEnabled())

	// 未显式配置的字段仍取默认值
	assert.Equal(t, "dev", cfg.ProcessEngine.General.Env)
	assert.Equal(t, 5, cfg.ProcessEngine.Storage.Database.MaxIdleConns)
	assert.Equal(t, 64, cfg.ProcessEngine.Events.BufferSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("process-engine: [异常"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
