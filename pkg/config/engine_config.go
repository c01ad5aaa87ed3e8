// Package config 引擎配置加载。
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig 引擎框架配置（对外导出）
type EngineConfig struct {
	ProcessEngine struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
			Env          string `yaml:"env"`
		} `yaml:"general"`
		Storage struct {
			Database struct {
				Type            string        `yaml:"type"` // memory/sqlite/mysql/postgres
				DSN             string        `yaml:"dsn"`
				MaxOpenConns    int           `yaml:"max_open_conns"`
				MaxIdleConns    int           `yaml:"max_idle_conns"`
				ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
				ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
			} `yaml:"database"`
		} `yaml:"storage"`
		Runtime struct {
			// PerformanceCountingEnabled 计数优化开关，新建流程实例从此处继承
			PerformanceCountingEnabled *bool `yaml:"performance_counting_enabled"`
		} `yaml:"runtime"`
		History struct {
			Level string `yaml:"level"` // none/activity/full
		} `yaml:"history"`
		Events struct {
			Enabled    *bool `yaml:"enabled"`
			BufferSize int   `yaml:"buffer_size"`
		} `yaml:"events"`
	} `yaml:"process-engine"`
}

// Load 加载配置文件
// 文件不存在时返回默认配置。
func Load(path string) (*EngineConfig, error) {
	cfg := &EngineConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		cfg.ApplyDefaults()
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// GetDatabaseType 获取数据库类型
func (c *EngineConfig) GetDatabaseType() string {
	return c.ProcessEngine.Storage.Database.Type
}

// GetDatabaseDSN 获取数据库DSN
func (c *EngineConfig) GetDatabaseDSN() string {
	return c.ProcessEngine.Storage.Database.DSN
}

// CountingEnabled 计数优化是否开启
func (c *EngineConfig) CountingEnabled() bool {
	if c.ProcessEngine.Runtime.PerformanceCountingEnabled == nil {
		return true
	}
	return *c.ProcessEngine.Runtime.PerformanceCountingEnabled
}

// EventsEnabled 事件分发是否开启
func (c *EngineConfig) EventsEnabled() bool {
	if c.ProcessEngine.Events.Enabled == nil {
		return true
	}
	return *c.ProcessEngine.Events.Enabled
}

// ApplyDefaults 应用默认值
func (c *EngineConfig) ApplyDefaults() {
	// General默认值
	if c.ProcessEngine.General.InstanceName == "" {
		c.ProcessEngine.General.InstanceName = "process-engine"
	}
	if c.ProcessEngine.General.LogLevel == "" {
		c.ProcessEngine.General.LogLevel = "info"
	}
	if c.ProcessEngine.General.Env == "" {
		c.ProcessEngine.General.Env = "dev"
	}

	// Database默认值
	if c.ProcessEngine.Storage.Database.Type == "" {
		c.ProcessEngine.Storage.Database.Type = "memory"
	}
	if c.ProcessEngine.Storage.Database.MaxOpenConns <= 0 {
		c.ProcessEngine.Storage.Database.MaxOpenConns = 10
	}
	if c.ProcessEngine.Storage.Database.MaxIdleConns <= 0 {
		c.ProcessEngine.Storage.Database.MaxIdleConns = 5
	}
	if c.ProcessEngine.Storage.Database.ConnMaxLifetime <= 0 {
		c.ProcessEngine.Storage.Database.ConnMaxLifetime = 2 * time.Hour
	}
	if c.ProcessEngine.Storage.Database.ConnMaxIdleTime <= 0 {
		c.ProcessEngine.Storage.Database.ConnMaxIdleTime = 1 * time.Hour
	}

	// History默认值
	if c.ProcessEngine.History.Level == "" {
		c.ProcessEngine.History.Level = "activity"
	}

	// Events默认值
	if c.ProcessEngine.Events.BufferSize <= 0 {
		c.ProcessEngine.Events.BufferSize = 64
	}
}
