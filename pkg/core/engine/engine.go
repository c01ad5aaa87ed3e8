// Package engine 引擎对外门面：按配置装配存储、事件分发与各管理器，
// 并把常用操作包装成单个工作单元。
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LENAX/process-engine/pkg/config"
	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/history"
	"github.com/LENAX/process-engine/pkg/core/job"
	"github.com/LENAX/process-engine/pkg/core/runtime"
	"github.com/LENAX/process-engine/pkg/core/variable"
	"github.com/LENAX/process-engine/pkg/storage"
	"github.com/LENAX/process-engine/pkg/storage/memory"
	"github.com/LENAX/process-engine/pkg/storage/mysql"
	"github.com/LENAX/process-engine/pkg/storage/postgres"
	"github.com/LENAX/process-engine/pkg/storage/sqlite"
	"github.com/LENAX/process-engine/pkg/storage/sqlstore"
)

// Engine 流程引擎（对外导出）
type Engine struct {
	cfg        *config.EngineConfig
	store      storage.Store
	dispatcher event.Dispatcher
	history    *history.Manager
	executor   *command.Executor
	executions *runtime.ExecutionManager
	jobs       *job.Manager
}

// New 按配置创建引擎
func New(cfg *config.EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = &config.EngineConfig{}
	}
	cfg.ApplyDefaults()

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store)
}

// NewWithStore 使用已有存储后端创建引擎（测试注入用）
func NewWithStore(cfg *config.EngineConfig, store storage.Store) (*Engine, error) {
	if cfg == nil {
		cfg = &config.EngineConfig{}
	}
	cfg.ApplyDefaults()

	var dispatcher event.Dispatcher
	if cfg.EventsEnabled() {
		dispatcher = event.NewWatermillDispatcher(int64(cfg.ProcessEngine.Events.BufferSize),
			cfg.ProcessEngine.General.LogLevel == "debug")
	} else {
		dispatcher = event.NopDispatcher{}
	}

	hist := history.NewManager(history.ParseLevel(cfg.ProcessEngine.History.Level), time.Now)

	eng := &Engine{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		history:    hist,
		executor:   command.NewExecutor(store, dispatcher, hist),
		executions: runtime.NewExecutionManager(runtime.ManagerConfig{
			PerformanceCountingEnabled: cfg.CountingEnabled(),
		}),
		jobs: job.NewManager(time.Now),
	}

	log.Printf("流程引擎已装配: 实例=%s 存储=%s 历史级别=%s 计数优化=%t",
		cfg.ProcessEngine.General.InstanceName, cfg.GetDatabaseType(),
		cfg.ProcessEngine.History.Level, cfg.CountingEnabled())
	return eng, nil
}

// openStore 按配置打开存储后端
func openStore(cfg *config.EngineConfig) (storage.Store, error) {
	dbType := cfg.GetDatabaseType()
	dsn := cfg.GetDatabaseDSN()

	var (
		s   *sqlstore.Store
		err error
	)
	switch dbType {
	case "memory", "":
		return memory.NewStore(), nil
	case "sqlite":
		s, err = sqlite.Open(dsn)
	case "mysql":
		s, err = mysql.Open(dsn)
	case "postgres":
		s, err = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("打开%s存储失败: %w", dbType, err)
	}

	db := s.DB()
	dbCfg := cfg.ProcessEngine.Storage.Database
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(dbCfg.ConnMaxIdleTime)
	return s, nil
}

// Executions 执行树管理器
func (e *Engine) Executions() *runtime.ExecutionManager { return e.executions }

// Jobs 异步任务管理器
func (e *Engine) Jobs() *job.Manager { return e.jobs }

// History 历史管理器
func (e *Engine) History() *history.Manager { return e.history }

// Dispatcher 事件分发器
func (e *Engine) Dispatcher() event.Dispatcher { return e.dispatcher }

// Store 存储后端
func (e *Engine) Store() storage.Store { return e.store }

// Execute 在一个工作单元内执行任意命令（对外导出）
func (e *Engine) Execute(ctx context.Context, fn func(c *command.Context) error) error {
	return e.executor.Execute(ctx, fn)
}

// StartProcessInstance 启动流程实例
func (e *Engine) StartProcessInstance(ctx context.Context, req runtime.CreateProcessInstanceRequest) (*entity.Execution, error) {
	var pi *entity.Execution
	err := e.executor.Execute(ctx, func(c *command.Context) error {
		var err error
		pi, err = e.executions.CreateProcessInstanceExecution(c, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pi, nil
}

// DeleteProcessInstance 删除流程实例（cascade为true时级联删除整棵树及子流程实例）
func (e *Engine) DeleteProcessInstance(ctx context.Context, processInstanceID, reason string, cascade bool) error {
	return e.executor.Execute(ctx, func(c *command.Context) error {
		return e.executions.DeleteProcessInstance(c, processInstanceID, reason, cascade)
	})
}

// SetVariable 在执行的作用域链上设置变量
// 沿task→execution→parents链找到第一个持有该名称的作用域并更新，都没有时创建。
func (e *Engine) SetVariable(ctx context.Context, executionID, name string, value any) error {
	return e.executor.Execute(ctx, func(c *command.Context) error {
		execution, err := e.executions.FindByID(c, executionID)
		if err != nil {
			return err
		}
		return variable.NewExecutionScope(execution).SetVariable(c, name, value, false)
	})
}

// GetVariable 沿作用域链读取变量（不存在时第二个返回值为false）
func (e *Engine) GetVariable(ctx context.Context, executionID, name string) (any, bool, error) {
	var (
		value any
		found bool
	)
	err := e.executor.Execute(ctx, func(c *command.Context) error {
		execution, err := e.executions.FindByID(c, executionID)
		if err != nil {
			return err
		}
		value, found, err = variable.NewExecutionScope(execution).GetVariable(c, name)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// CreateUserTask 在执行上创建用户任务
func (e *Engine) CreateUserTask(ctx context.Context, executionID, name, taskDefKey, assignee string) (*entity.Task, error) {
	var t *entity.Task
	err := e.executor.Execute(ctx, func(c *command.Context) error {
		execution, err := e.executions.FindByID(c, executionID)
		if err != nil {
			return err
		}
		t, err = e.executions.Tasks().CreateTask(c, execution, name, taskDefKey, assignee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateJob 在执行上创建异步任务
func (e *Engine) CreateJob(ctx context.Context, executionID string, req job.CreateJobRequest) (*entity.Job, error) {
	var j *entity.Job
	err := e.executor.Execute(ctx, func(c *command.Context) error {
		execution, err := e.executions.FindByID(c, executionID)
		if err != nil {
			return err
		}
		j, err = e.jobs.CreateJob(c, execution, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// GetExecutionTree 加载并重建根流程实例的完整执行树
func (e *Engine) GetExecutionTree(ctx context.Context, rootProcessInstanceID string) (*entity.Execution, error) {
	var root *entity.Execution
	err := e.executor.Execute(ctx, func(c *command.Context) error {
		var err error
		root, err = e.executions.FindByRootProcessInstanceID(c, rootProcessInstanceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Close 关闭引擎（分发器与存储后端）
func (e *Engine) Close() error {
	if d, ok := e.dispatcher.(*event.WatermillDispatcher); ok {
		if err := d.Close(); err != nil {
			log.Printf("关闭事件分发器失败: %v", err)
		}
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("关闭存储后端失败: %w", err)
	}
	log.Println("流程引擎已关闭")
	return nil
}
