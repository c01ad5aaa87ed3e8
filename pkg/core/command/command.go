package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LENAX/process-engine/pkg/core/cache"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/storage"
)

// ErrNoActiveUnitOfWork 在没有活动工作单元的情况下触发了延迟加载/存储访问
// 快速失败而不是静默返回过期或空数据
var ErrNoActiveUnitOfWork = errors.New("没有活动的工作单元")

// HistoryManager 历史记录协作方接口（对外导出）
// 本核心只消费此契约；默认实现见pkg/core/history
type HistoryManager interface {
	// RecordProcessInstanceStart 记录流程实例启动
	RecordProcessInstanceStart(c *Context, pi *entity.Execution) error
	// RecordProcessInstanceEnd 记录流程实例结束（状态/原因/结束时间）
	RecordProcessInstanceEnd(c *Context, pi *entity.Execution, state, reason, endActivityID string) error
	// RecordActivityStart 记录活动开始（执行进入FlowNode时）
	RecordActivityStart(c *Context, execution *entity.Execution) error
	// RecordActivityEnd 记录活动结束（执行离开时）
	RecordActivityEnd(c *Context, execution *entity.Execution, deleteReason string) error
	// RecordTaskCreated 记录任务创建
	RecordTaskCreated(c *Context, task *entity.Task) error
	// RecordTaskInfoChange 记录任务信息变更（assignee等）
	RecordTaskInfoChange(c *Context, task *entity.Task) error
	// SyncUserTaskExecution 任务换绑执行时同步活动实例记录
	SyncUserTaskExecution(c *Context, task *entity.Task, oldExecutionID string) error
	// RecordVariableCreate 记录变量创建（附带来源执行的历史明细）
	RecordVariableCreate(c *Context, v *entity.VariableInstance, sourceExecutionID string) error
	// RecordVariableUpdate 记录变量更新
	RecordVariableUpdate(c *Context, v *entity.VariableInstance, sourceExecutionID string) error
	// RecordVariableRemoved 记录变量删除
	RecordVariableRemoved(c *Context, v *entity.VariableInstance) error
	// DeleteHistoricProcessInstance 清除流程实例的全部历史行
	DeleteHistoricProcessInstance(c *Context, processInstanceID string) error
}

// Context 一个工作单元的命令上下文（对外导出）
// 携带事务会话、实体缓存、事件分发器与历史协作方；
// 单线程使用：一个工作单元只有一个逻辑写者，跨工作单元冲突由乐观锁解决。
type Context struct {
	ctx        context.Context
	session    storage.Session
	cache      *cache.EntityCache
	dispatcher event.Dispatcher
	history    HistoryManager

	mu         sync.Mutex
	countDirty map[string]*entity.Execution
	closed     bool
}

// Ctx 获取底层context.Context
func (c *Context) Ctx() context.Context { return c.ctx }

// Session 获取存储会话（工作单元已关闭时返回nil）
func (c *Context) Session() storage.Session {
	if c == nil || c.closed {
		return nil
	}
	return c.session
}

// Cache 获取实体缓存
func (c *Context) Cache() *cache.EntityCache { return c.cache }

// Dispatcher 获取事件分发器
func (c *Context) Dispatcher() event.Dispatcher { return c.dispatcher }

// History 获取历史协作方
func (c *Context) History() HistoryManager { return c.history }

// EnsureActive 校验工作单元是否仍然活动（延迟加载前必须调用）
func (c *Context) EnsureActive() error {
	if c == nil || c.closed || c.session == nil {
		return ErrNoActiveUnitOfWork
	}
	return nil
}

// RegisterCountDirty 登记计数有变更的执行，flush时折算增量并持久化
func (c *Context) RegisterCountDirty(e *entity.Execution) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countDirty == nil {
		c.countDirty = make(map[string]*entity.Execution)
	}
	c.countDirty[e.ID] = e
}

// flushCounts 将计数增量折入基值并更新到存储（已删除的执行跳过）
func (c *Context) flushCounts() error {
	c.mu.Lock()
	dirty := c.countDirty
	c.countDirty = nil
	c.mu.Unlock()

	for _, e := range dirty {
		if e.IsDeleted {
			continue
		}
		e.Counts.Reconcile()
		if err := c.session.Executions().Update(c.ctx, e); err != nil {
			return fmt.Errorf("flush执行计数失败: %s: %w", e.ID, err)
		}
	}
	return nil
}

// close 关闭工作单元（此后所有延迟加载快速失败）
func (c *Context) close() {
	c.closed = true
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Executor 命令执行器（对外导出）
// 实现工作单元模式：打开事务 → 执行命令 → flush计数 → 提交；
// 任一步失败则整体回滚，级联删除没有部分成功路径。
type Executor struct {
	store      storage.Store
	dispatcher event.Dispatcher
	history    HistoryManager
}

// NewExecutor 创建命令执行器
func NewExecutor(store storage.Store, dispatcher event.Dispatcher, history HistoryManager) *Executor {
	if dispatcher == nil {
		dispatcher = event.NopDispatcher{}
	}
	return &Executor{
		store:      store,
		dispatcher: dispatcher,
		history:    history,
	}
}

// Execute 在一个工作单元内执行命令
func (e *Executor) Execute(ctx context.Context, fn func(c *Context) error) error {
	session, err := e.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("打开存储会话失败: %w", err)
	}

	c := &Context{
		ctx:        ctx,
		session:    session,
		cache:      cache.NewEntityCache(),
		dispatcher: e.dispatcher,
		history:    e.history,
	}

	if err := fn(c); err != nil {
		_ = session.Rollback()
		c.close()
		return err
	}

	if err := c.flushCounts(); err != nil {
		_ = session.Rollback()
		c.close()
		return err
	}

	if err := session.Commit(); err != nil {
		c.close()
		return fmt.Errorf("提交工作单元失败: %w", err)
	}
	c.close()
	return nil
}
