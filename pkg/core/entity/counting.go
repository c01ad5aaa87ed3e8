package entity

import (
	"sync/atomic"
)

// relatedCount 单个关联计数：基值 + 原子增量
// 基值来自数据库加载，增量在一个工作单元内通过atomic累加，
// flush时调用reconcile将增量折入基值后持久化，避免同一工作单元内并发修改丢失更新。
type relatedCount struct {
	base  int32
	delta atomic.Int32
}

// Value 当前计数 = 基值 + 未折算增量
func (c *relatedCount) Value() int32 {
	return c.base + c.delta.Load()
}

// Add 累加增量（可为负）
func (c *relatedCount) Add(n int32) {
	c.delta.Add(n)
}

// SetBase 设置基值（存储层加载时使用）
func (c *relatedCount) SetBase(n int32) {
	c.base = n
	c.delta.Store(0)
}

// reconcile 将增量折入基值（flush时调用）
func (c *relatedCount) reconcile() {
	c.base += c.delta.Swap(0)
}

// ExecutionCounts 执行关联计数集合（计数优化层，对外导出）
// 维护各类关联实体的数量，使删除/查询逻辑在计数为0时跳过数据库往返。
// IsCountEnabled为false时所有计数不可信，调用方必须退回查询路径；
// 该标志在创建时从父执行继承，一旦关闭不再重新开启。
type ExecutionCounts struct {
	IsCountEnabled bool

	EventSubscriptions relatedCount
	Tasks              relatedCount
	Jobs               relatedCount
	TimerJobs          relatedCount
	SuspendedJobs      relatedCount
	DeadLetterJobs     relatedCount
	ExternalWorkerJobs relatedCount
	Variables          relatedCount
	IdentityLinks      relatedCount
}

// Reconcile 将所有计数的增量折入基值（flush时由工作单元调用）
func (c *ExecutionCounts) Reconcile() {
	c.EventSubscriptions.reconcile()
	c.Tasks.reconcile()
	c.Jobs.reconcile()
	c.TimerJobs.reconcile()
	c.SuspendedJobs.reconcile()
	c.DeadLetterJobs.reconcile()
	c.ExternalWorkerJobs.reconcile()
	c.Variables.reconcile()
	c.IdentityLinks.reconcile()
}

// snapshot 复制计数（基值取base+delta折算值，增量清零）
func (c *ExecutionCounts) snapshot() ExecutionCounts {
	out := ExecutionCounts{IsCountEnabled: c.IsCountEnabled}
	out.EventSubscriptions.base = c.EventSubscriptions.Value()
	out.Tasks.base = c.Tasks.Value()
	out.Jobs.base = c.Jobs.Value()
	out.TimerJobs.base = c.TimerJobs.Value()
	out.SuspendedJobs.base = c.SuspendedJobs.Value()
	out.DeadLetterJobs.base = c.DeadLetterJobs.Value()
	out.ExternalWorkerJobs.base = c.ExternalWorkerJobs.Value()
	out.Variables.base = c.Variables.Value()
	out.IdentityLinks.base = c.IdentityLinks.Value()
	return out
}

// ===== Execution上的计数便捷方法 =====

// CountEnabled 计数优化是否对该执行生效
func (e *Execution) CountEnabled() bool {
	return e.Counts.IsCountEnabled
}

// EventSubscriptionCount 事件订阅计数
func (e *Execution) EventSubscriptionCount() int32 { return e.Counts.EventSubscriptions.Value() }

// TaskCount 任务计数
func (e *Execution) TaskCount() int32 { return e.Counts.Tasks.Value() }

// JobCount 异步任务计数
// 注意：只读取Jobs自身的增量，各类任务的计数相互独立。
func (e *Execution) JobCount() int32 { return e.Counts.Jobs.Value() }

// TimerJobCount 定时任务计数
func (e *Execution) TimerJobCount() int32 { return e.Counts.TimerJobs.Value() }

// SuspendedJobCount 挂起任务计数
func (e *Execution) SuspendedJobCount() int32 { return e.Counts.SuspendedJobs.Value() }

// DeadLetterJobCount 死信任务计数
func (e *Execution) DeadLetterJobCount() int32 { return e.Counts.DeadLetterJobs.Value() }

// ExternalWorkerJobCount 外部工作者任务计数
func (e *Execution) ExternalWorkerJobCount() int32 { return e.Counts.ExternalWorkerJobs.Value() }

// VariableCount 变量计数
func (e *Execution) VariableCount() int32 { return e.Counts.Variables.Value() }

// IdentityLinkCount 身份关联计数
func (e *Execution) IdentityLinkCount() int32 { return e.Counts.IdentityLinks.Value() }
