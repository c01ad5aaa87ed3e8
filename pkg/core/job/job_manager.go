// Package job 管理执行上挂载的异步任务（async/timer/suspended/dead-letter/external-worker）。
// 每类任务的数量通过计数优化层独立维护，计数为0时删除/查询逻辑跳过数据库往返。
package job

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/manager"
)

// Manager 异步任务管理器（对外导出）
type Manager struct {
	parser cron.Parser
	clock  func() time.Time
}

// NewManager 创建异步任务管理器（cron表达式支持秒级精度）
func NewManager(clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		parser: cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		clock:  clock,
	}
}

// CreateJobRequest 任务创建请求（对外导出）
type CreateJobRequest struct {
	Kind        entity.JobKind
	HandlerType string
	HandlerCfg  string

	// DueDate 显式到期时间（定时任务二选一）
	DueDate *time.Time
	// RepeatExpr cron表达式，非空时据此计算下次到期时间
	RepeatExpr string

	Retries   int
	Exclusive bool
}

// CreateJob 在执行上创建异步任务
// 定时任务带cron表达式时计算下次触发时间作为到期时间；维护对应种类的执行计数。
func (m *Manager) CreateJob(c *command.Context, execution *entity.Execution, req CreateJobRequest) (*entity.Job, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	j := entity.NewJob(req.Kind)
	j.HandlerType = req.HandlerType
	j.HandlerCfg = req.HandlerCfg
	j.ExecutionID = execution.ID
	j.ProcessInstanceID = execution.ProcessInstanceID
	j.ProcessDefinitionID = execution.ProcessDefinitionID
	j.TenantID = execution.TenantID
	j.Exclusive = req.Exclusive
	j.CreateTime = m.clock()
	if req.Retries > 0 {
		j.Retries = req.Retries
	}

	if req.RepeatExpr != "" {
		sched, err := m.parser.Parse(req.RepeatExpr)
		if err != nil {
			return nil, fmt.Errorf("解析cron表达式失败: %q: %w", req.RepeatExpr, err)
		}
		next := sched.Next(m.clock())
		j.DueDate = &next
		j.RepeatExpr = req.RepeatExpr
	} else if req.DueDate != nil {
		due := *req.DueDate
		j.DueDate = &due
	}

	if err := manager.Insert(c, c.Session().Jobs(), j, true); err != nil {
		return nil, err
	}
	m.adjustCount(c, execution, req.Kind, 1)
	return j, nil
}

// DeleteJob 删除单个异步任务并维护计数，可选分发取消事件
func (m *Manager) DeleteJob(c *command.Context, execution *entity.Execution, j *entity.Job, reason string, fireEvents bool) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if fireEvents && c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:              event.JobCancelled,
			EntityKind:        entity.KindJob,
			EntityID:          j.ID,
			ExecutionID:       j.ExecutionID,
			ProcessInstanceID: j.ProcessInstanceID,
			Reason:            reason,
			Timestamp:         m.clock(),
		})
	}
	if err := manager.Delete(c, c.Session().Jobs(), j, fireEvents); err != nil {
		return err
	}
	if execution != nil {
		m.adjustCount(c, execution, j.JobKind, -1)
	}
	return nil
}

// MoveJob 把任务迁移到另一个种类（定时到期转可执行、重试耗尽转死信等）
// 同时迁移执行上两个种类的计数。
func (m *Manager) MoveJob(c *command.Context, execution *entity.Execution, j *entity.Job, newKind entity.JobKind) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if j.JobKind == newKind {
		return nil
	}
	oldKind := j.JobKind
	j.JobKind = newKind
	if err := manager.Update(c, c.Session().Jobs(), j); err != nil {
		return err
	}
	if execution != nil {
		m.adjustCount(c, execution, oldKind, -1)
		m.adjustCount(c, execution, newKind, 1)
	}
	return nil
}

// NextDueDate 按cron表达式计算after之后的下次触发时间（重复定时任务续期用）
func (m *Manager) NextDueDate(repeatExpr string, after time.Time) (time.Time, error) {
	sched, err := m.parser.Parse(repeatExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析cron表达式失败: %q: %w", repeatExpr, err)
	}
	return sched.Next(after), nil
}

// adjustCount 调整执行上对应任务种类的计数（计数关闭时不维护）
func (m *Manager) adjustCount(c *command.Context, execution *entity.Execution, kind entity.JobKind, delta int32) {
	if !execution.CountEnabled() {
		return
	}
	switch kind {
	case entity.JobKindAsync:
		execution.Counts.Jobs.Add(delta)
	case entity.JobKindTimer:
		execution.Counts.TimerJobs.Add(delta)
	case entity.JobKindSuspended:
		execution.Counts.SuspendedJobs.Add(delta)
	case entity.JobKindDeadLetter:
		execution.Counts.DeadLetterJobs.Add(delta)
	case entity.JobKindExternalWorker:
		execution.Counts.ExternalWorkerJobs.Add(delta)
	default:
		return
	}
	c.RegisterCountDirty(execution)
}
