// Package history 将执行树的运行时变迁镜像到审计记录：
// 运行时活动实例行（缓存优先去重）与历史存储中的流程实例/活动/变量记录。
package history

import (
	"errors"
	"time"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/manager"
	"github.com/LENAX/process-engine/pkg/storage"
)

// Level 历史记录级别（对外导出）
type Level int

const (
	// LevelNone 不记录历史
	LevelNone Level = iota
	// LevelActivity 记录流程实例与活动实例
	LevelActivity
	// LevelFull 额外记录变量与变更明细
	LevelFull
)

// ParseLevel 解析历史级别配置值
func ParseLevel(s string) Level {
	switch s {
	case "none":
		return LevelNone
	case "full":
		return LevelFull
	default:
		return LevelActivity
	}
}

// Manager 默认历史管理器（对外导出）
// 实现command.HistoryManager契约。
type Manager struct {
	level Level
	clock func() time.Time
}

var _ command.HistoryManager = (*Manager)(nil)

// NewManager 创建历史管理器
func NewManager(level Level, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{level: level, clock: clock}
}

// RecordProcessInstanceStart 记录流程实例启动
func (m *Manager) RecordProcessInstanceStart(c *command.Context, pi *entity.Execution) error {
	if m.level < LevelActivity {
		return nil
	}
	return c.Session().History().InsertProcessInstance(c.Ctx(), &storage.HistoricProcessInstance{
		ID:                  pi.ID,
		ProcessDefinitionID: pi.ProcessDefinitionID,
		BusinessKey:         pi.BusinessKey,
		StartTime:           pi.StartTime,
		StartUserID:         pi.StartUserID,
		StartActivityID:     pi.StartActivityID,
		TenantID:            pi.TenantID,
	})
}

// RecordProcessInstanceEnd 记录流程实例结束
// 历史行不存在时跳过（历史已被清除或级别不记录）。
func (m *Manager) RecordProcessInstanceEnd(c *command.Context, pi *entity.Execution, state, reason, endActivityID string) error {
	if m.level < LevelActivity {
		return nil
	}
	h, err := c.Session().History().FindProcessInstanceByID(c.Ctx(), pi.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	now := m.clock()
	h.EndTime = &now
	d := now.Sub(h.StartTime).Milliseconds()
	h.DurationInMS = &d
	h.EndState = state
	h.DeleteReason = reason
	h.EndActivityID = endActivityID
	return c.Session().History().UpdateProcessInstance(c.Ctx(), h)
}

// RecordActivityStart 记录活动开始
// 仅对FlowNode类型的当前流程元素生效；同一(执行,活动)已有未结束记录时不重复创建。
func (m *Manager) RecordActivityStart(c *command.Context, execution *entity.Execution) error {
	if m.level < LevelActivity {
		return nil
	}
	fe := execution.CurrentFlowElement
	if fe == nil || !fe.FlowNode {
		return nil
	}

	existing, err := m.findActivityInstance(c, execution.ID, fe.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	ai := entity.NewActivityInstance()
	ai.ActivityID = fe.ID
	ai.ActivityName = fe.Name
	ai.ActivityType = entity.LowerCamel(fe.TypeName)
	ai.ExecutionID = execution.ID
	ai.ProcessInstanceID = execution.ProcessInstanceID
	ai.ProcessDefinitionID = execution.ProcessDefinitionID
	ai.TenantID = execution.TenantID
	ai.StartTime = m.clock()

	if err := manager.Insert(c, c.Session().ActivityInstances(), ai, false); err != nil {
		return err
	}
	return c.Session().History().InsertActivityInstance(c.Ctx(), &storage.HistoricActivityInstance{
		ID:                ai.ID,
		ActivityID:        ai.ActivityID,
		ActivityName:      ai.ActivityName,
		ActivityType:      ai.ActivityType,
		ExecutionID:       ai.ExecutionID,
		ProcessInstanceID: ai.ProcessInstanceID,
		StartTime:         ai.StartTime,
	})
}

// RecordActivityEnd 记录活动结束
func (m *Manager) RecordActivityEnd(c *command.Context, execution *entity.Execution, deleteReason string) error {
	if m.level < LevelActivity {
		return nil
	}
	activityID := execution.ActivityID
	if execution.CurrentFlowElement != nil {
		activityID = execution.CurrentFlowElement.ID
	}
	if activityID == "" {
		return nil
	}

	ai, err := m.findActivityInstance(c, execution.ID, activityID)
	if err != nil {
		return err
	}
	now := m.clock()
	if ai != nil {
		ai.MarkEnded(now, deleteReason)
		if err := manager.Update(c, c.Session().ActivityInstances(), ai); err != nil {
			return err
		}
	}

	h, err := c.Session().History().FindOpenActivityInstance(c.Ctx(), execution.ID, activityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	h.EndTime = &now
	d := now.Sub(h.StartTime).Milliseconds()
	h.DurationInMS = &d
	h.DeleteReason = deleteReason
	return c.Session().History().UpdateActivityInstance(c.Ctx(), h)
}

// RecordTaskCreated 记录任务创建（把任务ID/处理人写回未结束的活动实例记录）
func (m *Manager) RecordTaskCreated(c *command.Context, task *entity.Task) error {
	if m.level < LevelActivity {
		return nil
	}
	ai, err := m.findActivityInstance(c, task.ExecutionID, task.TaskDefKey)
	if err != nil {
		return err
	}
	if ai == nil {
		return nil
	}
	ai.TaskID = task.ID
	ai.Assignee = task.Assignee
	if err := manager.Update(c, c.Session().ActivityInstances(), ai); err != nil {
		return err
	}
	return m.syncHistoricActivity(c, ai)
}

// RecordTaskInfoChange 记录任务信息变更（处理人等）
func (m *Manager) RecordTaskInfoChange(c *command.Context, task *entity.Task) error {
	if m.level < LevelActivity {
		return nil
	}
	ai, err := m.findActivityInstance(c, task.ExecutionID, task.TaskDefKey)
	if err != nil {
		return err
	}
	if ai == nil || ai.TaskID != task.ID {
		return nil
	}
	ai.Assignee = task.Assignee
	if err := manager.Update(c, c.Session().ActivityInstances(), ai); err != nil {
		return err
	}
	return m.syncHistoricActivity(c, ai)
}

// SyncUserTaskExecution 任务换绑执行时同步活动实例记录
func (m *Manager) SyncUserTaskExecution(c *command.Context, task *entity.Task, oldExecutionID string) error {
	if m.level < LevelActivity {
		return nil
	}
	ai, err := m.findActivityInstance(c, oldExecutionID, task.TaskDefKey)
	if err != nil {
		return err
	}
	if ai == nil {
		return nil
	}
	ai.ExecutionID = task.ExecutionID
	if err := manager.Update(c, c.Session().ActivityInstances(), ai); err != nil {
		return err
	}

	h, err := c.Session().History().FindOpenActivityInstance(c.Ctx(), oldExecutionID, task.TaskDefKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	h.ExecutionID = task.ExecutionID
	return c.Session().History().UpdateActivityInstance(c.Ctx(), h)
}

// RecordVariableCreate 记录变量创建
func (m *Manager) RecordVariableCreate(c *command.Context, v *entity.VariableInstance, sourceExecutionID string) error {
	if m.level < LevelFull {
		return nil
	}
	now := m.clock()
	if err := c.Session().History().UpsertVariable(c.Ctx(), &storage.HistoricVariable{
		ID:                v.ID,
		Name:              v.Name,
		TypeName:          v.TypeName,
		TextValue:         v.TextValue,
		ExecutionID:       v.ExecutionID,
		ProcessInstanceID: v.ProcessInstanceID,
		TaskID:            v.TaskID,
		CreateTime:        now,
		LastUpdatedTime:   now,
	}); err != nil {
		return err
	}
	return m.insertDetail(c, "variable-create", v, sourceExecutionID)
}

// RecordVariableUpdate 记录变量更新
func (m *Manager) RecordVariableUpdate(c *command.Context, v *entity.VariableInstance, sourceExecutionID string) error {
	if m.level < LevelFull {
		return nil
	}
	now := m.clock()
	if err := c.Session().History().UpsertVariable(c.Ctx(), &storage.HistoricVariable{
		ID:                v.ID,
		Name:              v.Name,
		TypeName:          v.TypeName,
		TextValue:         v.TextValue,
		ExecutionID:       v.ExecutionID,
		ProcessInstanceID: v.ProcessInstanceID,
		TaskID:            v.TaskID,
		LastUpdatedTime:   now,
	}); err != nil {
		return err
	}
	return m.insertDetail(c, "variable-update", v, sourceExecutionID)
}

// RecordVariableRemoved 记录变量删除
func (m *Manager) RecordVariableRemoved(c *command.Context, v *entity.VariableInstance) error {
	if m.level < LevelFull {
		return nil
	}
	if err := c.Session().History().UpsertVariable(c.Ctx(), &storage.HistoricVariable{
		ID:                v.ID,
		Name:              v.Name,
		TypeName:          v.TypeName,
		TextValue:         v.TextValue,
		ExecutionID:       v.ExecutionID,
		ProcessInstanceID: v.ProcessInstanceID,
		TaskID:            v.TaskID,
		LastUpdatedTime:   m.clock(),
		Removed:           true,
	}); err != nil {
		return err
	}
	return m.insertDetail(c, "variable-remove", v, v.ExecutionID)
}

// DeleteHistoricProcessInstance 清除流程实例的全部历史行
func (m *Manager) DeleteHistoricProcessInstance(c *command.Context, processInstanceID string) error {
	return c.Session().History().DeleteByProcessInstanceID(c.Ctx(), processInstanceID)
}

// ===== 内部辅助 =====

// findActivityInstance 查找(执行,活动)的未结束活动实例记录
// 缓存优先：本事务内刚创建的记录还没flush也能命中。
func (m *Manager) findActivityInstance(c *command.Context, executionID, activityID string) (*entity.ActivityInstance, error) {
	if executionID == "" || activityID == "" {
		return nil, nil
	}
	for _, cached := range c.Cache().FindInCache(entity.KindActivityInstance) {
		ai, ok := cached.(*entity.ActivityInstance)
		if ok && ai.ExecutionID == executionID && ai.ActivityID == activityID && ai.IsOpen() {
			return ai, nil
		}
	}
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}
	row, err := c.Session().ActivityInstances().FindOpenByExecutionIDAndActivityID(c.Ctx(), executionID, activityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c.Cache().Put(entity.KindActivityInstance, row.ID, row)
	return row, nil
}

func (m *Manager) syncHistoricActivity(c *command.Context, ai *entity.ActivityInstance) error {
	h, err := c.Session().History().FindOpenActivityInstance(c.Ctx(), ai.ExecutionID, ai.ActivityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	h.TaskID = ai.TaskID
	h.Assignee = ai.Assignee
	return c.Session().History().UpdateActivityInstance(c.Ctx(), h)
}

func (m *Manager) insertDetail(c *command.Context, detailType string, v *entity.VariableInstance, sourceExecutionID string) error {
	return c.Session().History().InsertDetail(c.Ctx(), &storage.HistoricDetail{
		ID:                entity.NewID(),
		DetailType:        detailType,
		VariableName:      v.Name,
		TypeName:          v.TypeName,
		TextValue:         v.TextValue,
		SourceExecutionID: sourceExecutionID,
		ProcessInstanceID: v.ProcessInstanceID,
		Time:              m.clock(),
	})
}
