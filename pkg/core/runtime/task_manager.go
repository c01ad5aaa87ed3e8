package runtime

import (
	"fmt"
	"time"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/manager"
)

// TaskManager 任务删除协作方（对外导出）
// 执行树管理器通过它删除执行上挂载的用户任务，
// 任务删除必须走级联清理路径：身份关联、局部变量、历史记录。
type TaskManager struct {
	clock func() time.Time
}

// NewTaskManager 创建任务管理器
func NewTaskManager(clock func() time.Time) *TaskManager {
	if clock == nil {
		clock = time.Now
	}
	return &TaskManager{clock: clock}
}

// CreateTask 在执行上创建用户任务
// 继承流程实例/定义引用与计数开关，维护执行任务计数并记录历史。
func (tm *TaskManager) CreateTask(c *command.Context, execution *entity.Execution, name, taskDefKey, assignee string) (*entity.Task, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	t := entity.NewTask("")
	t.Name = name
	t.TaskDefKey = taskDefKey
	t.Assignee = assignee
	t.ExecutionID = execution.ID
	t.ProcessInstanceID = execution.ProcessInstanceID
	t.ProcessDefinitionID = execution.ProcessDefinitionID
	t.TenantID = execution.TenantID
	t.CreateTime = tm.clock()
	t.IsCountEnabled = execution.CountEnabled()

	if err := manager.Insert(c, c.Session().Tasks(), t, true); err != nil {
		return nil, err
	}
	if c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:              event.TaskCreated,
			EntityKind:        entity.KindTask,
			EntityID:          t.ID,
			ExecutionID:       execution.ID,
			ProcessInstanceID: execution.ProcessInstanceID,
			ActivityID:        taskDefKey,
			Timestamp:         tm.clock(),
		})
	}

	if execution.CountEnabled() {
		execution.Counts.Tasks.Add(1)
		c.RegisterCountDirty(execution)
	}
	if c.History() != nil {
		if err := c.History().RecordTaskCreated(c, t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddTaskIdentityLink 给任务添加身份关联（candidate、owner等）
// 维护任务级身份关联计数。
func (tm *TaskManager) AddTaskIdentityLink(c *command.Context, task *entity.Task, userID, groupID, linkType string) (*entity.IdentityLink, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	l := entity.NewIdentityLink(linkType)
	l.UserID = userID
	l.GroupID = groupID
	l.TaskID = task.ID
	l.ProcessInstanceID = task.ProcessInstanceID

	if err := c.Session().IdentityLinks().Insert(c.Ctx(), l); err != nil {
		return nil, fmt.Errorf("插入任务身份关联失败: %s: %w", task.ID, err)
	}
	c.Cache().Put(entity.KindIdentityLink, l.ID, l)

	if task.IsCountEnabled {
		task.IdentityLinkCount++
		if err := manager.Update(c, c.Session().Tasks(), task); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// DeleteTasksForExecution 删除一个执行上的全部任务
// 计数开启且任务计数为0时整体跳过，不触发任务表查询。
func (tm *TaskManager) DeleteTasksForExecution(c *command.Context, execution *entity.Execution, reason string) error {
	if execution.CountEnabled() && execution.TaskCount() == 0 {
		return nil
	}
	if err := c.EnsureActive(); err != nil {
		return err
	}

	tasks, err := c.Session().Tasks().FindByExecutionID(c.Ctx(), execution.ID)
	if err != nil {
		return fmt.Errorf("查询执行任务失败: %s: %w", execution.ID, err)
	}
	for _, t := range tasks {
		// 缓存命中时用缓存实体（看得到本事务内的状态）
		if cached, ok := c.Cache().FindByID(entity.KindTask, t.ID); ok {
			t = cached.(*entity.Task)
		}
		if err := tm.DeleteTask(c, execution, t, reason, true); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTask 删除单个任务及其关联数据（身份关联、局部变量）
// owner为任务所属执行（可为nil），非nil时维护其任务计数。
func (tm *TaskManager) DeleteTask(c *command.Context, owner *entity.Execution, task *entity.Task, reason string, fireEvents bool) error {
	if task.IsDeleted {
		return nil
	}
	if err := c.EnsureActive(); err != nil {
		return err
	}
	task.IsDeleted = true
	task.DeleteReason = reason

	s := c.Session()
	dispatch := fireEvents && c.Dispatcher().IsEnabled()

	// 身份关联（任务级计数门控）
	if !task.IsCountEnabled || task.IdentityLinkCount > 0 {
		if dispatch {
			links, err := s.IdentityLinks().FindByTaskID(c.Ctx(), task.ID)
			if err != nil {
				return fmt.Errorf("查询任务身份关联失败: %s: %w", task.ID, err)
			}
			for _, l := range links {
				c.Dispatcher().Dispatch(&event.EngineEvent{
					Type:              event.EntityDeleted,
					EntityKind:        entity.KindIdentityLink,
					EntityID:          l.ID,
					ProcessInstanceID: task.ProcessInstanceID,
					Timestamp:         tm.clock(),
				})
			}
		}
		if err := s.IdentityLinks().DeleteByTaskID(c.Ctx(), task.ID); err != nil {
			return fmt.Errorf("删除任务身份关联失败: %s: %w", task.ID, err)
		}
	}

	// 任务局部变量（字节数组先删）
	if !task.IsCountEnabled || task.VariableCount > 0 {
		vars, err := s.Variables().FindByTaskID(c.Ctx(), task.ID)
		if err != nil {
			return fmt.Errorf("查询任务变量失败: %s: %w", task.ID, err)
		}
		for _, v := range vars {
			if v.ByteArrayID != "" {
				if err := s.ByteArrays().Delete(c.Ctx(), v.ByteArrayID); err != nil {
					return fmt.Errorf("删除变量字节数组失败: %s: %w", v.ByteArrayID, err)
				}
				c.Cache().Remove(entity.KindByteArray, v.ByteArrayID)
			}
			if dispatch {
				c.Dispatcher().Dispatch(&event.EngineEvent{
					Type:              event.VariableDeleted,
					EntityKind:        entity.KindVariable,
					EntityID:          v.ID,
					ExecutionID:       task.ExecutionID,
					ProcessInstanceID: task.ProcessInstanceID,
					Reason:            v.Name,
					Timestamp:         tm.clock(),
				})
			}
			if c.History() != nil {
				if err := c.History().RecordVariableRemoved(c, v); err != nil {
					return err
				}
			}
			c.Cache().Remove(entity.KindVariable, v.ID)
		}
		if err := s.Variables().DeleteByTaskID(c.Ctx(), task.ID); err != nil {
			return fmt.Errorf("删除任务变量失败: %s: %w", task.ID, err)
		}
	}

	if err := manager.Delete(c, s.Tasks(), task, fireEvents); err != nil {
		return err
	}

	if owner != nil && owner.CountEnabled() {
		owner.Counts.Tasks.Add(-1)
		c.RegisterCountDirty(owner)
	}
	return nil
}
