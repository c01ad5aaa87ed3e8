package variable

import (
	"errors"
	"fmt"
	"time"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/manager"
	"github.com/LENAX/process-engine/pkg/storage"
)

// TaskScope 任务变量作用域（对外导出）
// 任务局部变量优先，未命中时退回任务所属执行的作用域链。
type TaskScope struct {
	task  *entity.Task
	clock func() time.Time

	used        map[string]*entity.VariableInstance
	local       map[string]*entity.VariableInstance
	localLoaded bool

	execScope       *ExecutionScope
	execScopeLoaded bool
}

// NewTaskScope 创建任务变量作用域
func NewTaskScope(t *entity.Task) *TaskScope {
	return NewTaskScopeWithClock(t, nil)
}

// NewTaskScopeWithClock 创建任务变量作用域并注入事件时间钟
func NewTaskScopeWithClock(t *entity.Task, clock func() time.Time) *TaskScope {
	if clock == nil {
		clock = time.Now
	}
	return &TaskScope{
		task:  t,
		clock: clock,
		used:  make(map[string]*entity.VariableInstance),
		local: make(map[string]*entity.VariableInstance),
	}
}

// Task 作用域绑定的任务
func (s *TaskScope) Task() *entity.Task { return s.task }

// GetVariable 读取变量（任务局部优先，再沿执行作用域链）
func (s *TaskScope) GetVariable(c *command.Context, name string) (any, bool, error) {
	if v, ok := s.used[name]; ok {
		return v.Value(), true, nil
	}
	v, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return nil, false, err
	}
	if v != nil {
		return v.Value(), true, nil
	}
	exec, err := s.executionScope(c)
	if err != nil {
		return nil, false, err
	}
	if exec == nil {
		return nil, false, nil
	}
	return exec.GetVariable(c, name)
}

// SetVariable 写入变量
// 任务局部已有定义时更新局部，否则委托给执行作用域链。
func (s *TaskScope) SetVariable(c *command.Context, name string, value any, fetchAll bool) error {
	if v, ok := s.used[name]; ok {
		return s.updateLocal(c, v, value)
	}
	v, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return err
	}
	if v != nil {
		return s.updateLocal(c, v, value)
	}
	exec, err := s.executionScope(c)
	if err != nil {
		return err
	}
	if exec == nil {
		_, err := s.CreateVariableLocal(c, name, value)
		return err
	}
	return exec.SetVariable(c, name, value, fetchAll)
}

// CreateVariableLocal 创建任务局部变量
// 同名局部变量已存在时返回ErrVariableAlreadyExists。
func (s *TaskScope) CreateVariableLocal(c *command.Context, name string, value any) (*entity.VariableInstance, error) {
	existing, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s（任务%s）", ErrVariableAlreadyExists, name, s.task.ID)
	}

	v := entity.NewVariableInstance(name, value)
	v.TaskID = s.task.ID
	v.ExecutionID = s.task.ExecutionID
	v.ProcessInstanceID = s.task.ProcessInstanceID
	v.ScopeID = s.task.ID
	v.ScopeType = "task"

	if err := manager.Insert(c, c.Session().Variables(), v, false); err != nil {
		return nil, err
	}
	s.local[name] = v
	s.used[name] = v

	// 任务级变量计数
	if s.task.IsCountEnabled {
		s.task.VariableCount++
		if err := manager.Update(c, c.Session().Tasks(), s.task); err != nil {
			return nil, err
		}
	}
	if c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:              event.VariableCreated,
			EntityKind:        entity.KindVariable,
			EntityID:          v.ID,
			ExecutionID:       v.ExecutionID,
			ProcessInstanceID: v.ProcessInstanceID,
			Reason:            name,
			Timestamp:         s.clock(),
		})
	}
	if c.History() != nil {
		if err := c.History().RecordVariableCreate(c, v, s.task.ExecutionID); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *TaskScope) updateLocal(c *command.Context, v *entity.VariableInstance, value any) error {
	v.SetValue(value)
	if err := manager.Update(c, c.Session().Variables(), v); err != nil {
		return err
	}
	s.used[v.Name] = v

	if c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:              event.VariableUpdated,
			EntityKind:        entity.KindVariable,
			EntityID:          v.ID,
			ExecutionID:       v.ExecutionID,
			ProcessInstanceID: v.ProcessInstanceID,
			Reason:            v.Name,
			Timestamp:         s.clock(),
		})
	}
	if c.History() != nil {
		return c.History().RecordVariableUpdate(c, v, s.task.ExecutionID)
	}
	return nil
}

func (s *TaskScope) findLocalVariableInstance(c *command.Context, name string) (*entity.VariableInstance, error) {
	if v, ok := s.local[name]; ok {
		return v, nil
	}
	if s.localLoaded {
		return nil, nil
	}
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}
	row, err := c.Session().Variables().FindByTaskIDAndName(c.Ctx(), s.task.ID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询任务变量失败: %s.%s: %w", s.task.ID, name, err)
	}
	if cached, ok := c.Cache().FindByID(entity.KindVariable, row.ID); ok {
		row = cached.(*entity.VariableInstance)
	} else {
		c.Cache().Put(entity.KindVariable, row.ID, row)
	}
	s.local[name] = row
	return row, nil
}

// executionScope 任务所属执行的作用域（任务未绑定执行时返回nil）
func (s *TaskScope) executionScope(c *command.Context) (*ExecutionScope, error) {
	if s.execScopeLoaded {
		return s.execScope, nil
	}
	if s.task.ExecutionID == "" {
		s.execScopeLoaded = true
		return nil, nil
	}
	exec, err := manager.FindByID(c, c.Session().Executions(), entity.KindExecution, s.task.ExecutionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.execScopeLoaded = true
			return nil, nil
		}
		return nil, err
	}
	s.execScope = &ExecutionScope{
		execution: exec,
		clock:     s.clock,
		used:      s.used,
		local:     make(map[string]*entity.VariableInstance),
	}
	s.execScopeLoaded = true
	return s.execScope, nil
}
