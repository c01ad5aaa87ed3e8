// Package variable 实现分层变量作用域解析。
// 读写沿作用域链（任务 → 所属执行 → 父执行链）解析，
// 工作单元内维护"最近使用变量"缓存，保证同一事务内后写覆盖先写。
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

// ErrVariableAlreadyExists 局部变量已存在（需要覆盖语义的调用方必须走更新路径）
var ErrVariableAlreadyExists = errors.New("变量已存在")

// ExecutionScope 执行变量作用域（对外导出）
// 一个工作单元内使用：同一条作用域链上的scope共享"最近使用变量"缓存。
type ExecutionScope struct {
	execution *entity.Execution
	clock     func() time.Time

	// used 事务内最近使用变量缓存（整条链共享，按变量名索引）
	used map[string]*entity.VariableInstance

	// local 本作用域已加载的执行本地变量（按变量名索引）
	local       map[string]*entity.VariableInstance
	localLoaded bool

	parent       *ExecutionScope
	parentLoaded bool
}

// NewExecutionScope 创建执行变量作用域
func NewExecutionScope(e *entity.Execution) *ExecutionScope {
	return NewExecutionScopeWithClock(e, nil)
}

// NewExecutionScopeWithClock 创建执行变量作用域并注入事件时间钟
func NewExecutionScopeWithClock(e *entity.Execution, clock func() time.Time) *ExecutionScope {
	if clock == nil {
		clock = time.Now
	}
	return &ExecutionScope{
		execution: e,
		clock:     clock,
		used:      make(map[string]*entity.VariableInstance),
		local:     make(map[string]*entity.VariableInstance),
	}
}

// Execution 作用域绑定的执行
func (s *ExecutionScope) Execution() *entity.Execution { return s.execution }

// GetVariable 沿作用域链读取变量
// 返回值、是否找到、错误。
func (s *ExecutionScope) GetVariable(c *command.Context, name string) (any, bool, error) {
	v, err := s.findVariableInstance(c, name)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v.Value(), true, nil
}

// GetVariableLocal 仅读取本作用域的本地变量
func (s *ExecutionScope) GetVariableLocal(c *command.Context, name string) (any, bool, error) {
	v, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return v.Value(), true, nil
}

// HasVariableLocal 本作用域是否存在指定名称的本地变量
func (s *ExecutionScope) HasVariableLocal(c *command.Context, name string) (bool, error) {
	v, err := s.findLocalVariableInstance(c, name)
	return v != nil, err
}

// SetVariable 沿作用域链写入变量
//
// fetchAll为true时全量加载每层本地变量再判定归属：已有定义的祖先优先，
// 整条链都没有时在最顶层作用域创建。
// fetchAll为false时逐层做精确查询（懒加载模式），整条链都没有时在发起作用域创建。
func (s *ExecutionScope) SetVariable(c *command.Context, name string, value any, fetchAll bool) error {
	return s.setVariable(c, name, value, s, fetchAll)
}

// CreateVariableLocal 在本作用域创建本地变量
// 同名本地变量已存在时返回ErrVariableAlreadyExists，绝不静默覆盖。
func (s *ExecutionScope) CreateVariableLocal(c *command.Context, name string, value any) (*entity.VariableInstance, error) {
	existing, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s（执行%s）", ErrVariableAlreadyExists, name, s.execution.ID)
	}
	return s.createVariableInstance(c, name, value, s)
}

// RemoveVariableLocal 删除本作用域的本地变量（不存在时为空操作）
func (s *ExecutionScope) RemoveVariableLocal(c *command.Context, name string) error {
	v, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}

	if v.ByteArrayID != "" {
		if err := c.Session().ByteArrays().Delete(c.Ctx(), v.ByteArrayID); err != nil {
			return fmt.Errorf("删除变量字节数组失败: %s: %w", v.ByteArrayID, err)
		}
		c.Cache().Remove(entity.KindByteArray, v.ByteArrayID)
	}
	if err := manager.Delete(c, c.Session().Variables(), v, false); err != nil {
		return err
	}
	delete(s.local, name)
	delete(s.used, name)

	if s.execution.CountEnabled() {
		s.execution.Counts.Variables.Add(-1)
		c.RegisterCountDirty(s.execution)
	}
	if c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:              event.VariableDeleted,
			EntityKind:        entity.KindVariable,
			EntityID:          v.ID,
			ExecutionID:       s.execution.ID,
			ProcessInstanceID: s.execution.ProcessInstanceID,
			Reason:            name,
			Timestamp:         s.clock(),
		})
	}
	if c.History() != nil {
		return c.History().RecordVariableRemoved(c, v)
	}
	return nil
}

// ===== 写路径 =====

func (s *ExecutionScope) setVariable(c *command.Context, name string, value any, origin *ExecutionScope, fetchAll bool) error {
	// 1. 事务内最近使用缓存：本事务已触碰过的实体直接更新，绝不重定向到别处
	if v, ok := s.used[name]; ok {
		return s.updateVariableInstance(c, v, value, origin)
	}

	if fetchAll {
		// 2. 全量模式：本地有则本地改，否则整层上抛，顶层兜底创建
		if err := s.ensureLocalLoaded(c); err != nil {
			return err
		}
		if v, ok := s.local[name]; ok {
			return s.updateVariableInstance(c, v, value, origin)
		}
		parent, err := s.parentScope(c)
		if err != nil {
			return err
		}
		if parent != nil {
			return parent.setVariable(c, name, value, origin, true)
		}
		_, err = s.createVariableInstance(c, name, value, origin)
		return err
	}

	// 3. 懒加载模式：先查本地内存集合，再对存储做精确匹配
	v, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return err
	}
	if v != nil {
		return s.updateVariableInstance(c, v, value, origin)
	}
	parent, err := s.parentScope(c)
	if err != nil {
		return err
	}
	if parent != nil {
		return parent.setVariable(c, name, value, origin, false)
	}
	// 整条链都不拥有该变量：在发起作用域创建
	_, err = origin.createVariableInstance(c, name, value, origin)
	return err
}

func (s *ExecutionScope) updateVariableInstance(c *command.Context, v *entity.VariableInstance, value any, origin *ExecutionScope) error {
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
		return c.History().RecordVariableUpdate(c, v, origin.execution.ID)
	}
	return nil
}

func (s *ExecutionScope) createVariableInstance(c *command.Context, name string, value any, origin *ExecutionScope) (*entity.VariableInstance, error) {
	v := entity.NewVariableInstance(name, value)
	v.ExecutionID = s.execution.ID
	v.ProcessInstanceID = s.execution.ProcessInstanceID
	v.ScopeID = s.execution.ID
	v.ScopeType = "execution"

	if err := manager.Insert(c, c.Session().Variables(), v, false); err != nil {
		return nil, err
	}
	s.local[name] = v
	s.used[name] = v

	if s.execution.CountEnabled() {
		s.execution.Counts.Variables.Add(1)
		c.RegisterCountDirty(s.execution)
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
		if err := c.History().RecordVariableCreate(c, v, origin.execution.ID); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ===== 读与加载 =====

// findVariableInstance 沿作用域链查找变量实例
func (s *ExecutionScope) findVariableInstance(c *command.Context, name string) (*entity.VariableInstance, error) {
	if v, ok := s.used[name]; ok {
		return v, nil
	}
	v, err := s.findLocalVariableInstance(c, name)
	if err != nil {
		return nil, err
	}
	if v != nil {
		return v, nil
	}
	parent, err := s.parentScope(c)
	if err != nil || parent == nil {
		return nil, err
	}
	return parent.findVariableInstance(c, name)
}

// findLocalVariableInstance 查找本作用域本地变量（内存集合优先，再做存储精确匹配）
func (s *ExecutionScope) findLocalVariableInstance(c *command.Context, name string) (*entity.VariableInstance, error) {
	if v, ok := s.local[name]; ok {
		return v, nil
	}
	if s.localLoaded {
		return nil, nil
	}
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}
	row, err := c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), s.execution.ID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询执行变量失败: %s.%s: %w", s.execution.ID, name, err)
	}
	v := s.cachedOrPut(c, row)
	s.local[name] = v
	return v, nil
}

// ensureLocalLoaded 全量加载本作用域的本地变量
func (s *ExecutionScope) ensureLocalLoaded(c *command.Context) error {
	if s.localLoaded {
		return nil
	}
	if err := c.EnsureActive(); err != nil {
		return err
	}
	rows, err := c.Session().Variables().FindByExecutionID(c.Ctx(), s.execution.ID)
	if err != nil {
		return fmt.Errorf("加载执行变量失败: %s: %w", s.execution.ID, err)
	}
	for _, row := range rows {
		v := s.cachedOrPut(c, row)
		s.local[v.Name] = v
	}
	s.localLoaded = true
	return nil
}

// parentScope 解析父作用域（父执行指针未接线时按ParentID加载），共享used缓存
func (s *ExecutionScope) parentScope(c *command.Context) (*ExecutionScope, error) {
	if s.parentLoaded {
		return s.parent, nil
	}
	parent := s.execution.Parent()
	if parent == nil && s.execution.ParentID != "" {
		loaded, err := manager.FindByID(c, c.Session().Executions(), entity.KindExecution, s.execution.ParentID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
		} else {
			s.execution.SetParent(loaded)
			parent = loaded
		}
	}
	if parent != nil {
		s.parent = &ExecutionScope{
			execution: parent,
			clock:     s.clock,
			used:      s.used,
			local:     make(map[string]*entity.VariableInstance),
		}
	}
	s.parentLoaded = true
	return s.parent, nil
}

func (s *ExecutionScope) cachedOrPut(c *command.Context, row *entity.VariableInstance) *entity.VariableInstance {
	if cached, ok := c.Cache().FindByID(entity.KindVariable, row.ID); ok {
		return cached.(*entity.VariableInstance)
	}
	c.Cache().Put(entity.KindVariable, row.ID, row)
	return row
}
