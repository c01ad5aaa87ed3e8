// Package runtime 实现执行树管理：流程实例/子执行/子流程实例的创建、
// 关系接线、树查询重建与级联删除。
// 所有操作都在一个工作单元（command.Context）内同步执行，
// 跨工作单元的并发冲突由存储层乐观锁解决。
package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/manager"
	"github.com/LENAX/process-engine/pkg/core/variable"
	"github.com/LENAX/process-engine/pkg/storage"
)

// ManagerConfig 执行树管理器配置（对外导出）
type ManagerConfig struct {
	// PerformanceCountingEnabled 全局计数优化开关（新建流程实例继承此值）
	PerformanceCountingEnabled bool
	// Behaviors 活动行为解析器（nil时使用空解析器）
	Behaviors BehaviorResolver
	// EndProcessInstanceInterceptors 流程实例结束拦截器链
	EndProcessInstanceInterceptors []EndProcessInstanceInterceptor
	// CaseInstanceCallback 跨引擎子Case实例删除回调（可选）
	CaseInstanceCallback CaseInstanceCallback
	// EventSubprocessResolver 子流程实例启动时解析可用事件子流程（可选）
	EventSubprocessResolver func(c *command.Context, processInstance *entity.Execution) error
	// Clock 时钟（测试注入用，nil时使用time.Now）
	Clock func() time.Time
	// AuthenticatedUser 当前认证用户提供方（可选）
	AuthenticatedUser func() string
}

// ExecutionManager 执行树管理器（对外导出）
type ExecutionManager struct {
	countingEnabled bool
	behaviors       BehaviorResolver
	interceptors    []EndProcessInstanceInterceptor
	caseCallback    CaseInstanceCallback
	eventSubprocess func(c *command.Context, processInstance *entity.Execution) error

	tasks *TaskManager
	clock func() time.Time
	user  func() string
}

// NewExecutionManager 创建执行树管理器
func NewExecutionManager(cfg ManagerConfig) *ExecutionManager {
	if cfg.Behaviors == nil {
		cfg.Behaviors = NopBehaviorResolver{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.AuthenticatedUser == nil {
		cfg.AuthenticatedUser = func() string { return "" }
	}
	return &ExecutionManager{
		countingEnabled: cfg.PerformanceCountingEnabled,
		behaviors:       cfg.Behaviors,
		interceptors:    cfg.EndProcessInstanceInterceptors,
		caseCallback:    cfg.CaseInstanceCallback,
		eventSubprocess: cfg.EventSubprocessResolver,
		tasks:           NewTaskManager(cfg.Clock),
		clock:           cfg.Clock,
		user:            cfg.AuthenticatedUser,
	}
}

// Tasks 任务删除协作方
func (m *ExecutionManager) Tasks() *TaskManager { return m.tasks }

// CreateProcessInstanceRequest 流程实例创建请求（对外导出）
type CreateProcessInstanceRequest struct {
	// ID 预分配的实例ID（空则自动生成）
	ID string

	ProcessDefinitionID   string
	ProcessDefinitionKey  string
	ProcessDefinitionName string

	BusinessKey     string
	TenantID        string
	StartActivityID string

	// CallbackID/CallbackType 外部回调引用（跨引擎场景）
	CallbackID   string
	CallbackType string

	// InitiatorVariableName 非空时将认证用户绑定为该名称的实例变量
	InitiatorVariableName string
}

// CreateProcessInstanceExecution 创建流程实例执行（根执行）
// 实例的ProcessInstanceID与RootProcessInstanceID都指向自身，parent为空，scope为true。
func (m *ExecutionManager) CreateProcessInstanceExecution(c *command.Context, req CreateProcessInstanceRequest) (*entity.Execution, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	pi := entity.NewExecution(req.ID)
	pi.ProcessDefinitionID = req.ProcessDefinitionID
	pi.ProcessDefinitionKey = req.ProcessDefinitionKey
	pi.ProcessDefinitionName = req.ProcessDefinitionName
	pi.ProcessInstanceID = pi.ID
	pi.RootProcessInstanceID = pi.ID
	pi.SetProcessInstance(pi)
	pi.IsScope = true
	pi.Counts.IsCountEnabled = m.countingEnabled
	pi.BusinessKey = req.BusinessKey
	pi.TenantID = req.TenantID
	pi.StartActivityID = req.StartActivityID
	pi.ActivityID = req.StartActivityID
	pi.CallbackID = req.CallbackID
	pi.CallbackType = req.CallbackType
	pi.StartTime = m.clock()
	pi.StartUserID = m.user()
	pi.SetChildrenLoaded() // 新建实例尚无子执行

	if err := manager.Insert(c, c.Session().Executions(), pi, true); err != nil {
		return nil, err
	}

	// 绑定发起人变量
	if req.InitiatorVariableName != "" && pi.StartUserID != "" {
		scope := variable.NewExecutionScopeWithClock(pi, m.clock)
		if _, err := scope.CreateVariableLocal(c, req.InitiatorVariableName, pi.StartUserID); err != nil {
			return nil, fmt.Errorf("绑定发起人变量失败: %w", err)
		}
	}

	if c.History() != nil {
		if err := c.History().RecordProcessInstanceStart(c, pi); err != nil {
			return nil, err
		}
	}
	return pi, nil
}

// CreateChildExecution 在父执行下创建子执行
// 继承流程定义、流程实例、租户、计数开关与阶段实例传播字段，scope为false。
func (m *ExecutionManager) CreateChildExecution(c *command.Context, parent *entity.Execution) (*entity.Execution, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	child := entity.NewExecution("")
	child.ProcessDefinitionID = parent.ProcessDefinitionID
	child.ProcessDefinitionKey = parent.ProcessDefinitionKey
	child.ProcessDefinitionName = parent.ProcessDefinitionName
	child.RootProcessInstanceID = parent.RootProcessInstanceID
	child.TenantID = parent.TenantID
	child.PropagatedStageInstanceID = parent.PropagatedStageInstanceID
	child.Counts.IsCountEnabled = parent.CountEnabled()
	child.StartTime = m.clock()
	child.IsScope = false
	child.SetChildrenLoaded()

	if parent.IsProcessInstance() {
		child.SetProcessInstance(parent)
	} else if parent.ProcessInstance() != nil {
		child.SetProcessInstance(parent.ProcessInstance())
	} else {
		child.ProcessInstanceID = parent.ProcessInstanceID
	}
	child.SetParent(parent)

	if err := manager.Insert(c, c.Session().Executions(), child, true); err != nil {
		return nil, err
	}
	if c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:              event.EntityInitialized,
			EntityKind:        entity.KindExecution,
			EntityID:          child.ID,
			ExecutionID:       child.ID,
			ProcessInstanceID: child.ProcessInstanceID,
			Timestamp:         m.clock(),
		})
	}
	return child, nil
}

// CreateSubprocessInstanceRequest 子流程实例创建请求（CallActivity场景，对外导出）
type CreateSubprocessInstanceRequest struct {
	ProcessDefinitionID   string
	ProcessDefinitionKey  string
	ProcessDefinitionName string

	BusinessKey     string
	TenantID        string
	StartActivityID string
}

// CreateSubprocessInstance 创建被调用的子流程实例
// super/sub互逆关系成对接线；RootProcessInstanceID继承调用方的根而非自身。
func (m *ExecutionManager) CreateSubprocessInstance(c *command.Context, superExecution *entity.Execution, req CreateSubprocessInstanceRequest) (*entity.Execution, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	sub := entity.NewExecution("")
	sub.ProcessDefinitionID = req.ProcessDefinitionID
	sub.ProcessDefinitionKey = req.ProcessDefinitionKey
	sub.ProcessDefinitionName = req.ProcessDefinitionName
	sub.ProcessInstanceID = sub.ID
	sub.RootProcessInstanceID = superExecution.RootProcessInstanceID
	if sub.RootProcessInstanceID == "" {
		sub.RootProcessInstanceID = sub.ID
	}
	sub.SetProcessInstance(sub)
	sub.IsScope = true
	sub.Counts.IsCountEnabled = m.countingEnabled
	sub.BusinessKey = req.BusinessKey
	sub.TenantID = req.TenantID
	if sub.TenantID == "" {
		sub.TenantID = superExecution.TenantID
	}
	sub.StartActivityID = req.StartActivityID
	sub.ActivityID = req.StartActivityID
	sub.StartTime = m.clock()
	sub.StartUserID = m.user()
	sub.SetChildrenLoaded()

	entity.WireCallActivity(superExecution, sub)

	if err := manager.Insert(c, c.Session().Executions(), sub, true); err != nil {
		return nil, err
	}

	// 解析启动时可用的事件子流程
	if m.eventSubprocess != nil {
		if err := m.eventSubprocess(c, sub); err != nil {
			return nil, fmt.Errorf("解析事件子流程失败: 子流程实例%s: %w", sub.ID, err)
		}
	}

	if c.History() != nil {
		if err := c.History().RecordProcessInstanceStart(c, sub); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// FindByID 根据ID查询执行（缓存优先）
func (m *ExecutionManager) FindByID(c *command.Context, id string) (*entity.Execution, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}
	return manager.FindByID(c, c.Session().Executions(), entity.KindExecution, id)
}

// FindByRootProcessInstanceID 一次查询加载共享同一根流程实例ID的全部执行并重建内存树
// 调用方得到一棵完整接线的树，无需任何后续延迟加载。
func (m *ExecutionManager) FindByRootProcessInstanceID(c *command.Context, rootID string) (*entity.Execution, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	rows, err := c.Session().Executions().FindByRootProcessInstanceID(c.Ctx(), rootID)
	if err != nil {
		return nil, fmt.Errorf("按根流程实例加载执行失败: %s: %w", rootID, err)
	}

	// 缓存合并后按ID建索引
	all := make([]*entity.Execution, 0, len(rows))
	byID := make(map[string]*entity.Execution, len(rows))
	for _, row := range rows {
		e := m.cachedOrPut(c, row)
		all = append(all, e)
		byID[e.ID] = e
	}

	// 按ID查表接线parent/processInstance/super/sub指针
	for _, e := range all {
		if e.ParentID != "" {
			if p, ok := byID[e.ParentID]; ok {
				e.SetParent(p)
			}
		}
		if e.ProcessInstanceID != "" {
			if pi, ok := byID[e.ProcessInstanceID]; ok {
				e.SetProcessInstance(pi)
			}
		}
		if e.SuperExecutionID != "" {
			if super, ok := byID[e.SuperExecutionID]; ok {
				e.SetSuperExecution(super)
			}
		}
	}
	for _, e := range all {
		e.SortChildrenByStartTime()
		e.SetChildrenLoaded()
	}

	root, ok := byID[rootID]
	if !ok {
		return nil, &NotFoundError{Kind: "根流程实例", ID: rootID}
	}
	return root, nil
}

// EnsureChildrenLoaded 确保子执行集合已加载（已加载时不触发查询）
func (m *ExecutionManager) EnsureChildrenLoaded(c *command.Context, e *entity.Execution) error {
	if e.ChildrenLoaded() {
		return nil
	}
	if err := c.EnsureActive(); err != nil {
		return err
	}
	rows, err := c.Session().Executions().FindChildrenByParentID(c.Ctx(), e.ID)
	if err != nil {
		return fmt.Errorf("加载子执行失败: %s: %w", e.ID, err)
	}
	for _, row := range rows {
		child := m.cachedOrPut(c, row)
		child.SetParent(e)
	}
	e.SortChildrenByStartTime()
	e.SetChildrenLoaded()
	return nil
}

// FindFirstScope 从当前执行向上查找第一个scope执行
// parent为空时退回superExecution继续向上，走完整条链仍未找到返回nil。
func (m *ExecutionManager) FindFirstScope(c *command.Context, e *entity.Execution) (*entity.Execution, error) {
	return m.findFirstMatching(c, e, func(cur *entity.Execution) bool { return cur.IsScope })
}

// FindFirstMultiInstanceRoot 从当前执行向上查找第一个多实例根执行
func (m *ExecutionManager) FindFirstMultiInstanceRoot(c *command.Context, e *entity.Execution) (*entity.Execution, error) {
	return m.findFirstMatching(c, e, func(cur *entity.Execution) bool { return cur.IsMultiInstanceRoot })
}

func (m *ExecutionManager) findFirstMatching(c *command.Context, e *entity.Execution, match func(*entity.Execution) bool) (*entity.Execution, error) {
	cur := e
	for cur != nil {
		if match(cur) {
			return cur, nil
		}
		parent, err := m.ensureParent(c, cur)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			cur = parent
			continue
		}
		super, err := m.ensureSuperExecution(c, cur)
		if err != nil {
			return nil, err
		}
		cur = super
	}
	return nil, nil
}

// SetSuspensionState 变更挂起状态（与当前状态相同视为无效状态变更）
func (m *ExecutionManager) SetSuspensionState(c *command.Context, e *entity.Execution, state int) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if e.SuspensionState == state {
		return fmt.Errorf("%w: 执行%s状态%d", ErrSameSuspensionState, e.ID, state)
	}
	e.SuspensionState = state
	return manager.Update(c, c.Session().Executions(), e)
}

// AddIdentityLink 给流程实例添加身份关联（participant、starter等）
// 维护流程实例的身份关联计数。
func (m *ExecutionManager) AddIdentityLink(c *command.Context, pi *entity.Execution, userID, groupID, linkType string) (*entity.IdentityLink, error) {
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}

	l := entity.NewIdentityLink(linkType)
	l.UserID = userID
	l.GroupID = groupID
	l.ProcessInstanceID = pi.ProcessInstanceID

	if err := c.Session().IdentityLinks().Insert(c.Ctx(), l); err != nil {
		return nil, fmt.Errorf("插入流程实例身份关联失败: %s: %w", pi.ProcessInstanceID, err)
	}
	c.Cache().Put(entity.KindIdentityLink, l.ID, l)

	if pi.CountEnabled() {
		pi.Counts.IdentityLinks.Add(1)
		c.RegisterCountDirty(pi)
	}
	return l, nil
}

// ===== 内部加载辅助 =====

// cachedOrPut 缓存优先合并存储行（缓存命中时返回缓存实体，看得到本事务内未flush的状态）
func (m *ExecutionManager) cachedOrPut(c *command.Context, row *entity.Execution) *entity.Execution {
	if cached, ok := c.Cache().FindByID(entity.KindExecution, row.ID); ok {
		return cached.(*entity.Execution)
	}
	c.Cache().Put(entity.KindExecution, row.ID, row)
	return row
}

// ensureParent 确保父执行指针已接线（ParentID为空返回nil）
func (m *ExecutionManager) ensureParent(c *command.Context, e *entity.Execution) (*entity.Execution, error) {
	if e.Parent() != nil || e.ParentID == "" {
		return e.Parent(), nil
	}
	parent, err := m.FindByID(c, e.ParentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	e.SetParent(parent)
	return parent, nil
}

// ensureSuperExecution 确保调用方执行指针已接线（SuperExecutionID为空返回nil）
func (m *ExecutionManager) ensureSuperExecution(c *command.Context, e *entity.Execution) (*entity.Execution, error) {
	if e.SuperExecution() != nil || e.SuperExecutionID == "" {
		return e.SuperExecution(), nil
	}
	super, err := m.FindByID(c, e.SuperExecutionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	e.SetSuperExecution(super)
	return super, nil
}

// loadSubProcessInstance 加载执行的子流程实例（无则返回nil）
func (m *ExecutionManager) loadSubProcessInstance(c *command.Context, e *entity.Execution) (*entity.Execution, error) {
	if e.SubProcessInstance() != nil {
		return e.SubProcessInstance(), nil
	}
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}
	row, err := c.Session().Executions().FindSubProcessInstanceBySuperExecutionID(c.Ctx(), e.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("加载子流程实例失败: 调用方执行%s: %w", e.ID, err)
	}
	sub := m.cachedOrPut(c, row)
	sub.SetSuperExecution(e)
	return sub, nil
}
