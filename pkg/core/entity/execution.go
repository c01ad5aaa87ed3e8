package entity

import (
	"sort"
	"time"
)

// Execution 执行实体（对外导出）
// 流程运行时状态的原子单元：既是流程实例（根执行），也是流程导航过程中的子执行。
// 执行之间通过parent边构成树，通过super/sub边跨流程实例连接（CallActivity场景）。
type Execution struct {
	ID       string
	Revision int

	// 流程定义引用
	ProcessDefinitionID   string
	ProcessDefinitionKey  string
	ProcessDefinitionName string

	// 树形关系（按ID持久化，内存指针由管理器负责接线）
	ProcessInstanceID     string // 所属流程实例ID（根执行的ProcessInstanceID == ID）
	RootProcessInstanceID string // 根流程实例ID（跨CallActivity继承调用方的根）
	ParentID              string // 父执行ID（流程实例执行为空）
	SuperExecutionID      string // 调用方执行ID（CallActivity跨树边）

	// 当前活动
	ActivityID   string // 当前FlowElement的ID
	ActivityName string

	// 状态标志
	IsActive            bool
	IsEnded             bool
	IsScope             bool // 是否为变量/活动生命周期边界
	IsConcurrent        bool
	IsEventScope        bool // 仅为承载边界/非中断事件订阅而保留的执行
	IsMultiInstanceRoot bool
	IsDeleted           bool // 单调：一旦为true不再变回false
	SuspensionState     int

	// 业务元数据
	BusinessKey  string
	TenantID     string
	DeleteReason string

	// 启动元数据
	StartTime       time.Time
	StartUserID     string
	StartActivityID string

	// 独占执行锁定时间
	LockTime *time.Time

	// 外部回调引用（CMMN等跨引擎场景）
	CallbackID   string
	CallbackType string

	// 阶段实例传播（从父执行继承）
	PropagatedStageInstanceID string

	// 关联计数（计数优化层，见counting.go）
	Counts ExecutionCounts

	// 当前流程元素（瞬态，由活动行为执行方设置，不持久化）
	CurrentFlowElement *FlowElementRef

	// ===== 以下为内存关系指针，不持久化，由ExecutionManager负责接线 =====

	parent             *Execution
	processInstance    *Execution
	superExecution     *Execution
	subProcessInstance *Execution

	children       []*Execution
	childrenLoaded bool
}

// NewExecution 创建执行实体（仅初始化标识和默认状态，关系由管理器接线）
func NewExecution(id string) *Execution {
	if id == "" {
		id = NewID()
	}
	return &Execution{
		ID:              id,
		Revision:        1,
		IsActive:        true,
		SuspensionState: SuspensionStateActive,
	}
}

// GetID 获取实体唯一标识
func (e *Execution) GetID() string { return e.ID }

// Kind 返回实体类型标识
func (e *Execution) Kind() string { return KindExecution }

// GetRevision 获取当前版本号
func (e *Execution) GetRevision() int { return e.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (e *Execution) SetRevision(rev int) { e.Revision = rev }

// IsProcessInstance 是否为流程实例执行（根执行）
func (e *Execution) IsProcessInstance() bool {
	return e.ParentID == "" && e.ProcessInstanceID == e.ID
}

// MarkDeleted 标记删除（单调操作，不可撤销）
func (e *Execution) MarkDeleted(reason string) {
	e.IsDeleted = true
	if reason != "" {
		e.DeleteReason = reason
	}
}

// MarkEnded 标记结束并失活
func (e *Execution) MarkEnded() {
	e.IsActive = false
	e.IsEnded = true
}

// ===== 内存关系访问 =====

// Parent 获取父执行指针（可能未接线，未接线时返回nil）
func (e *Execution) Parent() *Execution { return e.parent }

// ProcessInstance 获取所属流程实例执行指针
func (e *Execution) ProcessInstance() *Execution { return e.processInstance }

// SuperExecution 获取调用方执行指针
func (e *Execution) SuperExecution() *Execution { return e.superExecution }

// SubProcessInstance 获取被调用子流程实例指针
func (e *Execution) SubProcessInstance() *Execution { return e.subProcessInstance }

// Children 获取子执行集合（仅在ChildrenLoaded为true时完整）
func (e *Execution) Children() []*Execution { return e.children }

// ChildrenLoaded 子执行集合是否已加载
func (e *Execution) ChildrenLoaded() bool { return e.childrenLoaded }

// SetChildrenLoaded 标记子执行集合已加载（由管理器在加载完成后调用）
func (e *Execution) SetChildrenLoaded() { e.childrenLoaded = true }

// SetProcessInstance 接线所属流程实例指针（同时同步ProcessInstanceID）
func (e *Execution) SetProcessInstance(pi *Execution) {
	e.processInstance = pi
	if pi != nil {
		e.ProcessInstanceID = pi.ID
	}
}

// SetParent 接线父执行（成对更新：同步ParentID并登记到父的子集合）
// 子集合中已有同ID条目时替换而非追加，保证集合与插入/删除操作保持同步。
func (e *Execution) SetParent(parent *Execution) {
	e.parent = parent
	if parent == nil {
		e.ParentID = ""
		return
	}
	e.ParentID = parent.ID
	parent.AddChild(e)
}

// AddChild 登记子执行（同ID替换，保证无重复条目）
func (e *Execution) AddChild(child *Execution) {
	for i, existing := range e.children {
		if existing.ID == child.ID {
			e.children[i] = child
			return
		}
	}
	e.children = append(e.children, child)
}

// RemoveChild 从子集合移除子执行
func (e *Execution) RemoveChild(child *Execution) {
	for i, existing := range e.children {
		if existing.ID == child.ID {
			e.children = append(e.children[:i], e.children[i+1:]...)
			return
		}
	}
}

// SortChildrenByStartTime 按启动时间升序排序子集合（删除事件顺序的确定性依赖此排序）
func (e *Execution) SortChildrenByStartTime() {
	sort.SliceStable(e.children, func(i, j int) bool {
		return e.children[i].StartTime.Before(e.children[j].StartTime)
	})
}

// WireCallActivity 接线CallActivity的super/sub互逆关系（成对原子更新）
// super与sub必须互为逆向引用：设置一侧的同时设置另一侧，避免两个独立setter漂移。
func WireCallActivity(super *Execution, sub *Execution) {
	if super == nil || sub == nil {
		return
	}
	// 先解开旧关系
	if super.subProcessInstance != nil && super.subProcessInstance != sub {
		super.subProcessInstance.superExecution = nil
		super.subProcessInstance.SuperExecutionID = ""
	}
	if sub.superExecution != nil && sub.superExecution != super {
		sub.superExecution.subProcessInstance = nil
	}
	super.subProcessInstance = sub
	sub.superExecution = super
	sub.SuperExecutionID = super.ID
}

// UnwireCallActivity 解除CallActivity的super/sub互逆关系（成对原子更新）
func UnwireCallActivity(super *Execution) *Execution {
	if super == nil || super.subProcessInstance == nil {
		return nil
	}
	sub := super.subProcessInstance
	super.subProcessInstance = nil
	sub.superExecution = nil
	sub.SuperExecutionID = ""
	return sub
}

// SetSuperExecution 接线调用方执行指针（仅加载重建时使用，不做成对更新）
func (e *Execution) SetSuperExecution(super *Execution) {
	e.superExecution = super
	if super != nil {
		e.SuperExecutionID = super.ID
		super.subProcessInstance = e
	}
}

// Clone 复制执行实体的持久化字段（不复制内存指针与加载状态）
// 存储层返回克隆副本，保证缓存实体与存储快照彼此独立。
func (e *Execution) Clone() *Execution {
	copied := *e
	copied.parent = nil
	copied.processInstance = nil
	copied.superExecution = nil
	copied.subProcessInstance = nil
	copied.children = nil
	copied.childrenLoaded = false
	copied.Counts = e.Counts.snapshot()
	if e.LockTime != nil {
		lt := *e.LockTime
		copied.LockTime = &lt
	}
	return &copied
}
