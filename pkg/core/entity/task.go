package entity

import (
	"time"
)

// Task 用户任务实体（对外导出）
// 挂在执行上的人工任务，删除时必须走级联清理路径（身份关联、变量、历史）。
type Task struct {
	ID       string
	Revision int

	Name        string
	Description string
	TaskDefKey  string

	// 所属关系
	ExecutionID         string
	ProcessInstanceID   string
	ProcessDefinitionID string

	Assignee string
	Owner    string
	Priority int

	CreateTime time.Time
	DueDate    *time.Time
	ClaimTime  *time.Time

	SuspensionState int
	TenantID        string
	DeleteReason    string
	IsDeleted       bool

	// 任务级关联计数（计数优化层）
	IsCountEnabled    bool
	VariableCount     int32
	IdentityLinkCount int32
}

// NewTask 创建任务实体
func NewTask(id string) *Task {
	if id == "" {
		id = NewID()
	}
	return &Task{
		ID:              id,
		Revision:        1,
		SuspensionState: SuspensionStateActive,
	}
}

// GetID 获取实体唯一标识
func (t *Task) GetID() string { return t.ID }

// Kind 返回实体类型标识
func (t *Task) Kind() string { return KindTask }

// GetRevision 获取当前版本号
func (t *Task) GetRevision() int { return t.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (t *Task) SetRevision(rev int) { t.Revision = rev }

// Clone 复制任务实体
func (t *Task) Clone() *Task {
	copied := *t
	if t.DueDate != nil {
		d := *t.DueDate
		copied.DueDate = &d
	}
	if t.ClaimTime != nil {
		ct := *t.ClaimTime
		copied.ClaimTime = &ct
	}
	return &copied
}
