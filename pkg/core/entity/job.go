package entity

import (
	"time"
)

// JobKind 任务种类（各种类的计数相互独立）
type JobKind string

const (
	JobKindAsync          JobKind = "async"           // 可立即执行的异步任务
	JobKindTimer          JobKind = "timer"           // 定时任务
	JobKindSuspended      JobKind = "suspended"       // 挂起任务
	JobKindDeadLetter     JobKind = "dead-letter"     // 死信任务
	JobKindExternalWorker JobKind = "external-worker" // 外部工作者任务
	JobKindHistory        JobKind = "history"         // 历史异步任务
)

// Job 异步任务实体（对外导出）
// 引用执行的延迟/异步工作单元，通过计数优化层跳过计数为0时的查询。
type Job struct {
	ID       string
	Revision int

	JobKind     JobKind
	HandlerType string // timer/message/external-worker等处理器类型
	HandlerCfg  string // 处理器配置（JSON）

	ExecutionID         string
	ProcessInstanceID   string
	ProcessDefinitionID string

	DueDate        *time.Time
	RepeatExpr     string // cron表达式（重复定时任务）
	Retries        int
	Exclusive      bool
	LockOwner      string
	LockExpiration *time.Time

	ExceptionMessage string
	TenantID         string
	CreateTime       time.Time
}

// NewJob 创建异步任务实体
func NewJob(kind JobKind) *Job {
	return &Job{
		ID:       NewID(),
		Revision: 1,
		JobKind:  kind,
		Retries:  3,
	}
}

// GetID 获取实体唯一标识
func (j *Job) GetID() string { return j.ID }

// Kind 返回实体类型标识（与任务种类字段JobKind区分）
func (j *Job) Kind() string { return KindJob }

// GetRevision 获取当前版本号
func (j *Job) GetRevision() int { return j.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (j *Job) SetRevision(rev int) { j.Revision = rev }

// Clone 复制任务实体
func (j *Job) Clone() *Job {
	copied := *j
	if j.DueDate != nil {
		d := *j.DueDate
		copied.DueDate = &d
	}
	if j.LockExpiration != nil {
		le := *j.LockExpiration
		copied.LockExpiration = &le
	}
	return &copied
}
