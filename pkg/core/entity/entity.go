package entity

import (
	"github.com/google/uuid"
)

// 实体类型常量（用于实体缓存和事件分发的类型标识）
const (
	KindExecution         = "execution"
	KindTask              = "task"
	KindVariable          = "variable"
	KindByteArray         = "byte-array"
	KindJob               = "job"
	KindEventSubscription = "event-subscription"
	KindIdentityLink      = "identity-link"
	KindEntityLink        = "entity-link"
	KindActivityInstance  = "activity-instance"
)

// Entity 实体基础能力接口（对外导出）
// 所有持久化实体都应该实现此接口
type Entity interface {
	// GetID 获取实体唯一标识
	GetID() string
	// Kind 返回实体类型标识（用于缓存分区和事件分发）
	Kind() string
}

// Revisioned 乐观锁能力接口（对外导出）
// 带版本号的实体在flush时由存储层校验版本号，冲突时返回ErrOptimisticLock
type Revisioned interface {
	// GetRevision 获取当前版本号
	GetRevision() int
	// SetRevision 设置版本号（仅存储层使用）
	SetRevision(rev int)
}

// SuspensionState 挂起状态常量
const (
	SuspensionStateActive    = 1 // 激活
	SuspensionStateSuspended = 2 // 挂起
)

// NewID 生成实体唯一标识（UUID）
func NewID() string {
	return uuid.New().String()
}
