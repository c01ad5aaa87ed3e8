package event

import (
	"time"
)

// Type 引擎事件类型（对外导出）
type Type string

const (
	EntityCreated     Type = "ENTITY_CREATED"     // 实体已创建
	EntityInitialized Type = "ENTITY_INITIALIZED" // 实体已初始化
	EntityDeleted     Type = "ENTITY_DELETED"     // 实体已删除
	ActivityCancelled Type = "ACTIVITY_CANCELLED" // 活动被取消
	ProcessCancelled  Type = "PROCESS_CANCELLED"  // 流程实例被取消
	ProcessCompleted  Type = "PROCESS_COMPLETED"  // 流程实例正常完成
	VariableCreated   Type = "VARIABLE_CREATED"   // 变量已创建
	VariableUpdated   Type = "VARIABLE_UPDATED"   // 变量已更新
	VariableDeleted   Type = "VARIABLE_DELETED"   // 变量已删除
	JobCancelled      Type = "JOB_CANCELLED"      // 异步任务被取消
	TaskCreated       Type = "TASK_CREATED"       // 任务已创建
)

// EngineEvent 引擎生命周期事件（对外导出）
// 从本核心的视角看事件是fire-and-forget：分发失败不回滚删除。
type EngineEvent struct {
	Type       Type      `json:"type"`
	EntityKind string    `json:"entity_kind,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`

	ExecutionID         string `json:"execution_id,omitempty"`
	ProcessInstanceID   string `json:"process_instance_id,omitempty"`
	ProcessDefinitionID string `json:"process_definition_id,omitempty"`

	ActivityID   string `json:"activity_id,omitempty"`
	ActivityName string `json:"activity_name,omitempty"`
	ActivityType string `json:"activity_type,omitempty"`

	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher 事件分发器接口（对外导出）
type Dispatcher interface {
	// IsEnabled 分发器是否启用（未启用时调用方应跳过事件构造）
	IsEnabled() bool
	// Dispatch 分发事件（fire-and-forget）
	Dispatch(ev *EngineEvent)
}

// NopDispatcher 空分发器（对外导出）
type NopDispatcher struct{}

// IsEnabled 始终返回false
func (NopDispatcher) IsEnabled() bool { return false }

// Dispatch 丢弃事件
func (NopDispatcher) Dispatch(ev *EngineEvent) {}
