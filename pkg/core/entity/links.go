package entity

import (
	"time"
)

// EventSubscription 事件订阅实体（对外导出）
// 执行上挂载的信号/消息/定时事件订阅，随执行级联删除。
type EventSubscription struct {
	ID       string
	Revision int

	EventType string // signal/message/compensate
	EventName string

	ExecutionID         string
	ProcessInstanceID   string
	ProcessDefinitionID string
	ActivityID          string

	Configuration string
	CreateTime    time.Time
	TenantID      string
}

// NewEventSubscription 创建事件订阅实体
func NewEventSubscription(eventType, eventName string) *EventSubscription {
	return &EventSubscription{
		ID:        NewID(),
		Revision:  1,
		EventType: eventType,
		EventName: eventName,
	}
}

// GetID 获取实体唯一标识
func (s *EventSubscription) GetID() string { return s.ID }

// Kind 返回实体类型标识
func (s *EventSubscription) Kind() string { return KindEventSubscription }

// GetRevision 获取当前版本号
func (s *EventSubscription) GetRevision() int { return s.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (s *EventSubscription) SetRevision(rev int) { s.Revision = rev }

// IdentityLink 身份关联实体（对外导出）
// 用户/组与任务或流程实例的关联（assignee、candidate、participant等）。
type IdentityLink struct {
	ID string

	LinkType string // assignee/candidate/owner/participant/starter
	UserID   string
	GroupID  string

	TaskID            string
	ProcessInstanceID string
	ScopeDefinitionID string
}

// NewIdentityLink 创建身份关联实体
func NewIdentityLink(linkType string) *IdentityLink {
	return &IdentityLink{
		ID:       NewID(),
		LinkType: linkType,
	}
}

// GetID 获取实体唯一标识
func (l *IdentityLink) GetID() string { return l.ID }

// Kind 返回实体类型标识
func (l *IdentityLink) Kind() string { return KindIdentityLink }

// EntityLink 实体关联实体（对外导出）
// 根流程实例范围内的跨实体层级关系（父子流程、任务归属），仅随根流程实例删除。
type EntityLink struct {
	ID string

	LinkType string // child/parent

	ScopeID               string
	ScopeType             string
	ReferenceScopeID      string
	ReferenceScopeType    string
	RootScopeID           string
	RootScopeType         string
	ParentElementID       string
	RootProcessInstanceID string

	HierarchyType string
	CreateTime    time.Time
}

// NewEntityLink 创建实体关联实体
func NewEntityLink(linkType string) *EntityLink {
	return &EntityLink{
		ID:       NewID(),
		LinkType: linkType,
	}
}

// GetID 获取实体唯一标识
func (l *EntityLink) GetID() string { return l.ID }

// Kind 返回实体类型标识
func (l *EntityLink) Kind() string { return KindEntityLink }
