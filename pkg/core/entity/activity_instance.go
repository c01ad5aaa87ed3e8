package entity

import (
	"time"
	"unicode"
)

// ActivityInstance 活动实例实体（对外导出）
// 一次"执行占用一个活动"的审计记录：执行进入FlowNode时创建，离开时结束。
// 同一(执行,活动)最多存在一条未结束记录。
type ActivityInstance struct {
	ID       string
	Revision int

	ActivityID   string
	ActivityName string
	ActivityType string // 小驼峰的FlowElement类型名，如userTask、serviceTask

	ExecutionID         string
	ProcessInstanceID   string
	ProcessDefinitionID string

	TaskID                  string
	Assignee                string
	CalledProcessInstanceID string

	StartTime    time.Time
	EndTime      *time.Time
	DurationInMS *int64

	DeleteReason string
	TenantID     string
}

// NewActivityInstance 创建活动实例记录
func NewActivityInstance() *ActivityInstance {
	return &ActivityInstance{
		ID:       NewID(),
		Revision: 1,
	}
}

// GetID 获取实体唯一标识
func (a *ActivityInstance) GetID() string { return a.ID }

// Kind 返回实体类型标识
func (a *ActivityInstance) Kind() string { return KindActivityInstance }

// GetRevision 获取当前版本号
func (a *ActivityInstance) GetRevision() int { return a.Revision }

// SetRevision 设置版本号（仅存储层使用）
func (a *ActivityInstance) SetRevision(rev int) { a.Revision = rev }

// IsOpen 是否为未结束记录
func (a *ActivityInstance) IsOpen() bool {
	return a.EndTime == nil
}

// MarkEnded 结束活动实例并计算持续时长
func (a *ActivityInstance) MarkEnded(endTime time.Time, deleteReason string) {
	if a.EndTime != nil {
		return
	}
	a.EndTime = &endTime
	a.DeleteReason = deleteReason
	d := endTime.Sub(a.StartTime).Milliseconds()
	a.DurationInMS = &d
}

// Clone 复制活动实例记录
func (a *ActivityInstance) Clone() *ActivityInstance {
	copied := *a
	if a.EndTime != nil {
		et := *a.EndTime
		copied.EndTime = &et
	}
	if a.DurationInMS != nil {
		d := *a.DurationInMS
		copied.DurationInMS = &d
	}
	return &copied
}

// LowerCamel 将类型名转换为小驼峰（UserTask → userTask）
// 活动类型从具体FlowElement类型名推导时使用。
func LowerCamel(name string) string {
	if name == "" {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
