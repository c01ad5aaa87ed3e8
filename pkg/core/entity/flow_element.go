package entity

// FlowElementRef 当前流程元素引用（对外导出）
// BPMN模型解析与活动行为执行属于外部协作方，本核心只消费元素的
// 标识/名称/类型信息：活动实例记录仅对FlowNode类型的元素创建。
type FlowElementRef struct {
	ID       string
	Name     string
	TypeName string // 具体元素类型名，如UserTask、ServiceTask、CallActivity
	FlowNode bool   // 是否为流程节点（顺序流等隐式位置为false）
}
