package runtime

import (
	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
)

// InterruptibleActivityBehavior 可中断活动行为契约（对外导出）
// 级联删除前对正在执行中的活动调用Interrupted钩子，
// 让活动特定的补偿/聚合逻辑在删除前执行。
type InterruptibleActivityBehavior interface {
	// Interrupted 活动被中断
	Interrupted(c *command.Context, execution *entity.Execution) error
}

// SubProcessActivityBehavior 子流程活动行为契约（对外导出）
// CallActivity的子流程实例被删除时回调，恢复调用方执行。
type SubProcessActivityBehavior interface {
	// Completing 子流程实例即将结束（可回传输出变量）
	Completing(c *command.Context, callerExecution, subProcessInstance *entity.Execution) error
	// Completed 子流程实例已结束（调用方继续导航）
	Completed(c *command.Context, callerExecution *entity.Execution) error
}

// BehaviorResolver 活动行为解析器契约（对外导出）
// 根据活动ID解析当前活动行为；无行为时返回nil。
// BPMN行为执行引擎实现此契约，本核心只消费。
type BehaviorResolver interface {
	// Resolve 解析活动ID对应的行为
	Resolve(activityID string) any
}

// NopBehaviorResolver 空行为解析器（无行为引擎时使用）
type NopBehaviorResolver struct{}

// Resolve 始终返回nil
func (NopBehaviorResolver) Resolve(activityID string) any { return nil }

// EndProcessInstanceInterceptor 流程实例结束拦截器契约（对外导出）
type EndProcessInstanceInterceptor interface {
	// BeforeEndProcessInstance 流程实例结束前
	BeforeEndProcessInstance(c *command.Context, processInstanceID string) error
	// AfterEndProcessInstance 流程实例结束后
	AfterEndProcessInstance(c *command.Context, processInstanceID string) error
}

// CaseInstanceCallback 跨引擎子Case实例删除回调
// 执行携带外部回调引用（CallbackID/CallbackType）时，删除执行前回调外部引擎。
type CaseInstanceCallback func(c *command.Context, execution *entity.Execution, reason string) error
