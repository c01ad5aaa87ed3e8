package runtime

import (
	"errors"
	"fmt"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/manager"
	"github.com/LENAX/process-engine/pkg/storage"
)

// DeleteProcessInstance 删除流程实例
// cascade为true时递归删除整个实例子树（含历史）；
// 若该实例本身是CallActivity调用出的子流程，删除后回调父活动行为恢复调用方。
func (m *ExecutionManager) DeleteProcessInstance(c *command.Context, processInstanceID, reason string, cascade bool) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}

	pi, err := m.FindByID(c, processInstanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Kind: "流程实例", ID: processInstanceID}
		}
		return err
	}
	if pi.IsDeleted {
		return nil
	}

	for _, it := range m.interceptors {
		if err := it.BeforeEndProcessInstance(c, pi.ID); err != nil {
			return fmt.Errorf("流程实例结束拦截器失败: %s: %w", pi.ID, err)
		}
	}

	// 级联前先解析调用方执行，删除后需要完成父CallActivity
	super, err := m.ensureSuperExecution(c, pi)
	if err != nil {
		return err
	}

	if cascade {
		if err := m.deleteProcessInstanceCascade(c, pi, reason, true); err != nil {
			return err
		}
	} else {
		if err := m.DeleteProcessInstanceExecutionEntity(c, pi.ID, "", reason, false, true, true); err != nil {
			return err
		}
	}

	if super != nil {
		if err := m.completeParentCallActivity(c, super, pi); err != nil {
			return err
		}
	}

	for _, it := range m.interceptors {
		if err := it.AfterEndProcessInstance(c, pi.ID); err != nil {
			return fmt.Errorf("流程实例结束拦截器失败: %s: %w", pi.ID, err)
		}
	}
	return nil
}

// completeParentCallActivity 子流程实例删除后完成父CallActivity行为
// 任何失败都是不可重试的一致性错误，整个工作单元回滚。
func (m *ExecutionManager) completeParentCallActivity(c *command.Context, super, sub *entity.Execution) error {
	behavior := m.behaviors.Resolve(super.ActivityID)
	spb, ok := behavior.(SubProcessActivityBehavior)
	if !ok {
		entity.UnwireCallActivity(super)
		return nil
	}
	if err := spb.Completing(c, super, sub); err != nil {
		return fmt.Errorf("%w: 完成父CallActivity失败(completing): 调用方执行%s: %v", ErrEngineFatal, super.ID, err)
	}
	entity.UnwireCallActivity(super)
	if err := spb.Completed(c, super); err != nil {
		return fmt.Errorf("%w: 完成父CallActivity失败(completed): 调用方执行%s: %v", ErrEngineFatal, super.ID, err)
	}
	return nil
}

// deleteProcessInstanceCascade 递归级联删除一个流程实例子树
//
// 固定步骤：删活动实例审计行 → 收集全部后代（确定性顺序）→
// 逐个后代执行中断钩子/子流程实例级联/任务删除 → 流程级取消事件 →
// 逆收集顺序删除子执行再删根 → 清历史 → 记录实例结束并标记删除。
// 逆序删除保证叶先于父，引用完整性不被破坏。
func (m *ExecutionManager) deleteProcessInstanceCascade(c *command.Context, pi *entity.Execution, reason string, deleteHistory bool) error {
	if pi.IsDeleted {
		return nil
	}

	// 1. 流程实例的活动实例审计行
	if err := m.deleteActivityInstancesForProcessInstance(c, pi.ID); err != nil {
		return err
	}

	// 2. 收集全部后代
	collected, err := m.CollectChildren(c, pi, nil)
	if err != nil {
		return err
	}

	// 3+4. 中断钩子、子流程实例级联、任务删除
	for _, desc := range collected {
		if desc.IsDeleted {
			continue
		}

		if desc.IsActive && desc.ActivityID != "" {
			if b := m.behaviors.Resolve(desc.ActivityID); b != nil {
				if iab, ok := b.(InterruptibleActivityBehavior); ok {
					if err := iab.Interrupted(c, desc); err != nil {
						return fmt.Errorf("中断活动行为失败: 执行%s 活动%s: %w", desc.ID, desc.ActivityID, err)
					}
				}
			}
		}

		if desc.IsMultiInstanceRoot {
			// 多实例根：逐个子实例级联删除其子流程实例，每个子实例一条取消事件
			if err := m.EnsureChildrenLoaded(c, desc); err != nil {
				return err
			}
			for _, child := range desc.Children() {
				sub, err := m.loadSubProcessInstance(c, child)
				if err != nil {
					return err
				}
				if sub != nil && !sub.IsDeleted {
					if err := m.deleteProcessInstanceCascade(c, sub, reason, deleteHistory); err != nil {
						return err
					}
					m.dispatchActivityCancelled(c, child, reason)
				}
			}
		} else {
			sub, err := m.loadSubProcessInstance(c, desc)
			if err != nil {
				return err
			}
			if sub != nil && !sub.IsDeleted {
				if err := m.deleteProcessInstanceCascade(c, sub, reason, deleteHistory); err != nil {
					return err
				}
				m.dispatchActivityCancelled(c, desc, reason)
			}
		}

		if err := m.tasks.DeleteTasksForExecution(c, desc, reason); err != nil {
			return err
		}
	}
	if err := m.tasks.DeleteTasksForExecution(c, pi, reason); err != nil {
		return err
	}

	// 5. 整个删除一条流程级取消事件
	m.dispatchProcessEvent(c, event.ProcessCancelled, pi, reason)

	// 6. 逆收集顺序删除（叶先于父），最后删根
	for i := len(collected) - 1; i >= 0; i-- {
		if collected[i].IsDeleted {
			continue
		}
		if err := m.DeleteExecutionAndRelatedData(c, collected[i], reason); err != nil {
			return err
		}
	}
	if err := m.DeleteExecutionAndRelatedData(c, pi, reason); err != nil {
		return err
	}

	// 7. 清除历史
	if deleteHistory && c.History() != nil {
		if err := c.History().DeleteHistoricProcessInstance(c, pi.ID); err != nil {
			return err
		}
	}

	// 8. 记录实例结束并标记删除
	if c.History() != nil {
		if err := c.History().RecordProcessInstanceEnd(c, pi, "cancelled", reason, pi.ActivityID); err != nil {
			return err
		}
	}
	pi.MarkDeleted(reason)
	return nil
}

// DeleteProcessInstanceExecutionEntity 流程实例的常规结束删除
// cascade级联删除的对应方：实例经由正常流转完成/取消时走此路径。
// 实例已标记删除时直接返回（幂等保护），不产生重复事件。
func (m *ExecutionManager) DeleteProcessInstanceExecutionEntity(c *command.Context, processInstanceID, currentFlowElementID, reason string, cascade, cancel, fireEvents bool) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}

	pi, err := m.FindByID(c, processInstanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Kind: "流程实例", ID: processInstanceID}
		}
		return err
	}
	if pi.IsDeleted {
		return nil
	}

	collected, err := m.CollectChildren(c, pi, nil)
	if err != nil {
		return err
	}

	// 尚未结束的CallActivity子流程实例先级联删除
	for _, child := range collected {
		if child.IsDeleted {
			continue
		}
		sub, err := m.loadSubProcessInstance(c, child)
		if err != nil {
			return err
		}
		if sub != nil && !sub.IsEnded && !sub.IsDeleted {
			if err := m.deleteProcessInstanceCascade(c, sub, reason, cascade); err != nil {
				return err
			}
		}
	}

	// 事件范围执行（仅为承载边界/非中断事件订阅而保留）
	for i := len(collected) - 1; i >= 0; i-- {
		child := collected[i]
		if child.IsDeleted || !child.IsEventScope {
			continue
		}
		if err := m.DeleteExecutionAndRelatedData(c, child, reason); err != nil {
			return err
		}
	}

	if err := m.DeleteChildExecutions(c, pi, nil, nil, reason, cancel, fireEvents); err != nil {
		return err
	}
	if err := m.DeleteExecutionAndRelatedData(c, pi, reason); err != nil {
		return err
	}

	state := "completed"
	evType := event.ProcessCompleted
	if cancel {
		state = "cancelled"
		evType = event.ProcessCancelled
	}
	if c.History() != nil {
		if err := c.History().RecordProcessInstanceEnd(c, pi, state, reason, currentFlowElementID); err != nil {
			return err
		}
	}
	if fireEvents {
		m.dispatchProcessEvent(c, evType, pi, reason)
	}
	pi.MarkDeleted(reason)
	return nil
}

// DeleteChildExecutions 删除一个执行的全部子执行（不含执行自身）
// 逆收集顺序删除；idsToExclude中的执行保留（多实例完成时触发方子执行暂不删除），
// cancel为true时对活动中/多实例根的子执行逐个分发取消事件，
// idsExcludedFromCancelEvents中的ID不分发取消事件。
func (m *ExecutionManager) DeleteChildExecutions(c *command.Context, execution *entity.Execution, idsToExclude, idsExcludedFromCancelEvents map[string]struct{}, reason string, cancel, fireEvents bool) error {
	collected, err := m.CollectChildren(c, execution, idsToExclude)
	if err != nil {
		return err
	}
	for i := len(collected) - 1; i >= 0; i-- {
		child := collected[i]
		if child.IsDeleted {
			continue
		}
		if cancel && fireEvents && (child.IsActive || child.IsMultiInstanceRoot) {
			if _, excluded := idsExcludedFromCancelEvents[child.ID]; !excluded {
				m.dispatchActivityCancelled(c, child, reason)
			}
		}
		if err := m.DeleteExecutionAndRelatedData(c, child, reason); err != nil {
			return err
		}
	}
	return nil
}

// CollectChildren 收集一个执行的全部后代（不含执行自身）
//
// 显式工作栈代替递归：弹出节点 → 记入结果 → 先压入节点的子流程实例，
// 再按启动时间逆序压入子执行。得到的扁平列表满足：
// 每层子执行按启动时间升序、每个执行后面紧跟其全部后代、
// 子流程实例（及其后代）排在拥有它的执行的子执行之后。
// 逆序遍历该列表即是安全的删除顺序（叶先于父）。
// excludeIDs中的执行不记入结果但仍然下探；已删除的子执行整棵跳过。
func (m *ExecutionManager) CollectChildren(c *command.Context, execution *entity.Execution, excludeIDs map[string]struct{}) ([]*entity.Execution, error) {
	var out []*entity.Execution
	seen := make(map[string]struct{})
	stack := []*entity.Execution{execution}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur.ID]; ok {
			continue
		}
		seen[cur.ID] = struct{}{}

		if cur != execution {
			if cur.IsDeleted {
				continue
			}
			if _, excluded := excludeIDs[cur.ID]; !excluded {
				out = append(out, cur)
			}
		}

		sub, err := m.loadSubProcessInstance(c, cur)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			stack = append(stack, sub)
		}

		if err := m.EnsureChildrenLoaded(c, cur); err != nil {
			return nil, err
		}
		cur.SortChildrenByStartTime()
		children := cur.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out, nil
}

// DeleteExecutionAndRelatedData 原子的单执行删除步骤
// 记录活动结束 → 标记结束失活 → 删除关联数据 → 从父子集合移除 → 删除执行行。
// 已标记删除的执行直接返回（避免级联路径与子流程实例递归的重复删除）。
func (m *ExecutionManager) DeleteExecutionAndRelatedData(c *command.Context, execution *entity.Execution, reason string) error {
	if execution.IsDeleted {
		return nil
	}

	if c.History() != nil && execution.ActivityID != "" {
		if err := c.History().RecordActivityEnd(c, execution, reason); err != nil {
			return err
		}
	}
	execution.MarkEnded()

	if err := m.deleteRelatedDataForExecution(c, execution, reason); err != nil {
		return err
	}

	if parent := execution.Parent(); parent != nil {
		parent.RemoveChild(execution)
	}
	if err := manager.Delete(c, c.Session().Executions(), execution, true); err != nil {
		return err
	}
	execution.MarkDeleted(reason)
	// 缓存中留下已标记删除的墓碑：同一工作单元内按ID的重复删除经缓存命中幂等短路
	c.Cache().Put(entity.KindExecution, execution.ID, execution)
	return nil
}

// deleteRelatedDataForExecution 删除执行拥有的全部关联数据
//
// 每类数据独立经过计数优化门控：计数开启且计数为0时整类跳过，不产生查询。
// 批量删除前先逐行取出并分发单行删除事件，观察者看到每行一条事件。
func (m *ExecutionManager) deleteRelatedDataForExecution(c *command.Context, e *entity.Execution, reason string) error {
	s := c.Session()
	countEnabled := e.CountEnabled()
	dispatch := c.Dispatcher().IsEnabled()

	// 身份关联（流程实例级）
	if e.IsProcessInstance() && (!countEnabled || e.IdentityLinkCount() > 0) {
		if dispatch {
			links, err := s.IdentityLinks().FindByProcessInstanceID(c.Ctx(), e.ID)
			if err != nil {
				return fmt.Errorf("查询身份关联失败: %s: %w", e.ID, err)
			}
			for _, l := range links {
				m.dispatchEntityDeleted(c, entity.KindIdentityLink, l.ID, e)
			}
		}
		if err := s.IdentityLinks().DeleteByProcessInstanceID(c.Ctx(), e.ID); err != nil {
			return fmt.Errorf("删除身份关联失败: %s: %w", e.ID, err)
		}
	}

	// 实体关联（仅根流程实例范围）
	if e.IsProcessInstance() && e.ID == e.RootProcessInstanceID {
		if dispatch {
			links, err := s.EntityLinks().FindByRootProcessInstanceID(c.Ctx(), e.ID)
			if err != nil {
				return fmt.Errorf("查询实体关联失败: %s: %w", e.ID, err)
			}
			for _, l := range links {
				m.dispatchEntityDeleted(c, entity.KindEntityLink, l.ID, e)
			}
		}
		if err := s.EntityLinks().DeleteByRootProcessInstanceID(c.Ctx(), e.ID); err != nil {
			return fmt.Errorf("删除实体关联失败: %s: %w", e.ID, err)
		}
	}

	// 变量（字节数组先于变量删除）
	if !countEnabled || e.VariableCount() > 0 {
		vars, err := s.Variables().FindByExecutionID(c.Ctx(), e.ID)
		if err != nil {
			return fmt.Errorf("查询变量失败: %s: %w", e.ID, err)
		}
		for _, v := range vars {
			if v.ByteArrayID != "" {
				if err := s.ByteArrays().Delete(c.Ctx(), v.ByteArrayID); err != nil {
					return fmt.Errorf("删除变量字节数组失败: %s: %w", v.ByteArrayID, err)
				}
				c.Cache().Remove(entity.KindByteArray, v.ByteArrayID)
			}
			if dispatch {
				c.Dispatcher().Dispatch(&event.EngineEvent{
					Type:              event.VariableDeleted,
					EntityKind:        entity.KindVariable,
					EntityID:          v.ID,
					ExecutionID:       e.ID,
					ProcessInstanceID: e.ProcessInstanceID,
					Reason:            v.Name,
					Timestamp:         m.clock(),
				})
				m.dispatchEntityDeleted(c, entity.KindVariable, v.ID, e)
			}
			if c.History() != nil {
				if err := c.History().RecordVariableRemoved(c, v); err != nil {
					return err
				}
			}
			c.Cache().Remove(entity.KindVariable, v.ID)
		}
		if err := s.Variables().DeleteByExecutionID(c.Ctx(), e.ID); err != nil {
			return fmt.Errorf("删除变量失败: %s: %w", e.ID, err)
		}
	}

	// 任务（删除协作方自带计数门控）
	if err := m.tasks.DeleteTasksForExecution(c, e, reason); err != nil {
		return err
	}

	// 各类异步任务（各类计数相互独立门控）
	jobKinds := []struct {
		kind  entity.JobKind
		count int32
	}{
		{entity.JobKindAsync, e.JobCount()},
		{entity.JobKindTimer, e.TimerJobCount()},
		{entity.JobKindSuspended, e.SuspendedJobCount()},
		{entity.JobKindDeadLetter, e.DeadLetterJobCount()},
		{entity.JobKindExternalWorker, e.ExternalWorkerJobCount()},
	}
	for _, jk := range jobKinds {
		if countEnabled && jk.count == 0 {
			continue
		}
		jobs, err := s.Jobs().FindByExecutionIDAndKind(c.Ctx(), e.ID, jk.kind)
		if err != nil {
			return fmt.Errorf("查询%s任务失败: %s: %w", jk.kind, e.ID, err)
		}
		for _, j := range jobs {
			if dispatch {
				c.Dispatcher().Dispatch(&event.EngineEvent{
					Type:              event.JobCancelled,
					EntityKind:        entity.KindJob,
					EntityID:          j.ID,
					ExecutionID:       e.ID,
					ProcessInstanceID: e.ProcessInstanceID,
					Reason:            reason,
					Timestamp:         m.clock(),
				})
				m.dispatchEntityDeleted(c, entity.KindJob, j.ID, e)
			}
			c.Cache().Remove(entity.KindJob, j.ID)
		}
		if err := s.Jobs().DeleteByExecutionIDAndKind(c.Ctx(), e.ID, jk.kind); err != nil {
			return fmt.Errorf("删除%s任务失败: %s: %w", jk.kind, e.ID, err)
		}
	}

	// 事件订阅
	if !countEnabled || e.EventSubscriptionCount() > 0 {
		subs, err := s.EventSubscriptions().FindByExecutionID(c.Ctx(), e.ID)
		if err != nil {
			return fmt.Errorf("查询事件订阅失败: %s: %w", e.ID, err)
		}
		for _, sub := range subs {
			if dispatch {
				m.dispatchEntityDeleted(c, entity.KindEventSubscription, sub.ID, e)
			}
			c.Cache().Remove(entity.KindEventSubscription, sub.ID)
		}
		if err := s.EventSubscriptions().DeleteByExecutionID(c.Ctx(), e.ID); err != nil {
			return fmt.Errorf("删除事件订阅失败: %s: %w", e.ID, err)
		}
	}

	// 执行自身的活动实例审计行
	if err := s.ActivityInstances().DeleteByExecutionID(c.Ctx(), e.ID); err != nil {
		return fmt.Errorf("删除活动实例记录失败: %s: %w", e.ID, err)
	}
	for _, cached := range c.Cache().FindInCache(entity.KindActivityInstance) {
		if ai, ok := cached.(*entity.ActivityInstance); ok && ai.ExecutionID == e.ID {
			c.Cache().Remove(entity.KindActivityInstance, ai.ID)
		}
	}

	// 跨引擎子Case实例
	if e.CallbackID != "" && m.caseCallback != nil {
		if err := m.caseCallback(c, e, reason); err != nil {
			return fmt.Errorf("删除子Case实例失败: 执行%s 回调%s: %w", e.ID, e.CallbackID, err)
		}
	}
	return nil
}

// deleteActivityInstancesForProcessInstance 删除流程实例的全部活动实例审计行（含缓存）
func (m *ExecutionManager) deleteActivityInstancesForProcessInstance(c *command.Context, processInstanceID string) error {
	if err := c.Session().ActivityInstances().DeleteByProcessInstanceID(c.Ctx(), processInstanceID); err != nil {
		return fmt.Errorf("删除流程实例活动记录失败: %s: %w", processInstanceID, err)
	}
	for _, cached := range c.Cache().FindInCache(entity.KindActivityInstance) {
		if ai, ok := cached.(*entity.ActivityInstance); ok && ai.ProcessInstanceID == processInstanceID {
			c.Cache().Remove(entity.KindActivityInstance, ai.ID)
		}
	}
	return nil
}

// ===== 事件分发辅助 =====

func (m *ExecutionManager) dispatchActivityCancelled(c *command.Context, e *entity.Execution, reason string) {
	if !c.Dispatcher().IsEnabled() {
		return
	}
	ev := &event.EngineEvent{
		Type:                event.ActivityCancelled,
		EntityKind:          entity.KindExecution,
		EntityID:            e.ID,
		ExecutionID:         e.ID,
		ProcessInstanceID:   e.ProcessInstanceID,
		ProcessDefinitionID: e.ProcessDefinitionID,
		ActivityID:          e.ActivityID,
		ActivityName:        e.ActivityName,
		Reason:              reason,
		Timestamp:           m.clock(),
	}
	if e.CurrentFlowElement != nil {
		ev.ActivityType = entity.LowerCamel(e.CurrentFlowElement.TypeName)
	}
	c.Dispatcher().Dispatch(ev)
}

func (m *ExecutionManager) dispatchProcessEvent(c *command.Context, t event.Type, pi *entity.Execution, reason string) {
	if !c.Dispatcher().IsEnabled() {
		return
	}
	c.Dispatcher().Dispatch(&event.EngineEvent{
		Type:                t,
		EntityKind:          entity.KindExecution,
		EntityID:            pi.ID,
		ExecutionID:         pi.ID,
		ProcessInstanceID:   pi.ID,
		ProcessDefinitionID: pi.ProcessDefinitionID,
		Reason:              reason,
		Timestamp:           m.clock(),
	})
}

func (m *ExecutionManager) dispatchEntityDeleted(c *command.Context, kind, id string, e *entity.Execution) {
	c.Dispatcher().Dispatch(&event.EngineEvent{
		Type:              event.EntityDeleted,
		EntityKind:        kind,
		EntityID:          id,
		ExecutionID:       e.ID,
		ProcessInstanceID: e.ProcessInstanceID,
		Timestamp:         m.clock(),
	})
}
