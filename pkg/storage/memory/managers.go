package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/storage"
)

// ===== 执行 =====

type executionDM struct{ s *session }

func (m *executionDM) FindByID(ctx context.Context, id string) (*entity.Execution, error) {
	m.s.store.countQuery("execution.FindByID")
	e, ok := m.s.work.executions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

func (m *executionDM) FindByRootProcessInstanceID(ctx context.Context, rootID string) ([]*entity.Execution, error) {
	m.s.store.countQuery("execution.FindByRootProcessInstanceID")
	var out []*entity.Execution
	for _, e := range m.s.work.executions {
		if e.RootProcessInstanceID == rootID {
			out = append(out, e.Clone())
		}
	}
	sortExecutions(out)
	return out, nil
}

func (m *executionDM) FindChildrenByParentID(ctx context.Context, parentID string) ([]*entity.Execution, error) {
	m.s.store.countQuery("execution.FindChildrenByParentID")
	var out []*entity.Execution
	for _, e := range m.s.work.executions {
		if e.ParentID == parentID {
			out = append(out, e.Clone())
		}
	}
	sortExecutions(out)
	return out, nil
}

func (m *executionDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.Execution, error) {
	m.s.store.countQuery("execution.FindByProcessInstanceID")
	var out []*entity.Execution
	for _, e := range m.s.work.executions {
		if e.ProcessInstanceID == processInstanceID {
			out = append(out, e.Clone())
		}
	}
	sortExecutions(out)
	return out, nil
}

func (m *executionDM) FindSubProcessInstanceBySuperExecutionID(ctx context.Context, superExecutionID string) (*entity.Execution, error) {
	m.s.store.countQuery("execution.FindSubProcessInstanceBySuperExecutionID")
	for _, e := range m.s.work.executions {
		if e.SuperExecutionID == superExecutionID {
			return e.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *executionDM) Insert(ctx context.Context, e *entity.Execution) error {
	if _, exists := m.s.work.executions[e.ID]; exists {
		return fmt.Errorf("执行已存在: %s", e.ID)
	}
	// 引用完整性：父执行和调用方执行必须存在
	if e.ParentID != "" {
		if _, ok := m.s.work.executions[e.ParentID]; !ok {
			return fmt.Errorf("%w: 父执行不存在: %s", storage.ErrForeignKey, e.ParentID)
		}
	}
	if e.SuperExecutionID != "" {
		if _, ok := m.s.work.executions[e.SuperExecutionID]; !ok {
			return fmt.Errorf("%w: 调用方执行不存在: %s", storage.ErrForeignKey, e.SuperExecutionID)
		}
	}
	m.s.markWrite("execution", e.ID, 0)
	m.s.work.executions[e.ID] = e.Clone()
	return nil
}

func (m *executionDM) Update(ctx context.Context, e *entity.Execution) error {
	stored, ok := m.s.work.executions[e.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Revision != e.Revision {
		return fmt.Errorf("%w: execution %s", storage.ErrOptimisticLock, e.ID)
	}
	m.s.markWrite("execution", e.ID, stored.Revision)
	e.Revision++
	m.s.work.executions[e.ID] = e.Clone()
	return nil
}

func (m *executionDM) Delete(ctx context.Context, id string) error {
	stored, ok := m.s.work.executions[id]
	if !ok {
		return storage.ErrNotFound
	}
	// 引用完整性：子执行、任务、变量、异步任务、事件订阅必须先删除
	for _, e := range m.s.work.executions {
		if e.ParentID == id {
			return fmt.Errorf("%w: 执行%s仍有子执行%s", storage.ErrForeignKey, id, e.ID)
		}
	}
	for _, t := range m.s.work.tasks {
		if t.ExecutionID == id {
			return fmt.Errorf("%w: 执行%s仍有任务%s", storage.ErrForeignKey, id, t.ID)
		}
	}
	for _, v := range m.s.work.variables {
		if v.ExecutionID == id && v.TaskID == "" {
			return fmt.Errorf("%w: 执行%s仍有变量%s", storage.ErrForeignKey, id, v.Name)
		}
	}
	for _, j := range m.s.work.jobs {
		if j.ExecutionID == id {
			return fmt.Errorf("%w: 执行%s仍有异步任务%s", storage.ErrForeignKey, id, j.ID)
		}
	}
	for _, sub := range m.s.work.eventSubs {
		if sub.ExecutionID == id {
			return fmt.Errorf("%w: 执行%s仍有事件订阅%s", storage.ErrForeignKey, id, sub.ID)
		}
	}
	m.s.markWrite("execution", id, stored.Revision)
	delete(m.s.work.executions, id)
	return nil
}

// sortExecutions 按启动时间升序、同时间按ID排序（确定性顺序）
func sortExecutions(list []*entity.Execution) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartTime.Before(list[j].StartTime)
	})
}

// ===== 任务 =====

type taskDM struct{ s *session }

func (m *taskDM) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	m.s.store.countQuery("task.FindByID")
	t, ok := m.s.work.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *taskDM) FindByExecutionID(ctx context.Context, executionID string) ([]*entity.Task, error) {
	m.s.store.countQuery("task.FindByExecutionID")
	var out []*entity.Task
	for _, t := range m.s.work.tasks {
		if t.ExecutionID == executionID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *taskDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.Task, error) {
	m.s.store.countQuery("task.FindByProcessInstanceID")
	var out []*entity.Task
	for _, t := range m.s.work.tasks {
		if t.ProcessInstanceID == processInstanceID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (m *taskDM) Insert(ctx context.Context, t *entity.Task) error {
	if t.ExecutionID != "" {
		if _, ok := m.s.work.executions[t.ExecutionID]; !ok {
			return fmt.Errorf("%w: 执行不存在: %s", storage.ErrForeignKey, t.ExecutionID)
		}
	}
	m.s.markWrite("task", t.ID, 0)
	m.s.work.tasks[t.ID] = t.Clone()
	return nil
}

func (m *taskDM) Update(ctx context.Context, t *entity.Task) error {
	stored, ok := m.s.work.tasks[t.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Revision != t.Revision {
		return fmt.Errorf("%w: task %s", storage.ErrOptimisticLock, t.ID)
	}
	m.s.markWrite("task", t.ID, stored.Revision)
	t.Revision++
	m.s.work.tasks[t.ID] = t.Clone()
	return nil
}

func (m *taskDM) Delete(ctx context.Context, id string) error {
	stored, ok := m.s.work.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	for _, v := range m.s.work.variables {
		if v.TaskID == id {
			return fmt.Errorf("%w: 任务%s仍有局部变量%s", storage.ErrForeignKey, id, v.Name)
		}
	}
	m.s.markWrite("task", id, stored.Revision)
	delete(m.s.work.tasks, id)
	return nil
}

// ===== 变量 =====

type variableDM struct{ s *session }

func (m *variableDM) FindByID(ctx context.Context, id string) (*entity.VariableInstance, error) {
	m.s.store.countQuery("variable.FindByID")
	v, ok := m.s.work.variables[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v.Clone(), nil
}

func (m *variableDM) FindByExecutionID(ctx context.Context, executionID string) ([]*entity.VariableInstance, error) {
	m.s.store.countQuery("variable.FindByExecutionID")
	var out []*entity.VariableInstance
	for _, v := range m.s.work.variables {
		if v.ExecutionID == executionID && v.TaskID == "" {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (m *variableDM) FindByExecutionIDAndName(ctx context.Context, executionID, name string) (*entity.VariableInstance, error) {
	m.s.store.countQuery("variable.FindByExecutionIDAndName")
	for _, v := range m.s.work.variables {
		if v.ExecutionID == executionID && v.TaskID == "" && v.Name == name {
			return v.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *variableDM) FindByTaskID(ctx context.Context, taskID string) ([]*entity.VariableInstance, error) {
	m.s.store.countQuery("variable.FindByTaskID")
	var out []*entity.VariableInstance
	for _, v := range m.s.work.variables {
		if v.TaskID == taskID {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (m *variableDM) FindByTaskIDAndName(ctx context.Context, taskID, name string) (*entity.VariableInstance, error) {
	m.s.store.countQuery("variable.FindByTaskIDAndName")
	for _, v := range m.s.work.variables {
		if v.TaskID == taskID && v.Name == name {
			return v.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *variableDM) Insert(ctx context.Context, v *entity.VariableInstance) error {
	if v.ExecutionID != "" {
		if _, ok := m.s.work.executions[v.ExecutionID]; !ok {
			return fmt.Errorf("%w: 执行不存在: %s", storage.ErrForeignKey, v.ExecutionID)
		}
	}
	if v.TaskID != "" {
		if _, ok := m.s.work.tasks[v.TaskID]; !ok {
			return fmt.Errorf("%w: 任务不存在: %s", storage.ErrForeignKey, v.TaskID)
		}
	}
	m.s.markWrite("variable", v.ID, 0)
	m.s.work.variables[v.ID] = v.Clone()
	return nil
}

func (m *variableDM) Update(ctx context.Context, v *entity.VariableInstance) error {
	stored, ok := m.s.work.variables[v.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Revision != v.Revision {
		return fmt.Errorf("%w: variable %s", storage.ErrOptimisticLock, v.ID)
	}
	m.s.markWrite("variable", v.ID, stored.Revision)
	v.Revision++
	m.s.work.variables[v.ID] = v.Clone()
	return nil
}

func (m *variableDM) Delete(ctx context.Context, id string) error {
	stored, ok := m.s.work.variables[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.s.markWrite("variable", id, stored.Revision)
	delete(m.s.work.variables, id)
	return nil
}

func (m *variableDM) DeleteByExecutionID(ctx context.Context, executionID string) error {
	for id, v := range m.s.work.variables {
		if v.ExecutionID == executionID && v.TaskID == "" {
			m.s.markWrite("variable", id, v.Revision)
			delete(m.s.work.variables, id)
		}
	}
	return nil
}

func (m *variableDM) DeleteByTaskID(ctx context.Context, taskID string) error {
	for id, v := range m.s.work.variables {
		if v.TaskID == taskID {
			m.s.markWrite("variable", id, v.Revision)
			delete(m.s.work.variables, id)
		}
	}
	return nil
}

// ===== 字节数组 =====

type byteArrayDM struct{ s *session }

func (m *byteArrayDM) FindByID(ctx context.Context, id string) (*entity.ByteArray, error) {
	m.s.store.countQuery("byte-array.FindByID")
	b, ok := m.s.work.byteArrays[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *byteArrayDM) Insert(ctx context.Context, b *entity.ByteArray) error {
	copied := *b
	m.s.work.byteArrays[b.ID] = &copied
	return nil
}

func (m *byteArrayDM) Delete(ctx context.Context, id string) error {
	delete(m.s.work.byteArrays, id)
	return nil
}

// ===== 异步任务 =====

type jobDM struct{ s *session }

func (m *jobDM) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	m.s.store.countQuery("job.FindByID")
	j, ok := m.s.work.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return j.Clone(), nil
}

func (m *jobDM) FindByExecutionIDAndKind(ctx context.Context, executionID string, kind entity.JobKind) ([]*entity.Job, error) {
	m.s.store.countQuery("job.FindByExecutionIDAndKind")
	var out []*entity.Job
	for _, j := range m.s.work.jobs {
		if j.ExecutionID == executionID && j.JobKind == kind {
			out = append(out, j.Clone())
		}
	}
	return out, nil
}

func (m *jobDM) Insert(ctx context.Context, j *entity.Job) error {
	if j.ExecutionID != "" {
		if _, ok := m.s.work.executions[j.ExecutionID]; !ok {
			return fmt.Errorf("%w: 执行不存在: %s", storage.ErrForeignKey, j.ExecutionID)
		}
	}
	m.s.markWrite("job", j.ID, 0)
	m.s.work.jobs[j.ID] = j.Clone()
	return nil
}

func (m *jobDM) Update(ctx context.Context, j *entity.Job) error {
	stored, ok := m.s.work.jobs[j.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Revision != j.Revision {
		return fmt.Errorf("%w: job %s", storage.ErrOptimisticLock, j.ID)
	}
	m.s.markWrite("job", j.ID, stored.Revision)
	j.Revision++
	m.s.work.jobs[j.ID] = j.Clone()
	return nil
}

func (m *jobDM) Delete(ctx context.Context, id string) error {
	stored, ok := m.s.work.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.s.markWrite("job", id, stored.Revision)
	delete(m.s.work.jobs, id)
	return nil
}

func (m *jobDM) DeleteByExecutionIDAndKind(ctx context.Context, executionID string, kind entity.JobKind) error {
	for id, j := range m.s.work.jobs {
		if j.ExecutionID == executionID && j.JobKind == kind {
			m.s.markWrite("job", id, j.Revision)
			delete(m.s.work.jobs, id)
		}
	}
	return nil
}

// ===== 事件订阅 =====

type eventSubDM struct{ s *session }

func (m *eventSubDM) FindByID(ctx context.Context, id string) (*entity.EventSubscription, error) {
	m.s.store.countQuery("event-subscription.FindByID")
	sub, ok := m.s.work.eventSubs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (m *eventSubDM) FindByExecutionID(ctx context.Context, executionID string) ([]*entity.EventSubscription, error) {
	m.s.store.countQuery("event-subscription.FindByExecutionID")
	var out []*entity.EventSubscription
	for _, sub := range m.s.work.eventSubs {
		if sub.ExecutionID == executionID {
			copied := *sub
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *eventSubDM) Insert(ctx context.Context, sub *entity.EventSubscription) error {
	if sub.ExecutionID != "" {
		if _, ok := m.s.work.executions[sub.ExecutionID]; !ok {
			return fmt.Errorf("%w: 执行不存在: %s", storage.ErrForeignKey, sub.ExecutionID)
		}
	}
	m.s.markWrite("event-subscription", sub.ID, 0)
	copied := *sub
	m.s.work.eventSubs[sub.ID] = &copied
	return nil
}

func (m *eventSubDM) Update(ctx context.Context, sub *entity.EventSubscription) error {
	stored, ok := m.s.work.eventSubs[sub.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Revision != sub.Revision {
		return fmt.Errorf("%w: event-subscription %s", storage.ErrOptimisticLock, sub.ID)
	}
	m.s.markWrite("event-subscription", sub.ID, stored.Revision)
	sub.Revision++
	copied := *sub
	m.s.work.eventSubs[sub.ID] = &copied
	return nil
}

func (m *eventSubDM) Delete(ctx context.Context, id string) error {
	stored, ok := m.s.work.eventSubs[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.s.markWrite("event-subscription", id, stored.Revision)
	delete(m.s.work.eventSubs, id)
	return nil
}

func (m *eventSubDM) DeleteByExecutionID(ctx context.Context, executionID string) error {
	for id, sub := range m.s.work.eventSubs {
		if sub.ExecutionID == executionID {
			m.s.markWrite("event-subscription", id, sub.Revision)
			delete(m.s.work.eventSubs, id)
		}
	}
	return nil
}

// ===== 身份关联 =====

type identityLinkDM struct{ s *session }

func (m *identityLinkDM) FindByTaskID(ctx context.Context, taskID string) ([]*entity.IdentityLink, error) {
	m.s.store.countQuery("identity-link.FindByTaskID")
	var out []*entity.IdentityLink
	for _, l := range m.s.work.identityLinks {
		if l.TaskID == taskID {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *identityLinkDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.IdentityLink, error) {
	m.s.store.countQuery("identity-link.FindByProcessInstanceID")
	var out []*entity.IdentityLink
	for _, l := range m.s.work.identityLinks {
		if l.ProcessInstanceID == processInstanceID {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *identityLinkDM) Insert(ctx context.Context, l *entity.IdentityLink) error {
	copied := *l
	m.s.work.identityLinks[l.ID] = &copied
	return nil
}

func (m *identityLinkDM) Delete(ctx context.Context, id string) error {
	delete(m.s.work.identityLinks, id)
	return nil
}

func (m *identityLinkDM) DeleteByTaskID(ctx context.Context, taskID string) error {
	for id, l := range m.s.work.identityLinks {
		if l.TaskID == taskID {
			delete(m.s.work.identityLinks, id)
		}
	}
	return nil
}

func (m *identityLinkDM) DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error {
	for id, l := range m.s.work.identityLinks {
		if l.ProcessInstanceID == processInstanceID {
			delete(m.s.work.identityLinks, id)
		}
	}
	return nil
}

// ===== 实体关联 =====

type entityLinkDM struct{ s *session }

func (m *entityLinkDM) FindByRootProcessInstanceID(ctx context.Context, rootProcessInstanceID string) ([]*entity.EntityLink, error) {
	m.s.store.countQuery("entity-link.FindByRootProcessInstanceID")
	var out []*entity.EntityLink
	for _, l := range m.s.work.entityLinks {
		if l.RootProcessInstanceID == rootProcessInstanceID {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *entityLinkDM) Insert(ctx context.Context, l *entity.EntityLink) error {
	copied := *l
	m.s.work.entityLinks[l.ID] = &copied
	return nil
}

func (m *entityLinkDM) DeleteByRootProcessInstanceID(ctx context.Context, rootProcessInstanceID string) error {
	for id, l := range m.s.work.entityLinks {
		if l.RootProcessInstanceID == rootProcessInstanceID {
			delete(m.s.work.entityLinks, id)
		}
	}
	return nil
}

// ===== 活动实例 =====

type activityInstanceDM struct{ s *session }

func (m *activityInstanceDM) FindByID(ctx context.Context, id string) (*entity.ActivityInstance, error) {
	m.s.store.countQuery("activity-instance.FindByID")
	a, ok := m.s.work.activityInstances[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *activityInstanceDM) FindOpenByExecutionIDAndActivityID(ctx context.Context, executionID, activityID string) (*entity.ActivityInstance, error) {
	m.s.store.countQuery("activity-instance.FindOpenByExecutionIDAndActivityID")
	for _, a := range m.s.work.activityInstances {
		if a.ExecutionID == executionID && a.ActivityID == activityID && a.EndTime == nil {
			return a.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *activityInstanceDM) FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.ActivityInstance, error) {
	m.s.store.countQuery("activity-instance.FindByProcessInstanceID")
	var out []*entity.ActivityInstance
	for _, a := range m.s.work.activityInstances {
		if a.ProcessInstanceID == processInstanceID {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (m *activityInstanceDM) Insert(ctx context.Context, a *entity.ActivityInstance) error {
	m.s.markWrite("activity-instance", a.ID, 0)
	m.s.work.activityInstances[a.ID] = a.Clone()
	return nil
}

func (m *activityInstanceDM) Update(ctx context.Context, a *entity.ActivityInstance) error {
	stored, ok := m.s.work.activityInstances[a.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if stored.Revision != a.Revision {
		return fmt.Errorf("%w: activity-instance %s", storage.ErrOptimisticLock, a.ID)
	}
	m.s.markWrite("activity-instance", a.ID, stored.Revision)
	a.Revision++
	m.s.work.activityInstances[a.ID] = a.Clone()
	return nil
}

func (m *activityInstanceDM) Delete(ctx context.Context, id string) error {
	stored, ok := m.s.work.activityInstances[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.s.markWrite("activity-instance", id, stored.Revision)
	delete(m.s.work.activityInstances, id)
	return nil
}

func (m *activityInstanceDM) DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error {
	for id, a := range m.s.work.activityInstances {
		if a.ProcessInstanceID == processInstanceID {
			m.s.markWrite("activity-instance", id, a.Revision)
			delete(m.s.work.activityInstances, id)
		}
	}
	return nil
}

func (m *activityInstanceDM) DeleteByExecutionID(ctx context.Context, executionID string) error {
	for id, a := range m.s.work.activityInstances {
		if a.ExecutionID == executionID {
			m.s.markWrite("activity-instance", id, a.Revision)
			delete(m.s.work.activityInstances, id)
		}
	}
	return nil
}

// ===== 历史 =====

type historyDM struct{ s *session }

func (m *historyDM) InsertProcessInstance(ctx context.Context, h *storage.HistoricProcessInstance) error {
	copied := *h
	m.s.work.historicProcessInstances[h.ID] = &copied
	return nil
}

func (m *historyDM) FindProcessInstanceByID(ctx context.Context, id string) (*storage.HistoricProcessInstance, error) {
	m.s.store.countQuery("history.FindProcessInstanceByID")
	h, ok := m.s.work.historicProcessInstances[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *h
	return &copied, nil
}

func (m *historyDM) UpdateProcessInstance(ctx context.Context, h *storage.HistoricProcessInstance) error {
	if _, ok := m.s.work.historicProcessInstances[h.ID]; !ok {
		return storage.ErrNotFound
	}
	copied := *h
	m.s.work.historicProcessInstances[h.ID] = &copied
	return nil
}

func (m *historyDM) InsertActivityInstance(ctx context.Context, h *storage.HistoricActivityInstance) error {
	copied := *h
	m.s.work.historicActivities[h.ID] = &copied
	return nil
}

func (m *historyDM) UpdateActivityInstance(ctx context.Context, h *storage.HistoricActivityInstance) error {
	if _, ok := m.s.work.historicActivities[h.ID]; !ok {
		return storage.ErrNotFound
	}
	copied := *h
	m.s.work.historicActivities[h.ID] = &copied
	return nil
}

func (m *historyDM) FindOpenActivityInstance(ctx context.Context, executionID, activityID string) (*storage.HistoricActivityInstance, error) {
	m.s.store.countQuery("history.FindOpenActivityInstance")
	for _, h := range m.s.work.historicActivities {
		if h.ExecutionID == executionID && h.ActivityID == activityID && h.EndTime == nil {
			copied := *h
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *historyDM) UpsertVariable(ctx context.Context, h *storage.HistoricVariable) error {
	copied := *h
	m.s.work.historicVariables[h.ID] = &copied
	return nil
}

func (m *historyDM) InsertDetail(ctx context.Context, d *storage.HistoricDetail) error {
	copied := *d
	m.s.work.historicDetails[d.ID] = &copied
	return nil
}

func (m *historyDM) DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error {
	delete(m.s.work.historicProcessInstances, processInstanceID)
	for id, h := range m.s.work.historicActivities {
		if h.ProcessInstanceID == processInstanceID {
			delete(m.s.work.historicActivities, id)
		}
	}
	for id, h := range m.s.work.historicVariables {
		if h.ProcessInstanceID == processInstanceID {
			delete(m.s.work.historicVariables, id)
		}
	}
	for id, d := range m.s.work.historicDetails {
		if d.ProcessInstanceID == processInstanceID {
			delete(m.s.work.historicDetails, id)
		}
	}
	return nil
}
