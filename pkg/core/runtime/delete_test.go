package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/job"
	"github.com/LENAX/process-engine/pkg/core/variable"
	"github.com/LENAX/process-engine/pkg/storage"
)

// recordingSubProcessBehavior 记录CallActivity完成回调的行为
type recordingSubProcessBehavior struct {
	calls             []string
	subNilAtCompleted bool
}

func (b *recordingSubProcessBehavior) Completing(c *command.Context, caller, sub *entity.Execution) error {
	b.calls = append(b.calls, "completing")
	return nil
}

func (b *recordingSubProcessBehavior) Completed(c *command.Context, caller *entity.Execution) error {
	b.calls = append(b.calls, "completed")
	b.subNilAtCompleted = caller.SubProcessInstance() == nil
	return nil
}

// recordingInterruptBehavior 记录中断钩子的行为
type recordingInterruptBehavior struct {
	interrupted []string
}

func (b *recordingInterruptBehavior) Interrupted(c *command.Context, e *entity.Execution) error {
	b.interrupted = append(b.interrupted, e.ID)
	return nil
}

// recordingInterceptor 记录流程实例结束拦截器调用
type recordingInterceptor struct {
	calls []string
}

func (i *recordingInterceptor) BeforeEndProcessInstance(c *command.Context, id string) error {
	i.calls = append(i.calls, "before:"+id)
	return nil
}

func (i *recordingInterceptor) AfterEndProcessInstance(c *command.Context, id string) error {
	i.calls = append(i.calls, "after:"+id)
	return nil
}

func TestCollectChildren_DeterministicOrder(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi, a, a1, a2, b, sub *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		if a, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if b, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if a1, err = f.mgr.CreateChildExecution(c, a); err != nil {
			return err
		}
		if a2, err = f.mgr.CreateChildExecution(c, a); err != nil {
			return err
		}
		sub, err = f.mgr.CreateSubprocessInstance(c, b, CreateSubprocessInstanceRequest{})
		return err
	})
	require.NoError(t, err)

	err = f.exec.Execute(ctx, func(c *command.Context) error {
		root, err := f.mgr.FindByID(c, pi.ID)
		if err != nil {
			return err
		}
		collected, err := f.mgr.CollectChildren(c, root, nil)
		if err != nil {
			return err
		}

		// 每层按启动时间升序，执行后面紧跟其全部后代，
		// 子流程实例排在拥有它的执行的子执行之后
		ids := make([]string, 0, len(collected))
		for _, e := range collected {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{a.ID, a1.ID, a2.ID, b.ID, sub.ID}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestCollectChildren_ExcludeIDsStillDescends(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi, a, a1 *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		if a, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if a1, err = f.mgr.CreateChildExecution(c, a); err != nil {
			return err
		}

		exclude := map[string]struct{}{a.ID: {}}
		collected, err := f.mgr.CollectChildren(c, pi, exclude)
		if err != nil {
			return err
		}

		// 被排除的执行不记入结果，但其后代仍然下探
		ids := make([]string, 0, len(collected))
		for _, e := range collected {
			ids = append(ids, e.ID)
		}
		assert.Equal(t, []string{a1.ID}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteProcessInstance_CascadeRemovesEverything(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()
	jobs := job.NewManager(nil)

	var pi, a, b *entity.Execution
	var task *entity.Task
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			BusinessKey: "order-42",
		}); err != nil {
			return err
		}
		if a, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if b, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if task, err = f.mgr.Tasks().CreateTask(c, a, "审批订单", "approve", "alice"); err != nil {
			return err
		}
		if _, err = jobs.CreateJob(c, b, job.CreateJobRequest{
			Kind:        entity.JobKindAsync,
			HandlerType: "async-continuation",
		}); err != nil {
			return err
		}
		_, err = variable.NewExecutionScope(pi).CreateVariableLocal(c, "amount", 100)
		return err
	})
	require.NoError(t, err)

	f.disp.Reset()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstance(c, pi.ID, "用户取消", true)
	})
	require.NoError(t, err)

	// 整棵树及全部关联数据、历史全部清除
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		for _, id := range []string{pi.ID, a.ID, b.ID} {
			_, err := c.Session().Executions().FindByID(c.Ctx(), id)
			assert.ErrorIs(t, err, storage.ErrNotFound, "执行%s应已删除", id)
		}
		_, err := c.Session().Tasks().FindByID(c.Ctx(), task.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		remaining, err := c.Session().Jobs().FindByExecutionIDAndKind(c.Ctx(), b.ID, entity.JobKindAsync)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		vars, err := c.Session().Variables().FindByExecutionID(c.Ctx(), pi.ID)
		require.NoError(t, err)
		assert.Empty(t, vars)

		_, err = c.Session().History().FindProcessInstanceByID(c.Ctx(), pi.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	// 整个删除一条流程级取消事件
	cancelled := f.disp.EventsOfType(event.ProcessCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, pi.ID, cancelled[0].ProcessInstanceID)
	assert.Equal(t, "用户取消", cancelled[0].Reason)

	// 变量、任务各有单行删除事件
	assert.Len(t, f.disp.EventsOfType(event.VariableDeleted), 1)
	assert.Len(t, f.disp.EventsOfType(event.JobCancelled), 1)

	// 执行行删除顺序：逆收集顺序（叶先于父），根最后
	var deletedExecutions []string
	for _, ev := range f.disp.EventsOfType(event.EntityDeleted) {
		if ev.EntityKind == entity.KindExecution {
			deletedExecutions = append(deletedExecutions, ev.EntityID)
		}
	}
	assert.Equal(t, []string{b.ID, a.ID, pi.ID}, deletedExecutions)

	assert.True(t, pi.IsDeleted)
}

func TestDeleteProcessInstance_CountingSkipsRelatedQueries(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		_, err = f.mgr.CreateChildExecution(c, pi)
		return err
	})
	require.NoError(t, err)

	f.store.ResetQueryCounts()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstance(c, pi.ID, "清理", true)
	})
	require.NoError(t, err)

	// 计数开启且各计数为0：关联数据删除不产生任何查询
	assert.Equal(t, int64(0), f.store.QueryCount("job.FindByExecutionIDAndKind"))
	assert.Equal(t, int64(0), f.store.QueryCount("task.FindByExecutionID"))
	assert.Equal(t, int64(0), f.store.QueryCount("variable.FindByExecutionID"))
	assert.Equal(t, int64(0), f.store.QueryCount("event-subscription.FindByExecutionID"))
}

func TestDeleteProcessInstance_CountingDisabledFallsBackToQueries(t *testing.T) {
	f := newFixture(false, nil)
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		_, err = f.mgr.CreateChildExecution(c, pi)
		return err
	})
	require.NoError(t, err)

	f.store.ResetQueryCounts()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstance(c, pi.ID, "清理", true)
	})
	require.NoError(t, err)

	// 计数关闭时退回查询路径：两个执行各查5类异步任务
	assert.Equal(t, int64(10), f.store.QueryCount("job.FindByExecutionIDAndKind"))
	assert.Greater(t, f.store.QueryCount("task.FindByExecutionID"), int64(0))
	assert.Equal(t, int64(2), f.store.QueryCount("variable.FindByExecutionID"))
}

func TestDeleteProcessInstance_CallActivityCompletesCaller(t *testing.T) {
	behavior := &recordingSubProcessBehavior{}
	f := newFixture(true, func(cfg *ManagerConfig) {
		cfg.Behaviors = mapResolver{"call1": behavior}
	})
	ctx := context.Background()

	var caller, sub *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if caller, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			StartActivityID: "call1",
		}); err != nil {
			return err
		}
		sub, err = f.mgr.CreateSubprocessInstance(c, caller, CreateSubprocessInstanceRequest{})
		return err
	})
	require.NoError(t, err)

	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstance(c, sub.ID, "子流程结束", true)
	})
	require.NoError(t, err)

	// completing在解除super/sub关系前，completed在解除后
	assert.Equal(t, []string{"completing", "completed"}, behavior.calls)
	assert.True(t, behavior.subNilAtCompleted)

	err = f.exec.Execute(ctx, func(c *command.Context) error {
		// 调用方执行保留，子流程实例删除
		_, err := c.Session().Executions().FindByID(c.Ctx(), caller.ID)
		assert.NoError(t, err)
		_, err = c.Session().Executions().FindByID(c.Ctx(), sub.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteProcessInstance_CallActivityWithoutBehaviorStillUnwires(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var caller, sub *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if caller, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			StartActivityID: "call1",
		}); err != nil {
			return err
		}
		if sub, err = f.mgr.CreateSubprocessInstance(c, caller, CreateSubprocessInstanceRequest{}); err != nil {
			return err
		}
		// 同一工作单元内删除：直接使用已接线的实体
		if err = f.mgr.DeleteProcessInstance(c, sub.ID, "结束", true); err != nil {
			return err
		}
		assert.Nil(t, caller.SubProcessInstance())
		assert.Nil(t, sub.SuperExecution())
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteProcessInstance_Interceptors(t *testing.T) {
	interceptor := &recordingInterceptor{}
	f := newFixture(true, func(cfg *ManagerConfig) {
		cfg.EndProcessInstanceInterceptors = []EndProcessInstanceInterceptor{interceptor}
	})
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		return err
	})
	require.NoError(t, err)

	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstance(c, pi.ID, "清理", true)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"before:" + pi.ID, "after:" + pi.ID}, interceptor.calls)
}

func TestCascade_InterruptsActiveActivities(t *testing.T) {
	behavior := &recordingInterruptBehavior{}
	f := newFixture(true, func(cfg *ManagerConfig) {
		cfg.Behaviors = mapResolver{"act1": behavior}
	})

	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		pi, err := f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		if err != nil {
			return err
		}
		child, err := f.mgr.CreateChildExecution(c, pi)
		if err != nil {
			return err
		}
		child.ActivityID = "act1"

		if err := f.mgr.DeleteProcessInstance(c, pi.ID, "中断", true); err != nil {
			return err
		}
		assert.Equal(t, []string{child.ID}, behavior.interrupted)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteExecutionAndRelatedData_Idempotent(t *testing.T) {
	f := newFixture(true, nil)

	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		pi, err := f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		if err != nil {
			return err
		}

		if err := f.mgr.DeleteExecutionAndRelatedData(c, pi, "清理"); err != nil {
			return err
		}
		// 已标记删除的执行重复删除为空操作
		if err := f.mgr.DeleteExecutionAndRelatedData(c, pi, "清理"); err != nil {
			return err
		}
		assert.True(t, pi.IsDeleted)
		assert.True(t, pi.IsEnded)
		assert.False(t, pi.IsActive)
		return nil
	})
	require.NoError(t, err)

	// 执行行只删除一次，事件不重复
	var deletedExecutions int
	for _, ev := range f.disp.EventsOfType(event.EntityDeleted) {
		if ev.EntityKind == entity.KindExecution {
			deletedExecutions++
		}
	}
	assert.Equal(t, 1, deletedExecutions)
}

func TestDeleteProcessInstanceExecutionEntity_RegularEnd(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		if _, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		_, err = f.mgr.CreateChildExecution(c, pi)
		return err
	})
	require.NoError(t, err)

	f.disp.Reset()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstanceExecutionEntity(c, pi.ID, "end1", "正常完成", false, false, true)
	})
	require.NoError(t, err)

	// 非取消路径：完成事件一条，无取消事件
	assert.Len(t, f.disp.EventsOfType(event.ProcessCompleted), 1)
	assert.Empty(t, f.disp.EventsOfType(event.ProcessCancelled))
	assert.Empty(t, f.disp.EventsOfType(event.ActivityCancelled))

	// 历史记录了结束状态与结束活动
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		h, err := c.Session().History().FindProcessInstanceByID(c.Ctx(), pi.ID)
		if err != nil {
			return err
		}
		require.NotNil(t, h.EndTime)
		assert.Equal(t, "completed", h.EndState)
		assert.Equal(t, "end1", h.EndActivityID)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteProcessInstanceExecutionEntity_CancelFiresPerChildEvents(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi, c1, c2 *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		if c1, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		c2, err = f.mgr.CreateChildExecution(c, pi)
		return err
	})
	require.NoError(t, err)

	f.disp.Reset()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		return f.mgr.DeleteProcessInstanceExecutionEntity(c, pi.ID, "", "取消", false, true, true)
	})
	require.NoError(t, err)

	// 活动中的子执行逐个取消事件，逆启动时间顺序
	cancelled := f.disp.EventsOfType(event.ActivityCancelled)
	require.Len(t, cancelled, 2)
	assert.Equal(t, c2.ID, cancelled[0].ExecutionID)
	assert.Equal(t, c1.ID, cancelled[1].ExecutionID)
	assert.Len(t, f.disp.EventsOfType(event.ProcessCancelled), 1)
}

func TestDeleteProcessInstance_NotFound(t *testing.T) {
	f := newFixture(true, nil)
	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		return f.mgr.DeleteProcessInstance(c, "missing", "清理", true)
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteProcessInstanceExecutionEntity_RepeatByIDIsNoOp(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		return err
	})
	require.NoError(t, err)

	f.disp.Reset()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		if err := f.mgr.DeleteProcessInstanceExecutionEntity(c, pi.ID, "end1", "正常结束", false, false, true); err != nil {
			return err
		}
		// 同一工作单元内按ID重复删除：无错误、无重复事件
		return f.mgr.DeleteProcessInstanceExecutionEntity(c, pi.ID, "end1", "正常结束", false, false, true)
	})
	require.NoError(t, err)

	assert.Len(t, f.disp.EventsOfType(event.ProcessCompleted), 1)
	var deletedExecutions int
	for _, ev := range f.disp.EventsOfType(event.EntityDeleted) {
		if ev.EntityKind == entity.KindExecution {
			deletedExecutions++
		}
	}
	assert.Equal(t, 1, deletedExecutions)
}

func TestDeleteProcessInstance_RepeatByIDIsNoOp(t *testing.T) {
	it := &recordingInterceptor{}
	f := newFixture(true, func(cfg *ManagerConfig) {
		cfg.EndProcessInstanceInterceptors = []EndProcessInstanceInterceptor{it}
	})
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		return err
	})
	require.NoError(t, err)

	f.disp.Reset()
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		if err := f.mgr.DeleteProcessInstance(c, pi.ID, "用户取消", true); err != nil {
			return err
		}
		// 级联删除后重复删除同样幂等，拦截器不重复触发
		return f.mgr.DeleteProcessInstance(c, pi.ID, "用户取消", true)
	})
	require.NoError(t, err)

	assert.Len(t, f.disp.EventsOfType(event.ProcessCancelled), 1)
	assert.Equal(t, []string{"before:" + pi.ID, "after:" + pi.ID}, it.calls)
}
