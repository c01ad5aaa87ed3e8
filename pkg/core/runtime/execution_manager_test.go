package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/core/history"
	"github.com/LENAX/process-engine/pkg/storage"
	"github.com/LENAX/process-engine/pkg/storage/memory"
)

// stepClock 每次调用前进一秒的测试时钟（保证启动时间彼此可区分）
func stepClock() func() time.Time {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

type fixture struct {
	store *memory.Store
	disp  *event.RecordingDispatcher
	exec  *command.Executor
	mgr   *ExecutionManager
}

func newFixture(counting bool, mutate func(*ManagerConfig)) *fixture {
	store := memory.NewStore()
	disp := event.NewRecordingDispatcher()
	cfg := ManagerConfig{
		PerformanceCountingEnabled: counting,
		Clock:                      stepClock(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &fixture{
		store: store,
		disp:  disp,
		exec:  command.NewExecutor(store, disp, history.NewManager(history.LevelFull, nil)),
		mgr:   NewExecutionManager(cfg),
	}
}

// mapResolver 按活动ID查表的行为解析器
type mapResolver map[string]any

func (r mapResolver) Resolve(activityID string) any { return r[activityID] }

func TestCreateProcessInstanceExecution(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			ProcessDefinitionID:  "order-process:1",
			ProcessDefinitionKey: "order-process",
			BusinessKey:          "order-42",
			TenantID:             "t1",
			StartActivityID:      "start",
		})
		return err
	})
	require.NoError(t, err)

	assert.True(t, pi.IsProcessInstance())
	assert.Equal(t, pi.ID, pi.ProcessInstanceID)
	assert.Equal(t, pi.ID, pi.RootProcessInstanceID)
	assert.True(t, pi.IsScope)
	assert.True(t, pi.CountEnabled())
	assert.Equal(t, "start", pi.ActivityID)
	assert.True(t, pi.ChildrenLoaded())
	assert.False(t, pi.StartTime.IsZero())

	// 历史记录了实例启动
	err = f.exec.Execute(ctx, func(c *command.Context) error {
		h, err := c.Session().History().FindProcessInstanceByID(c.Ctx(), pi.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "order-42", h.BusinessKey)
		assert.Nil(t, h.EndTime)
		return nil
	})
	require.NoError(t, err)
}

func TestCreateChildExecution_InheritsFromParent(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi, child *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			ProcessDefinitionID: "p:1",
			TenantID:            "t1",
		})
		if err != nil {
			return err
		}
		child, err = f.mgr.CreateChildExecution(c, pi)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "p:1", child.ProcessDefinitionID)
	assert.Equal(t, pi.ID, child.ProcessInstanceID)
	assert.Equal(t, pi.ID, child.RootProcessInstanceID)
	assert.Equal(t, "t1", child.TenantID)
	assert.True(t, child.CountEnabled())
	assert.False(t, child.IsScope)
	assert.Same(t, pi, child.Parent())
	assert.Same(t, pi, child.ProcessInstance())
	require.Len(t, pi.Children(), 1)

	// 子执行晚于父执行启动
	assert.True(t, child.StartTime.After(pi.StartTime))
}

func TestCreateSubprocessInstance_Wiring(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var caller, sub *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		caller, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			ProcessDefinitionKey: "parent-process",
			TenantID:             "t1",
			StartActivityID:      "call1",
		})
		if err != nil {
			return err
		}
		sub, err = f.mgr.CreateSubprocessInstance(c, caller, CreateSubprocessInstanceRequest{
			ProcessDefinitionKey: "child-process",
			StartActivityID:      "start",
		})
		return err
	})
	require.NoError(t, err)

	// 子流程实例是自己的流程实例，但根继承调用方
	assert.True(t, sub.IsProcessInstance())
	assert.Equal(t, sub.ID, sub.ProcessInstanceID)
	assert.Equal(t, caller.ID, sub.RootProcessInstanceID)
	// 租户从调用方继承
	assert.Equal(t, "t1", sub.TenantID)
	// super/sub互逆引用
	assert.Same(t, sub, caller.SubProcessInstance())
	assert.Same(t, caller, sub.SuperExecution())
	assert.Equal(t, caller.ID, sub.SuperExecutionID)
}

func TestFindByRootProcessInstanceID_RebuildsTree(t *testing.T) {
	f := newFixture(true, nil)
	ctx := context.Background()

	var pi, c1, c2, g1, sub *entity.Execution
	err := f.exec.Execute(ctx, func(c *command.Context) error {
		var err error
		if pi, err = f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{}); err != nil {
			return err
		}
		if c1, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if c2, err = f.mgr.CreateChildExecution(c, pi); err != nil {
			return err
		}
		if g1, err = f.mgr.CreateChildExecution(c, c1); err != nil {
			return err
		}
		sub, err = f.mgr.CreateSubprocessInstance(c, c2, CreateSubprocessInstanceRequest{})
		return err
	})
	require.NoError(t, err)

	err = f.exec.Execute(ctx, func(c *command.Context) error {
		root, err := f.mgr.FindByRootProcessInstanceID(c, pi.ID)
		if err != nil {
			return err
		}

		assert.Equal(t, pi.ID, root.ID)
		assert.True(t, root.ChildrenLoaded())
		require.Len(t, root.Children(), 2)
		// 子执行按启动时间升序
		assert.Equal(t, c1.ID, root.Children()[0].ID)
		assert.Equal(t, c2.ID, root.Children()[1].ID)

		// 孙子执行挂在c1下，流程实例指针指向根
		loadedC1 := root.Children()[0]
		require.Len(t, loadedC1.Children(), 1)
		assert.Equal(t, g1.ID, loadedC1.Children()[0].ID)
		assert.Same(t, root, loadedC1.Children()[0].ProcessInstance())

		// CallActivity跨树边也重建
		loadedC2 := root.Children()[1]
		require.NotNil(t, loadedC2.SubProcessInstance())
		assert.Equal(t, sub.ID, loadedC2.SubProcessInstance().ID)
		assert.Same(t, loadedC2, loadedC2.SubProcessInstance().SuperExecution())
		return nil
	})
	require.NoError(t, err)
}

func TestFindByRootProcessInstanceID_Unknown(t *testing.T) {
	f := newFixture(true, nil)
	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		_, err := f.mgr.FindByRootProcessInstanceID(c, "missing")
		return err
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEnsureChildrenLoaded_NoQueryWhenAlreadyLoaded(t *testing.T) {
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

	err = f.exec.Execute(ctx, func(c *command.Context) error {
		root, err := f.mgr.FindByRootProcessInstanceID(c, pi.ID)
		if err != nil {
			return err
		}
		f.store.ResetQueryCounts()
		if err := f.mgr.EnsureChildrenLoaded(c, root); err != nil {
			return err
		}
		// 整棵树加载后不再有延迟加载查询
		assert.Equal(t, int64(0), f.store.QueryCount("execution.FindChildrenByParentID"))
		return nil
	})
	require.NoError(t, err)
}

func TestFindFirstScope_ClimbsParentChain(t *testing.T) {
	f := newFixture(true, nil)
	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		pi, err := f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		if err != nil {
			return err
		}
		child, err := f.mgr.CreateChildExecution(c, pi)
		if err != nil {
			return err
		}
		grand, err := f.mgr.CreateChildExecution(c, child)
		if err != nil {
			return err
		}

		scope, err := f.mgr.FindFirstScope(c, grand)
		if err != nil {
			return err
		}
		assert.Same(t, pi, scope)
		return nil
	})
	require.NoError(t, err)
}

func TestFindFirstMultiInstanceRoot_FallsBackToSuperExecution(t *testing.T) {
	f := newFixture(true, nil)
	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		caller, err := f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{
			StartActivityID: "call1",
		})
		if err != nil {
			return err
		}
		caller.IsMultiInstanceRoot = true

		sub, err := f.mgr.CreateSubprocessInstance(c, caller, CreateSubprocessInstanceRequest{})
		if err != nil {
			return err
		}
		subChild, err := f.mgr.CreateChildExecution(c, sub)
		if err != nil {
			return err
		}

		// 子流程实例内向上走parent链走到头，退回super边继续
		root, err := f.mgr.FindFirstMultiInstanceRoot(c, subChild)
		if err != nil {
			return err
		}
		assert.Same(t, caller, root)
		return nil
	})
	require.NoError(t, err)
}

func TestAddIdentityLink_MaintainsCounts(t *testing.T) {
	f := newFixture(true, nil)
	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		pi, err := f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		if err != nil {
			return err
		}

		l, err := f.mgr.AddIdentityLink(c, pi, "张三", "", "participant")
		if err != nil {
			return err
		}
		assert.Equal(t, pi.ID, l.ProcessInstanceID)
		assert.Equal(t, int32(1), pi.IdentityLinkCount())

		// 任务级身份关联记在任务计数上
		task, err := f.mgr.Tasks().CreateTask(c, pi, "审批", "approve", "李四")
		if err != nil {
			return err
		}
		if _, err := f.mgr.Tasks().AddTaskIdentityLink(c, task, "", "finance", "candidate"); err != nil {
			return err
		}
		assert.Equal(t, int32(1), task.IdentityLinkCount)

		links, err := c.Session().IdentityLinks().FindByProcessInstanceID(c.Ctx(), pi.ID)
		if err != nil {
			return err
		}
		assert.Len(t, links, 2)
		return nil
	})
	require.NoError(t, err)
}

func TestSetSuspensionState(t *testing.T) {
	f := newFixture(true, nil)
	err := f.exec.Execute(context.Background(), func(c *command.Context) error {
		pi, err := f.mgr.CreateProcessInstanceExecution(c, CreateProcessInstanceRequest{})
		if err != nil {
			return err
		}

		// 相同状态视为无效变更
		err = f.mgr.SetSuspensionState(c, pi, entity.SuspensionStateActive)
		assert.ErrorIs(t, err, ErrSameSuspensionState)

		if err := f.mgr.SetSuspensionState(c, pi, entity.SuspensionStateSuspended); err != nil {
			return err
		}
		assert.Equal(t, entity.SuspensionStateSuspended, pi.SuspensionState)
		return nil
	})
	require.NoError(t, err)
}
