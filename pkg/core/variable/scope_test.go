package variable

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/storage"
	"github.com/LENAX/process-engine/pkg/storage/memory"
)

// buildChain 在会话内插入一条 流程实例 → 子执行 的作用域链
func buildChain(t *testing.T, c *command.Context) (pi, child *entity.Execution) {
	t.Helper()

	pi = entity.NewExecution("")
	pi.ProcessInstanceID = pi.ID
	pi.RootProcessInstanceID = pi.ID
	pi.IsScope = true
	pi.Counts.IsCountEnabled = true
	require.NoError(t, c.Session().Executions().Insert(c.Ctx(), pi))

	child = entity.NewExecution("")
	child.ProcessInstanceID = pi.ID
	child.RootProcessInstanceID = pi.ID
	child.Counts.IsCountEnabled = true
	child.SetParent(pi)
	require.NoError(t, c.Session().Executions().Insert(c.Ctx(), child))
	return pi, child
}

func run(t *testing.T, fn func(c *command.Context) error) {
	t.Helper()
	store := memory.NewStore()
	executor := command.NewExecutor(store, nil, nil)
	require.NoError(t, executor.Execute(context.Background(), fn))
}

func TestExecutionScope_ParentDefinitionWins(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		parentScope := NewExecutionScope(pi)
		_, err := parentScope.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)

		// 子作用域写入：已有定义的祖先优先，不在子作用域重复创建
		childScope := NewExecutionScope(child)
		require.NoError(t, childScope.SetVariable(c, "x", 2, false))

		parentVars, err := c.Session().Variables().FindByExecutionID(c.Ctx(), pi.ID)
		require.NoError(t, err)
		require.Len(t, parentVars, 1)
		assert.Equal(t, int64(2), *parentVars[0].LongValue)

		childVars, err := c.Session().Variables().FindByExecutionID(c.Ctx(), child.ID)
		require.NoError(t, err)
		assert.Empty(t, childVars)
		return nil
	})
}

func TestExecutionScope_ParentDefinitionWins_FetchAll(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		parentScope := NewExecutionScope(pi)
		_, err := parentScope.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)

		// 全量模式同样由已有定义的祖先胜出，不在子作用域留下副本
		childScope := NewExecutionScope(child)
		require.NoError(t, childScope.SetVariable(c, "x", 2, true))

		parentVars, err := c.Session().Variables().FindByExecutionID(c.Ctx(), pi.ID)
		require.NoError(t, err)
		require.Len(t, parentVars, 1)
		assert.Equal(t, int64(2), *parentVars[0].LongValue)

		childVars, err := c.Session().Variables().FindByExecutionID(c.Ctx(), child.ID)
		require.NoError(t, err)
		assert.Empty(t, childVars)
		return nil
	})
}

func TestExecutionScope_LazyModeCreatesAtOrigin(t *testing.T) {
	run(t, func(c *command.Context) error {
		_, child := buildChain(t, c)

		// 懒加载模式：整条链都没有该变量时在发起作用域创建
		childScope := NewExecutionScope(child)
		require.NoError(t, childScope.SetVariable(c, "y", "值", false))

		v, err := c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), child.ID, "y")
		require.NoError(t, err)
		assert.Equal(t, child.ID, v.ExecutionID)
		assert.Equal(t, "execution", v.ScopeType)
		return nil
	})
}

func TestExecutionScope_FetchAllCreatesAtTopmostScope(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		// 全量模式：整条链都没有该变量时在最顶层作用域创建
		childScope := NewExecutionScope(child)
		require.NoError(t, childScope.SetVariable(c, "z", true, true))

		v, err := c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), pi.ID, "z")
		require.NoError(t, err)
		assert.Equal(t, pi.ID, v.ExecutionID)

		_, err = c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), child.ID, "z")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
}

func TestExecutionScope_CreateVariableLocal_Duplicate(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, _ := buildChain(t, c)

		scope := NewExecutionScope(pi)
		_, err := scope.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)

		// 同名本地变量绝不静默覆盖
		_, err = scope.CreateVariableLocal(c, "x", 2)
		assert.ErrorIs(t, err, ErrVariableAlreadyExists)
		return nil
	})
}

func TestExecutionScope_GetVariable_ResolvesAlongChain(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		parentScope := NewExecutionScope(pi)
		_, err := parentScope.CreateVariableLocal(c, "amount", 100)
		require.NoError(t, err)

		childScope := NewExecutionScope(child)
		value, found, err := childScope.GetVariable(c, "amount")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 100, value)

		// 本地视角看不到祖先的变量
		has, err := childScope.HasVariableLocal(c, "amount")
		require.NoError(t, err)
		assert.False(t, has)

		_, found, err = childScope.GetVariable(c, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
}

func TestExecutionScope_SameUnitLastWriteWins(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		parentScope := NewExecutionScope(pi)
		_, err := parentScope.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)

		// 第二次写命中事务内最近使用缓存，直接更新同一实体
		childScope := NewExecutionScope(child)
		require.NoError(t, childScope.SetVariable(c, "x", 2, false))
		require.NoError(t, childScope.SetVariable(c, "x", 3, false))

		v, err := c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), pi.ID, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(3), *v.LongValue)
		return nil
	})
}

func TestExecutionScope_RemoveVariableLocal(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, _ := buildChain(t, c)

		scope := NewExecutionScope(pi)
		_, err := scope.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)
		assert.Equal(t, int32(1), pi.VariableCount())

		require.NoError(t, scope.RemoveVariableLocal(c, "x"))
		assert.Equal(t, int32(0), pi.VariableCount())

		_, err = c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), pi.ID, "x")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		// 不存在的变量删除为空操作
		assert.NoError(t, scope.RemoveVariableLocal(c, "missing"))
		return nil
	})
}

func TestExecutionScope_MaintainsVariableCount(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		childScope := NewExecutionScope(child)
		require.NoError(t, childScope.SetVariable(c, "a", 1, false))
		require.NoError(t, childScope.SetVariable(c, "b", 2, false))

		// 创建记在发起作用域的计数上
		assert.Equal(t, int32(2), child.VariableCount())
		assert.Equal(t, int32(0), pi.VariableCount())
		return nil
	})
}

func TestScope_EventsCarryInjectedClockTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewStore()
	rec := event.NewRecordingDispatcher()
	executor := command.NewExecutor(store, rec, nil)
	require.NoError(t, executor.Execute(context.Background(), func(c *command.Context) error {
		pi, child := buildChain(t, c)

		scope := NewExecutionScopeWithClock(pi, clock)
		_, err := scope.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)
		require.NoError(t, NewExecutionScopeWithClock(child, clock).SetVariable(c, "x", 2, false))
		require.NoError(t, scope.RemoveVariableLocal(c, "x"))

		task := entity.NewTask("")
		task.ExecutionID = child.ID
		task.ProcessInstanceID = pi.ID
		require.NoError(t, c.Session().Tasks().Insert(c.Ctx(), task))
		ts := NewTaskScopeWithClock(task, clock)
		_, err = ts.CreateVariableLocal(c, "y", 1)
		require.NoError(t, err)
		require.NoError(t, ts.SetVariable(c, "y", 2, false))
		return nil
	}))

	// 作用域事件统一打上注入时钟的时间，而非分发器兜底的当前时间
	for _, typ := range []event.Type{
		event.VariableCreated, event.VariableUpdated, event.VariableDeleted,
	} {
		events := rec.EventsOfType(typ)
		require.NotEmpty(t, events, "缺少事件: %s", typ)
		for _, ev := range events {
			assert.True(t, ev.Timestamp.Equal(now), "事件 %s 时间戳不一致", typ)
		}
	}
}

func TestTaskScope_LocalPrecedenceOverExecutionChain(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		task := entity.NewTask("")
		task.ExecutionID = child.ID
		task.ProcessInstanceID = pi.ID
		task.IsCountEnabled = true
		require.NoError(t, c.Session().Tasks().Insert(c.Ctx(), task))

		// 执行链上的同名变量
		_, err := NewExecutionScope(child).CreateVariableLocal(c, "x", "执行值")
		require.NoError(t, err)

		ts := NewTaskScope(task)
		_, err = ts.CreateVariableLocal(c, "x", "任务值")
		require.NoError(t, err)
		assert.Equal(t, int32(1), task.VariableCount)

		// 任务局部优先
		value, found, err := ts.GetVariable(c, "x")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "任务值", value)
		return nil
	})
}

func TestTaskScope_FallsBackToExecutionChain(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)

		task := entity.NewTask("")
		task.ExecutionID = child.ID
		task.ProcessInstanceID = pi.ID
		require.NoError(t, c.Session().Tasks().Insert(c.Ctx(), task))

		_, err := NewExecutionScope(pi).CreateVariableLocal(c, "amount", 100)
		require.NoError(t, err)

		// 任务没有局部定义时沿 任务→执行→父执行 链解析
		ts := NewTaskScope(task)
		value, found, err := ts.GetVariable(c, "amount")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 100, value)

		// 写入委托给执行链：更新到持有定义的流程实例
		require.NoError(t, ts.SetVariable(c, "amount", 200, false))
		v, err := c.Session().Variables().FindByExecutionIDAndName(c.Ctx(), pi.ID, "amount")
		require.NoError(t, err)
		assert.Equal(t, int64(200), *v.LongValue)

		taskVars, err := c.Session().Variables().FindByTaskID(c.Ctx(), task.ID)
		require.NoError(t, err)
		assert.Empty(t, taskVars)
		return nil
	})
}

func TestTaskScope_CreateVariableLocal_Duplicate(t *testing.T) {
	run(t, func(c *command.Context) error {
		pi, child := buildChain(t, c)
		_ = pi

		task := entity.NewTask("")
		task.ExecutionID = child.ID
		require.NoError(t, c.Session().Tasks().Insert(c.Ctx(), task))

		ts := NewTaskScope(task)
		_, err := ts.CreateVariableLocal(c, "x", 1)
		require.NoError(t, err)
		_, err = ts.CreateVariableLocal(c, "x", 2)
		assert.ErrorIs(t, err, ErrVariableAlreadyExists)
		return nil
	})
}
