package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/storage"
	"github.com/LENAX/process-engine/pkg/storage/memory"
)

func TestExecutor_Execute_CommitsOnSuccess(t *testing.T) {
	store := memory.NewStore()
	executor := NewExecutor(store, nil, nil)

	pi := entity.NewExecution("pi-1")
	pi.ProcessInstanceID = pi.ID
	pi.RootProcessInstanceID = pi.ID

	err := executor.Execute(context.Background(), func(c *Context) error {
		return c.Session().Executions().Insert(c.Ctx(), pi)
	})
	require.NoError(t, err)

	// 提交后的数据对新工作单元可见
	err = executor.Execute(context.Background(), func(c *Context) error {
		got, err := c.Session().Executions().FindByID(c.Ctx(), "pi-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "pi-1", got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestExecutor_Execute_RollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	executor := NewExecutor(store, nil, nil)
	boom := errors.New("命令失败")

	pi := entity.NewExecution("pi-1")
	pi.ProcessInstanceID = pi.ID

	err := executor.Execute(context.Background(), func(c *Context) error {
		if err := c.Session().Executions().Insert(c.Ctx(), pi); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// 整体回滚，没有部分成功
	err = executor.Execute(context.Background(), func(c *Context) error {
		_, err := c.Session().Executions().FindByID(c.Ctx(), "pi-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestContext_EnsureActive_AfterClose(t *testing.T) {
	store := memory.NewStore()
	executor := NewExecutor(store, nil, nil)

	var escaped *Context
	err := executor.Execute(context.Background(), func(c *Context) error {
		escaped = c
		require.NoError(t, c.EnsureActive())
		return nil
	})
	require.NoError(t, err)

	// 工作单元结束后延迟加载快速失败
	assert.ErrorIs(t, escaped.EnsureActive(), ErrNoActiveUnitOfWork)
	assert.Nil(t, escaped.Session())
}

func TestContext_FlushCounts_PersistsDeltas(t *testing.T) {
	store := memory.NewStore()
	executor := NewExecutor(store, nil, nil)

	pi := entity.NewExecution("pi-1")
	pi.ProcessInstanceID = pi.ID
	pi.Counts.IsCountEnabled = true

	err := executor.Execute(context.Background(), func(c *Context) error {
		if err := c.Session().Executions().Insert(c.Ctx(), pi); err != nil {
			return err
		}
		pi.Counts.Tasks.Add(2)
		pi.Counts.Variables.Add(1)
		c.RegisterCountDirty(pi)
		return nil
	})
	require.NoError(t, err)

	err = executor.Execute(context.Background(), func(c *Context) error {
		got, err := c.Session().Executions().FindByID(c.Ctx(), "pi-1")
		if err != nil {
			return err
		}
		assert.Equal(t, int32(2), got.TaskCount())
		assert.Equal(t, int32(1), got.VariableCount())
		// flush走了一次Update
		assert.Equal(t, 2, got.Revision)
		return nil
	})
	require.NoError(t, err)
}

func TestContext_FlushCounts_SkipsDeletedExecutions(t *testing.T) {
	store := memory.NewStore()
	executor := NewExecutor(store, nil, nil)

	pi := entity.NewExecution("pi-1")
	pi.ProcessInstanceID = pi.ID
	pi.Counts.IsCountEnabled = true

	err := executor.Execute(context.Background(), func(c *Context) error {
		if err := c.Session().Executions().Insert(c.Ctx(), pi); err != nil {
			return err
		}
		pi.Counts.Tasks.Add(1)
		c.RegisterCountDirty(pi)
		// 同一工作单元内又被删除：flush不得对已删除的行做Update
		if err := c.Session().Executions().Delete(c.Ctx(), pi.ID); err != nil {
			return err
		}
		pi.MarkDeleted("清理")
		return nil
	})
	require.NoError(t, err)
}

func TestNewExecutor_NilDispatcherFallsBackToNop(t *testing.T) {
	store := memory.NewStore()
	executor := NewExecutor(store, nil, nil)

	err := executor.Execute(context.Background(), func(c *Context) error {
		require.NotNil(t, c.Dispatcher())
		assert.False(t, c.Dispatcher().IsEnabled())
		assert.Nil(t, c.History())
		return nil
	})
	require.NoError(t, err)
}

func TestExecutor_Execute_DispatcherAvailable(t *testing.T) {
	store := memory.NewStore()
	rec := event.NewRecordingDispatcher()
	executor := NewExecutor(store, rec, nil)

	err := executor.Execute(context.Background(), func(c *Context) error {
		c.Dispatcher().Dispatch(&event.EngineEvent{Type: event.EntityCreated, EntityID: "x"})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, event.EntityCreated, rec.Events()[0].Type)
}
