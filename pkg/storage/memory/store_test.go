package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/storage"
)

func newPI(id string) *entity.Execution {
	pi := entity.NewExecution(id)
	pi.ProcessInstanceID = pi.ID
	pi.RootProcessInstanceID = pi.ID
	return pi
}

func TestStore_CommitVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s1, err := store.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s1.Executions().Insert(ctx, newPI("pi-1")))

	// 提交前其他会话不可见
	s2, err := store.Open(ctx)
	require.NoError(t, err)
	_, err = s2.Executions().FindByID(ctx, "pi-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s2.Rollback())

	require.NoError(t, s1.Commit())

	s3, err := store.Open(ctx)
	require.NoError(t, err)
	got, err := s3.Executions().FindByID(ctx, "pi-1")
	require.NoError(t, err)
	assert.Equal(t, "pi-1", got.ID)
	require.NoError(t, s3.Rollback())
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s, err := store.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Executions().Insert(ctx, newPI("pi-1")))
	require.NoError(t, s.Rollback())

	s2, err := store.Open(ctx)
	require.NoError(t, err)
	_, err = s2.Executions().FindByID(ctx, "pi-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s2.Rollback())
}

func TestStore_OptimisticLockAcrossSessions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	setup, err := store.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, setup.Executions().Insert(ctx, newPI("pi-1")))
	require.NoError(t, setup.Commit())

	// 两个会话基于同一快照版本并发修改
	s1, err := store.Open(ctx)
	require.NoError(t, err)
	s2, err := store.Open(ctx)
	require.NoError(t, err)

	e1, err := s1.Executions().FindByID(ctx, "pi-1")
	require.NoError(t, err)
	e1.BusinessKey = "winner"
	require.NoError(t, s1.Executions().Update(ctx, e1))

	e2, err := s2.Executions().FindByID(ctx, "pi-1")
	require.NoError(t, err)
	e2.BusinessKey = "loser"
	require.NoError(t, s2.Executions().Update(ctx, e2))

	// 先提交者胜出，后提交者乐观锁冲突
	require.NoError(t, s1.Commit())
	err = s2.Commit()
	assert.ErrorIs(t, err, storage.ErrOptimisticLock)

	s3, err := store.Open(ctx)
	require.NoError(t, err)
	got, err := s3.Executions().FindByID(ctx, "pi-1")
	require.NoError(t, err)
	assert.Equal(t, "winner", got.BusinessKey)
	assert.Equal(t, 2, got.Revision)
	require.NoError(t, s3.Rollback())
}

func TestStore_ForeignKey_InsertChildWithoutParent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s, err := store.Open(ctx)
	require.NoError(t, err)
	defer s.Rollback()

	orphan := entity.NewExecution("orphan")
	orphan.ParentID = "missing"
	err = s.Executions().Insert(ctx, orphan)
	assert.ErrorIs(t, err, storage.ErrForeignKey)
}

func TestStore_ForeignKey_DeleteExecutionWithDependents(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s, err := store.Open(ctx)
	require.NoError(t, err)
	defer s.Rollback()

	pi := newPI("pi-1")
	require.NoError(t, s.Executions().Insert(ctx, pi))

	task := entity.NewTask("task-1")
	task.ExecutionID = pi.ID
	require.NoError(t, s.Tasks().Insert(ctx, task))

	// 仍有任务挂载时删除执行被拒绝
	err = s.Executions().Delete(ctx, pi.ID)
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	require.NoError(t, s.Tasks().Delete(ctx, task.ID))
	assert.NoError(t, s.Executions().Delete(ctx, pi.ID))
}

func TestStore_ForeignKey_DeleteParentBeforeChild(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s, err := store.Open(ctx)
	require.NoError(t, err)
	defer s.Rollback()

	pi := newPI("pi-1")
	require.NoError(t, s.Executions().Insert(ctx, pi))
	child := entity.NewExecution("child-1")
	child.ParentID = pi.ID
	child.ProcessInstanceID = pi.ID
	require.NoError(t, s.Executions().Insert(ctx, child))

	// 父先删被拒绝，子先删后父可删
	err = s.Executions().Delete(ctx, pi.ID)
	assert.ErrorIs(t, err, storage.ErrForeignKey)
	require.NoError(t, s.Executions().Delete(ctx, child.ID))
	assert.NoError(t, s.Executions().Delete(ctx, pi.ID))
}

func TestStore_QueryCountSpy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s, err := store.Open(ctx)
	require.NoError(t, err)
	defer s.Rollback()

	_, _ = s.Jobs().FindByExecutionIDAndKind(ctx, "e-1", entity.JobKindTimer)
	_, _ = s.Jobs().FindByExecutionIDAndKind(ctx, "e-1", entity.JobKindAsync)
	_, _ = s.Tasks().FindByExecutionID(ctx, "e-1")

	assert.Equal(t, int64(2), store.QueryCount("job.FindByExecutionIDAndKind"))
	assert.Equal(t, int64(1), store.QueryCount("task.FindByExecutionID"))
	assert.Equal(t, int64(0), store.QueryCount("variable.FindByExecutionID"))

	store.ResetQueryCounts()
	assert.Equal(t, int64(0), store.QueryCount("job.FindByExecutionIDAndKind"))
}

func TestStore_FindByExecutionID_ExcludesTaskLocalVariables(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	s, err := store.Open(ctx)
	require.NoError(t, err)
	defer s.Rollback()

	pi := newPI("pi-1")
	require.NoError(t, s.Executions().Insert(ctx, pi))
	task := entity.NewTask("task-1")
	task.ExecutionID = pi.ID
	require.NoError(t, s.Tasks().Insert(ctx, task))

	execVar := entity.NewVariableInstance("a", 1)
	execVar.ExecutionID = pi.ID
	require.NoError(t, s.Variables().Insert(ctx, execVar))

	taskVar := entity.NewVariableInstance("b", 2)
	taskVar.ExecutionID = pi.ID
	taskVar.TaskID = task.ID
	require.NoError(t, s.Variables().Insert(ctx, taskVar))

	vars, err := s.Variables().FindByExecutionID(ctx, pi.ID)
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "a", vars[0].Name)

	taskVars, err := s.Variables().FindByTaskID(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, taskVars, 1)
	assert.Equal(t, "b", taskVars[0].Name)
}
