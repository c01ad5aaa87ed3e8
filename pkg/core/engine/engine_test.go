package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/process-engine/pkg/config"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/job"
	"github.com/LENAX/process-engine/pkg/core/runtime"
	"github.com/LENAX/process-engine/pkg/storage"
	"github.com/LENAX/process-engine/pkg/storage/memory"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewWithStore(nil, memory.NewStore())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, eng.Close())
	})
	return eng
}

func TestEngine_Lifecycle(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	pi, err := eng.StartProcessInstance(ctx, runtime.CreateProcessInstanceRequest{
		ProcessDefinitionKey: "order-process",
		BusinessKey:          "order-42",
		StartActivityID:      "start",
	})
	require.NoError(t, err)
	require.True(t, pi.IsProcessInstance())

	// 变量读写
	require.NoError(t, eng.SetVariable(ctx, pi.ID, "amount", 100))
	value, found, err := eng.GetVariable(ctx, pi.ID, "amount")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 100, value)

	_, found, err = eng.GetVariable(ctx, pi.ID, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	// 任务与异步作业
	task, err := eng.CreateUserTask(ctx, pi.ID, "审批订单", "approve", "张三")
	require.NoError(t, err)
	assert.Equal(t, "审批订单", task.Name)

	j, err := eng.CreateJob(ctx, pi.ID, job.CreateJobRequest{Kind: entity.JobKindAsync})
	require.NoError(t, err)
	assert.Equal(t, entity.JobKindAsync, j.JobKind)

	// 执行树加载
	root, err := eng.GetExecutionTree(ctx, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, pi.ID, root.ID)
	assert.True(t, root.ChildrenLoaded())

	// 级联删除整棵树及全部关联数据
	require.NoError(t, eng.DeleteProcessInstance(ctx, pi.ID, "测试清理", true))
	_, err = eng.GetExecutionTree(ctx, pi.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEngine_UnknownStorageType(t *testing.T) {
	cfg := &config.EngineConfig{}
	cfg.ProcessEngine.Storage.Database.Type = "oracle"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的存储类型")
}
