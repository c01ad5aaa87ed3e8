package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelatedCount_BasePlusDelta(t *testing.T) {
	var c relatedCount
	c.SetBase(5)
	assert.Equal(t, int32(5), c.Value())

	c.Add(3)
	c.Add(-1)
	assert.Equal(t, int32(7), c.Value())

	// reconcile将增量折入基值
	c.reconcile()
	assert.Equal(t, int32(7), c.Value())
	c.reconcile()
	assert.Equal(t, int32(7), c.Value())
}

func TestRelatedCount_SetBaseResetsDelta(t *testing.T) {
	var c relatedCount
	c.Add(10)
	c.SetBase(2)
	// 加载基值时未折算增量作废
	assert.Equal(t, int32(2), c.Value())
}

func TestRelatedCount_ConcurrentAdd(t *testing.T) {
	var c relatedCount
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), c.Value())
}

func TestExecutionCounts_JobKindsIndependent(t *testing.T) {
	e := NewExecution("e")
	e.Counts.IsCountEnabled = true

	e.Counts.TimerJobs.Add(2)
	e.Counts.DeadLetterJobs.Add(1)

	// 各类异步任务计数相互独立
	assert.Equal(t, int32(0), e.JobCount())
	assert.Equal(t, int32(2), e.TimerJobCount())
	assert.Equal(t, int32(0), e.SuspendedJobCount())
	assert.Equal(t, int32(1), e.DeadLetterJobCount())
	assert.Equal(t, int32(0), e.ExternalWorkerJobCount())
}

func TestExecutionCounts_Reconcile(t *testing.T) {
	e := NewExecution("e")
	e.Counts.Tasks.SetBase(2)
	e.Counts.Tasks.Add(1)
	e.Counts.Variables.Add(4)
	e.Counts.EventSubscriptions.Add(1)
	e.Counts.EventSubscriptions.Add(-1)

	e.Counts.Reconcile()

	assert.Equal(t, int32(3), e.TaskCount())
	assert.Equal(t, int32(4), e.VariableCount())
	assert.Equal(t, int32(0), e.EventSubscriptionCount())
}

func TestExecutionCounts_SnapshotViaClone(t *testing.T) {
	e := NewExecution("e")
	e.Counts.IsCountEnabled = true
	e.Counts.Tasks.SetBase(1)
	e.Counts.Tasks.Add(2)

	copied := e.Clone()

	assert.True(t, copied.CountEnabled())
	assert.Equal(t, int32(3), copied.TaskCount())
}
