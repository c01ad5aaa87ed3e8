package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityCache_PutAndFind(t *testing.T) {
	c := NewEntityCache()

	c.Put("execution", "e-1", "实体1")
	c.Put("execution", "e-2", "实体2")
	c.Put("task", "t-1", "任务1")

	got, ok := c.FindByID("execution", "e-1")
	require.True(t, ok)
	assert.Equal(t, "实体1", got)

	_, ok = c.FindByID("execution", "t-1")
	assert.False(t, ok)

	// 空ID不入缓存
	c.Put("execution", "", "孤儿")
	_, ok = c.FindByID("execution", "")
	assert.False(t, ok)
}

func TestEntityCache_FindInCache(t *testing.T) {
	c := NewEntityCache()
	assert.Nil(t, c.FindInCache("execution"))

	c.Put("execution", "e-1", 1)
	c.Put("execution", "e-2", 2)
	assert.Len(t, c.FindInCache("execution"), 2)
	assert.Nil(t, c.FindInCache("task"))
}

func TestEntityCache_RemoveAndClear(t *testing.T) {
	c := NewEntityCache()
	c.Put("execution", "e-1", 1)
	c.Put("task", "t-1", 2)

	c.Remove("execution", "e-1")
	_, ok := c.FindByID("execution", "e-1")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.FindByID("task", "t-1")
	assert.False(t, ok)
}
