package cache

import (
	"sync"
)

// EntityCache 工作单元内实体缓存（对外导出）
// 按实体类型分区缓存本事务内加载/写入的实体，
// 避免重复的数据库加载，并让同一事务内的查询看到尚未flush的写入。
// 生命周期与一个工作单元一致，不跨事务共享。
type EntityCache struct {
	mu   sync.RWMutex
	data map[string]map[string]any // kind -> id -> entity
}

// NewEntityCache 创建实体缓存实例
func NewEntityCache() *EntityCache {
	return &EntityCache{
		data: make(map[string]map[string]any),
	}
}

// Put 放入实体
func (c *EntityCache) Put(kind, id string, e any) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	byID, ok := c.data[kind]
	if !ok {
		byID = make(map[string]any)
		c.data[kind] = byID
	}
	byID[id] = e
}

// FindByID 根据类型和ID查找缓存实体
func (c *EntityCache) FindByID(kind, id string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byID, ok := c.data[kind]
	if !ok {
		return nil, false
	}
	e, ok := byID[id]
	return e, ok
}

// FindInCache 返回指定类型的全部缓存实体（事务内查询，不走存储）
func (c *EntityCache) FindInCache(kind string) []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byID, ok := c.data[kind]
	if !ok {
		return nil
	}
	out := make([]any, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	return out
}

// Remove 移除缓存实体
func (c *EntityCache) Remove(kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byID, ok := c.data[kind]; ok {
		delete(byID, id)
	}
}

// Clear 清空所有缓存
func (c *EntityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]map[string]any)
}
