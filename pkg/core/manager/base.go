// Package manager 提供所有实体管理器共享的通用CRUD+事件分发脚手架。
// 读取先查工作单元内的实体缓存再落存储；写入同步维护缓存并分发生命周期事件。
package manager

import (
	"errors"
	"fmt"
	"time"

	"github.com/LENAX/process-engine/pkg/core/command"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/event"
	"github.com/LENAX/process-engine/pkg/storage"
)

// FindByID 缓存优先的实体查询
// 命中缓存直接返回（看得到本事务内尚未flush的写入），否则查存储并放入缓存。
func FindByID[T entity.Entity](c *command.Context, dm storage.CRUD[T], kind, id string) (T, error) {
	var zero T
	if err := c.EnsureActive(); err != nil {
		return zero, err
	}
	if id == "" {
		return zero, storage.ErrNotFound
	}

	if cached, ok := c.Cache().FindByID(kind, id); ok {
		return cached.(T), nil
	}

	e, err := dm.FindByID(c.Ctx(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return zero, err
		}
		return zero, fmt.Errorf("查询%s失败: %s: %w", kind, id, err)
	}
	c.Cache().Put(kind, id, e)
	return e, nil
}

// Insert 插入实体：写存储、放缓存，可选分发ENTITY_CREATED事件
func Insert[T entity.Entity](c *command.Context, dm storage.CRUD[T], e T, fireEvent bool) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if err := dm.Insert(c.Ctx(), e); err != nil {
		return fmt.Errorf("插入%s失败: %s: %w", e.Kind(), e.GetID(), err)
	}
	c.Cache().Put(e.Kind(), e.GetID(), e)

	if fireEvent && c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:       event.EntityCreated,
			EntityKind: e.Kind(),
			EntityID:   e.GetID(),
			Timestamp:  time.Now(),
		})
	}
	return nil
}

// Update 更新实体（存储层校验乐观锁版本号）
func Update[T entity.Entity](c *command.Context, dm storage.CRUD[T], e T) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if err := dm.Update(c.Ctx(), e); err != nil {
		return fmt.Errorf("更新%s失败: %s: %w", e.Kind(), e.GetID(), err)
	}
	c.Cache().Put(e.Kind(), e.GetID(), e)
	return nil
}

// Delete 删除实体：删存储行、清缓存，可选分发ENTITY_DELETED事件
func Delete[T entity.Entity](c *command.Context, dm storage.CRUD[T], e T, fireEvent bool) error {
	if err := c.EnsureActive(); err != nil {
		return err
	}
	if err := dm.Delete(c.Ctx(), e.GetID()); err != nil {
		return fmt.Errorf("删除%s失败: %s: %w", e.Kind(), e.GetID(), err)
	}
	c.Cache().Remove(e.Kind(), e.GetID())

	if fireEvent && c.Dispatcher().IsEnabled() {
		c.Dispatcher().Dispatch(&event.EngineEvent{
			Type:       event.EntityDeleted,
			EntityKind: e.Kind(),
			EntityID:   e.GetID(),
			Timestamp:  time.Now(),
		})
	}
	return nil
}
