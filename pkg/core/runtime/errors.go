package runtime

import (
	"errors"
	"fmt"

	"github.com/LENAX/process-engine/pkg/storage"
)

// ErrSameSuspensionState 目标挂起状态与当前状态相同（无效状态变更，中止工作单元）
var ErrSameSuspensionState = errors.New("挂起状态与当前状态相同")

// ErrEngineFatal 引擎一致性错误（不可重试，整个工作单元回滚）
// 如级联删除过程中完成父CallActivity失败
var ErrEngineFatal = errors.New("引擎一致性错误")

// NotFoundError 具名的实体不存在错误（对外导出）
// 携带请求的ID与实体概念类型，errors.Is可匹配storage.ErrNotFound
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %s", e.Kind, e.ID)
}

// Unwrap 保持与storage.ErrNotFound的errors.Is兼容
func (e *NotFoundError) Unwrap() error {
	return storage.ErrNotFound
}
