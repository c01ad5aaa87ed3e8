package storage

import (
	"context"
	"errors"
	"time"

	"github.com/LENAX/process-engine/pkg/core/entity"
)

// 存储层统一错误
var (
	// ErrNotFound 行不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrOptimisticLock 乐观锁冲突（版本号不匹配），外层任务/命令重试逻辑负责重试
	ErrOptimisticLock = errors.New("乐观锁冲突")
	// ErrForeignKey 外键约束违反（如父执行不存在、子执行未删除）
	ErrForeignKey = errors.New("外键约束违反")
)

// CRUD 通用CRUD接口（对外导出）
// 各实体DataManager嵌入此接口，通用EntityManager基础设施建立在其上
type CRUD[T any] interface {
	// FindByID 根据ID查询实体
	FindByID(ctx context.Context, id string) (T, error)
	// Insert 插入实体
	Insert(ctx context.Context, e T) error
	// Update 更新实体（校验乐观锁版本号）
	Update(ctx context.Context, e T) error
	// Delete 根据ID删除实体
	Delete(ctx context.Context, id string) error
}

// ExecutionDataManager 执行实体DataManager接口（对外导出）
type ExecutionDataManager interface {
	CRUD[*entity.Execution]

	// FindByRootProcessInstanceID 一次查询加载共享同一根流程实例ID的全部执行
	FindByRootProcessInstanceID(ctx context.Context, rootID string) ([]*entity.Execution, error)
	// FindChildrenByParentID 查询父执行的直接子执行
	FindChildrenByParentID(ctx context.Context, parentID string) ([]*entity.Execution, error)
	// FindByProcessInstanceID 查询流程实例下的所有执行（含根）
	FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.Execution, error)
	// FindSubProcessInstanceBySuperExecutionID 根据调用方执行ID查询子流程实例
	FindSubProcessInstanceBySuperExecutionID(ctx context.Context, superExecutionID string) (*entity.Execution, error)
}

// TaskDataManager 任务实体DataManager接口（对外导出）
type TaskDataManager interface {
	CRUD[*entity.Task]

	// FindByExecutionID 查询执行下的任务
	FindByExecutionID(ctx context.Context, executionID string) ([]*entity.Task, error)
	// FindByProcessInstanceID 查询流程实例下的任务
	FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.Task, error)
}

// VariableDataManager 变量实体DataManager接口（对外导出）
type VariableDataManager interface {
	CRUD[*entity.VariableInstance]

	// FindByExecutionID 查询执行本地变量（不含任务局部变量）
	FindByExecutionID(ctx context.Context, executionID string) ([]*entity.VariableInstance, error)
	// FindByExecutionIDAndName 查询执行本地指定名称变量
	FindByExecutionIDAndName(ctx context.Context, executionID, name string) (*entity.VariableInstance, error)
	// FindByTaskID 查询任务局部变量
	FindByTaskID(ctx context.Context, taskID string) ([]*entity.VariableInstance, error)
	// FindByTaskIDAndName 查询任务局部指定名称变量
	FindByTaskIDAndName(ctx context.Context, taskID, name string) (*entity.VariableInstance, error)
	// DeleteByExecutionID 批量删除执行的全部变量
	DeleteByExecutionID(ctx context.Context, executionID string) error
	// DeleteByTaskID 批量删除任务的全部局部变量
	DeleteByTaskID(ctx context.Context, taskID string) error
}

// ByteArrayDataManager 字节数组DataManager接口（对外导出）
type ByteArrayDataManager interface {
	// FindByID 根据ID查询字节数组
	FindByID(ctx context.Context, id string) (*entity.ByteArray, error)
	// Insert 插入字节数组
	Insert(ctx context.Context, b *entity.ByteArray) error
	// Delete 根据ID删除字节数组
	Delete(ctx context.Context, id string) error
}

// JobDataManager 异步任务DataManager接口（对外导出）
type JobDataManager interface {
	CRUD[*entity.Job]

	// FindByExecutionIDAndKind 查询执行下指定种类的任务
	FindByExecutionIDAndKind(ctx context.Context, executionID string, kind entity.JobKind) ([]*entity.Job, error)
	// DeleteByExecutionIDAndKind 批量删除执行下指定种类的任务
	DeleteByExecutionIDAndKind(ctx context.Context, executionID string, kind entity.JobKind) error
}

// EventSubscriptionDataManager 事件订阅DataManager接口（对外导出）
type EventSubscriptionDataManager interface {
	CRUD[*entity.EventSubscription]

	// FindByExecutionID 查询执行下的事件订阅
	FindByExecutionID(ctx context.Context, executionID string) ([]*entity.EventSubscription, error)
	// DeleteByExecutionID 批量删除执行下的事件订阅
	DeleteByExecutionID(ctx context.Context, executionID string) error
}

// IdentityLinkDataManager 身份关联DataManager接口（对外导出）
type IdentityLinkDataManager interface {
	// FindByTaskID 查询任务的身份关联
	FindByTaskID(ctx context.Context, taskID string) ([]*entity.IdentityLink, error)
	// FindByProcessInstanceID 查询流程实例的身份关联
	FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.IdentityLink, error)
	// Insert 插入身份关联
	Insert(ctx context.Context, l *entity.IdentityLink) error
	// Delete 根据ID删除身份关联
	Delete(ctx context.Context, id string) error
	// DeleteByTaskID 批量删除任务的身份关联
	DeleteByTaskID(ctx context.Context, taskID string) error
	// DeleteByProcessInstanceID 批量删除流程实例的身份关联
	DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error
}

// EntityLinkDataManager 实体关联DataManager接口（对外导出）
type EntityLinkDataManager interface {
	// FindByRootProcessInstanceID 查询根流程实例范围内的实体关联
	FindByRootProcessInstanceID(ctx context.Context, rootProcessInstanceID string) ([]*entity.EntityLink, error)
	// Insert 插入实体关联
	Insert(ctx context.Context, l *entity.EntityLink) error
	// DeleteByRootProcessInstanceID 批量删除根流程实例范围内的实体关联
	DeleteByRootProcessInstanceID(ctx context.Context, rootProcessInstanceID string) error
}

// ActivityInstanceDataManager 活动实例DataManager接口（对外导出）
type ActivityInstanceDataManager interface {
	CRUD[*entity.ActivityInstance]

	// FindOpenByExecutionIDAndActivityID 查询执行+活动的未结束记录
	FindOpenByExecutionIDAndActivityID(ctx context.Context, executionID, activityID string) (*entity.ActivityInstance, error)
	// FindByProcessInstanceID 查询流程实例下的活动实例
	FindByProcessInstanceID(ctx context.Context, processInstanceID string) ([]*entity.ActivityInstance, error)
	// DeleteByProcessInstanceID 批量删除流程实例下的活动实例记录
	DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error
	// DeleteByExecutionID 批量删除执行的活动实例记录
	DeleteByExecutionID(ctx context.Context, executionID string) error
}

// ===== 历史存储 =====

// HistoricProcessInstance 历史流程实例记录（对外导出）
type HistoricProcessInstance struct {
	ID                  string
	ProcessDefinitionID string
	BusinessKey         string
	StartTime           time.Time
	EndTime             *time.Time
	DurationInMS        *int64
	StartUserID         string
	StartActivityID     string
	EndActivityID       string
	EndState            string
	DeleteReason        string
	TenantID            string
}

// HistoricActivityInstance 历史活动实例记录（对外导出）
type HistoricActivityInstance struct {
	ID                string
	ActivityID        string
	ActivityName      string
	ActivityType      string
	ExecutionID       string
	ProcessInstanceID string
	TaskID            string
	Assignee          string
	StartTime         time.Time
	EndTime           *time.Time
	DurationInMS      *int64
	DeleteReason      string
}

// HistoricVariable 历史变量记录（对外导出）
type HistoricVariable struct {
	ID                string
	Name              string
	TypeName          string
	TextValue         string
	ExecutionID       string
	ProcessInstanceID string
	TaskID            string
	CreateTime        time.Time
	LastUpdatedTime   time.Time
	Removed           bool
}

// HistoricDetail 历史明细记录（变量变更审计，标记来源执行，对外导出）
type HistoricDetail struct {
	ID                string
	DetailType        string // variable-create/variable-update/variable-remove
	VariableName      string
	TypeName          string
	TextValue         string
	SourceExecutionID string
	ProcessInstanceID string
	Time              time.Time
}

// HistoryDataManager 历史存储DataManager接口（对外导出）
type HistoryDataManager interface {
	// InsertProcessInstance 写入历史流程实例
	InsertProcessInstance(ctx context.Context, h *HistoricProcessInstance) error
	// FindProcessInstanceByID 查询历史流程实例
	FindProcessInstanceByID(ctx context.Context, id string) (*HistoricProcessInstance, error)
	// UpdateProcessInstance 更新历史流程实例（结束标记）
	UpdateProcessInstance(ctx context.Context, h *HistoricProcessInstance) error
	// InsertActivityInstance 写入历史活动实例
	InsertActivityInstance(ctx context.Context, h *HistoricActivityInstance) error
	// UpdateActivityInstance 更新历史活动实例
	UpdateActivityInstance(ctx context.Context, h *HistoricActivityInstance) error
	// FindOpenActivityInstance 查询执行+活动的未结束历史活动实例
	FindOpenActivityInstance(ctx context.Context, executionID, activityID string) (*HistoricActivityInstance, error)
	// UpsertVariable 写入或更新历史变量
	UpsertVariable(ctx context.Context, h *HistoricVariable) error
	// InsertDetail 写入历史明细
	InsertDetail(ctx context.Context, d *HistoricDetail) error
	// DeleteByProcessInstanceID 清除流程实例的全部历史行
	DeleteByProcessInstanceID(ctx context.Context, processInstanceID string) error
}

// Session 一个工作单元内的存储会话（对外导出）
// 绑定一个事务，暴露各实体DataManager；Commit/Rollback结束事务。
type Session interface {
	// Executions 执行DataManager
	Executions() ExecutionDataManager
	// Tasks 任务DataManager
	Tasks() TaskDataManager
	// Variables 变量DataManager
	Variables() VariableDataManager
	// ByteArrays 字节数组DataManager
	ByteArrays() ByteArrayDataManager
	// Jobs 异步任务DataManager
	Jobs() JobDataManager
	// EventSubscriptions 事件订阅DataManager
	EventSubscriptions() EventSubscriptionDataManager
	// IdentityLinks 身份关联DataManager
	IdentityLinks() IdentityLinkDataManager
	// EntityLinks 实体关联DataManager
	EntityLinks() EntityLinkDataManager
	// ActivityInstances 活动实例DataManager
	ActivityInstances() ActivityInstanceDataManager
	// History 历史存储DataManager
	History() HistoryDataManager

	// Commit 提交事务
	Commit() error
	// Rollback 回滚事务
	Rollback() error
}

// Store 存储后端（对外导出）
type Store interface {
	// Open 打开一个新的存储会话（事务）
	Open(ctx context.Context) (Session, error)
	// Close 关闭存储后端
	Close() error
}
