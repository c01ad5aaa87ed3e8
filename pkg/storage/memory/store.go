// Package memory 提供带引用完整性检查的内存存储实现。
// 用途：单元测试（模拟强制外键约束的后端、统计查询次数的spy）与可嵌入后端。
// 事务模型：Open时对全部表做快照，会话内所有读写落在快照上，
// Commit时做写集校验（乐观锁）后整体换入，Rollback直接丢弃快照。
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/storage"
)

// tables 全部表的一份视图
type tables struct {
	executions        map[string]*entity.Execution
	tasks             map[string]*entity.Task
	variables         map[string]*entity.VariableInstance
	byteArrays        map[string]*entity.ByteArray
	jobs              map[string]*entity.Job
	eventSubs         map[string]*entity.EventSubscription
	identityLinks     map[string]*entity.IdentityLink
	entityLinks       map[string]*entity.EntityLink
	activityInstances map[string]*entity.ActivityInstance

	historicProcessInstances map[string]*storage.HistoricProcessInstance
	historicActivities       map[string]*storage.HistoricActivityInstance
	historicVariables        map[string]*storage.HistoricVariable
	historicDetails          map[string]*storage.HistoricDetail
}

func newTables() *tables {
	return &tables{
		executions:               make(map[string]*entity.Execution),
		tasks:                    make(map[string]*entity.Task),
		variables:                make(map[string]*entity.VariableInstance),
		byteArrays:               make(map[string]*entity.ByteArray),
		jobs:                     make(map[string]*entity.Job),
		eventSubs:                make(map[string]*entity.EventSubscription),
		identityLinks:            make(map[string]*entity.IdentityLink),
		entityLinks:              make(map[string]*entity.EntityLink),
		activityInstances:        make(map[string]*entity.ActivityInstance),
		historicProcessInstances: make(map[string]*storage.HistoricProcessInstance),
		historicActivities:       make(map[string]*storage.HistoricActivityInstance),
		historicVariables:        make(map[string]*storage.HistoricVariable),
		historicDetails:          make(map[string]*storage.HistoricDetail),
	}
}

// clone 深拷贝全部表
func (t *tables) clone() *tables {
	out := newTables()
	for id, e := range t.executions {
		out.executions[id] = e.Clone()
	}
	for id, e := range t.tasks {
		out.tasks[id] = e.Clone()
	}
	for id, e := range t.variables {
		out.variables[id] = e.Clone()
	}
	for id, e := range t.byteArrays {
		copied := *e
		out.byteArrays[id] = &copied
	}
	for id, e := range t.jobs {
		out.jobs[id] = e.Clone()
	}
	for id, e := range t.eventSubs {
		copied := *e
		out.eventSubs[id] = &copied
	}
	for id, e := range t.identityLinks {
		copied := *e
		out.identityLinks[id] = &copied
	}
	for id, e := range t.entityLinks {
		copied := *e
		out.entityLinks[id] = &copied
	}
	for id, e := range t.activityInstances {
		out.activityInstances[id] = e.Clone()
	}
	for id, e := range t.historicProcessInstances {
		copied := *e
		out.historicProcessInstances[id] = &copied
	}
	for id, e := range t.historicActivities {
		copied := *e
		out.historicActivities[id] = &copied
	}
	for id, e := range t.historicVariables {
		copied := *e
		out.historicVariables[id] = &copied
	}
	for id, e := range t.historicDetails {
		copied := *e
		out.historicDetails[id] = &copied
	}
	return out
}

// Store 内存存储后端（对外导出）
type Store struct {
	mu   sync.Mutex
	data *tables

	queryMu     sync.Mutex
	queryCounts map[string]int64
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{
		data:        newTables(),
		queryCounts: make(map[string]int64),
	}
}

// Open 打开存储会话（对全部表做快照）
func (s *Store) Open(ctx context.Context) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &session{
		store:    s,
		ctx:      ctx,
		work:     s.data.clone(),
		readRevs: make(map[string]int),
	}, nil
}

// Close 关闭存储后端
func (s *Store) Close() error {
	return nil
}

// QueryCount 获取指定查询方法的累计调用次数（测试spy）
func (s *Store) QueryCount(name string) int64 {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	return s.queryCounts[name]
}

// ResetQueryCounts 清零查询计数
func (s *Store) ResetQueryCounts() {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	s.queryCounts = make(map[string]int64)
}

func (s *Store) countQuery(name string) {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	s.queryCounts[name]++
}

// session 一个工作单元的存储会话
type session struct {
	store *Store
	ctx   context.Context
	work  *tables

	// 写集：表.ID -> 打开快照时的版本号（新插入为0）
	readRevs map[string]int
	done     bool
}

// markWrite 登记写集（首次写时记录快照版本号）
func (s *session) markWrite(table, id string, snapshotRev int) {
	key := table + "." + id
	if _, ok := s.readRevs[key]; !ok {
		s.readRevs[key] = snapshotRev
	}
}

// Commit 提交：写集乐观锁校验通过后整体换入
func (s *session) Commit() error {
	if s.done {
		return fmt.Errorf("会话已结束")
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	// 写集校验：基表中的版本号必须与打开快照时一致
	for key, snapRev := range s.readRevs {
		baseRev := s.store.baseRevision(key)
		if baseRev != snapRev {
			s.done = true
			return fmt.Errorf("%w: %s", storage.ErrOptimisticLock, key)
		}
	}

	s.store.data = s.work
	s.done = true
	return nil
}

// Rollback 回滚：丢弃快照
func (s *session) Rollback() error {
	s.done = true
	return nil
}

// baseRevision 查基表中某行的当前版本号（不存在返回0）
// key格式: 表名.ID
func (s *Store) baseRevision(key string) int {
	var table, id string
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			table, id = key[:i], key[i+1:]
			break
		}
	}
	switch table {
	case "execution":
		if e, ok := s.data.executions[id]; ok {
			return e.Revision
		}
	case "task":
		if e, ok := s.data.tasks[id]; ok {
			return e.Revision
		}
	case "variable":
		if e, ok := s.data.variables[id]; ok {
			return e.Revision
		}
	case "job":
		if e, ok := s.data.jobs[id]; ok {
			return e.Revision
		}
	case "event-subscription":
		if e, ok := s.data.eventSubs[id]; ok {
			return e.Revision
		}
	case "activity-instance":
		if e, ok := s.data.activityInstances[id]; ok {
			return e.Revision
		}
	}
	return 0
}

// ===== DataManager访问器 =====

func (s *session) Executions() storage.ExecutionDataManager { return &executionDM{s} }
func (s *session) Tasks() storage.TaskDataManager           { return &taskDM{s} }
func (s *session) Variables() storage.VariableDataManager   { return &variableDM{s} }
func (s *session) ByteArrays() storage.ByteArrayDataManager { return &byteArrayDM{s} }
func (s *session) Jobs() storage.JobDataManager             { return &jobDM{s} }
func (s *session) EventSubscriptions() storage.EventSubscriptionDataManager {
	return &eventSubDM{s}
}
func (s *session) IdentityLinks() storage.IdentityLinkDataManager { return &identityLinkDM{s} }
func (s *session) EntityLinks() storage.EntityLinkDataManager     { return &entityLinkDM{s} }
func (s *session) ActivityInstances() storage.ActivityInstanceDataManager {
	return &activityInstanceDM{s}
}
func (s *session) History() storage.HistoryDataManager { return &historyDM{s} }
