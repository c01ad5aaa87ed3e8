// Package sqlstore 提供基于sqlx的关系库存储实现。
// 每个工作单元对应一个数据库事务，乐观锁通过UPDATE ... WHERE id=? AND rev=?实现。
// 方言差异（sqlite/mysql/postgres）由Dialect接口抽象，占位符经sqlx.Rebind转换。
package sqlstore

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/LENAX/process-engine/pkg/storage"
)

// Dialect 数据库方言接口（对外导出）
type Dialect interface {
	// Name 方言名称
	Name() string
	// Driver database/sql驱动名
	Driver() string
	// BooleanType 布尔列类型
	BooleanType() string
	// TextType 大文本列类型
	TextType() string
	// TimestampType 时间戳列类型
	TimestampType() string
	// FloatType 浮点列类型
	FloatType() string
	// BlobType 二进制列类型
	BlobType() string
	// SupportsCreateIndexIfNotExists 是否支持CREATE INDEX IF NOT EXISTS
	SupportsCreateIndexIfNotExists() bool
	// ConfigureDB 连接建立后执行的配置SQL
	ConfigureDB() []string
}

// Store 关系库存储后端（对外导出）
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ storage.Store = (*Store)(nil)

// New 基于已有连接创建存储后端并初始化表结构
func New(db *sqlx.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return s, nil
}

// Open 通过DSN创建存储后端
func Open(dsn string, dialect Dialect) (*Store, error) {
	db, err := sqlx.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			log.Printf("执行数据库配置SQL失败（忽略）: %s: %v", stmt, err)
		}
	}
	return New(db, dialect)
}

// DB 获取底层数据库连接
func (s *Store) DB() *sqlx.DB { return s.db }

// Dialect 获取方言
func (s *Store) Dialect() Dialect { return s.dialect }

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initSchema 初始化数据库表结构
func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
	}
	return nil
}

// Open 打开存储会话（开启一个数据库事务）
func (s *Store) Open(ctx context.Context) (storage.Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开启事务失败: %w", err)
	}
	return &session{store: s, tx: tx}, nil
}

// session 一个工作单元的数据库事务会话
type session struct {
	store *Store
	tx    *sqlx.Tx
	done  bool
}

var _ storage.Session = (*session)(nil)

// Commit 提交事务
func (s *session) Commit() error {
	if s.done {
		return fmt.Errorf("会话已结束")
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Rollback 回滚事务
func (s *session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback()
}

// rebind 将?占位符转换为驱动方言的占位符
func (s *session) rebind(query string) string {
	return s.tx.Rebind(query)
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
