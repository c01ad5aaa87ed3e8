// Package sqlite SQLite方言实现。
package sqlite

import (
	_ "github.com/mattn/go-sqlite3"

	"github.com/LENAX/process-engine/pkg/storage/sqlstore"
)

// Dialect SQLite方言（对外导出）
type Dialect struct{}

// NewDialect 创建SQLite方言实例
func NewDialect() *Dialect {
	return &Dialect{}
}

var _ sqlstore.Dialect = (*Dialect)(nil)

// Name 方言名称
func (d *Dialect) Name() string { return "sqlite" }

// Driver database/sql驱动名
func (d *Dialect) Driver() string { return "sqlite3" }

// BooleanType 布尔列类型
func (d *Dialect) BooleanType() string { return "INTEGER" }

// TextType 大文本列类型
func (d *Dialect) TextType() string { return "TEXT" }

// TimestampType 时间戳列类型
func (d *Dialect) TimestampType() string { return "DATETIME" }

// FloatType 浮点列类型
func (d *Dialect) FloatType() string { return "REAL" }

// BlobType 二进制列类型
func (d *Dialect) BlobType() string { return "BLOB" }

// SupportsCreateIndexIfNotExists 是否支持CREATE INDEX IF NOT EXISTS
func (d *Dialect) SupportsCreateIndexIfNotExists() bool { return true }

// ConfigureDB 连接建立后执行的配置SQL
func (d *Dialect) ConfigureDB() []string {
	return []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=30000;",
		"PRAGMA wal_autocheckpoint=1000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
}

// Open 打开SQLite存储后端
func Open(dsn string) (*sqlstore.Store, error) {
	return sqlstore.Open(dsn, NewDialect())
}
