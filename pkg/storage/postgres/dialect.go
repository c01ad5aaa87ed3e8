// Package postgres PostgreSQL方言实现。
package postgres

import (
	_ "github.com/lib/pq"

	"github.com/LENAX/process-engine/pkg/storage/sqlstore"
)

// Dialect PostgreSQL方言（对外导出）
type Dialect struct{}

// NewDialect 创建PostgreSQL方言实例
func NewDialect() *Dialect {
	return &Dialect{}
}

var _ sqlstore.Dialect = (*Dialect)(nil)

// Name 方言名称
func (d *Dialect) Name() string { return "postgres" }

// Driver database/sql驱动名
func (d *Dialect) Driver() string { return "postgres" }

// BooleanType 布尔列类型
// 统一按整数读写，三种方言行为一致。
func (d *Dialect) BooleanType() string { return "SMALLINT" }

// TextType 大文本列类型
func (d *Dialect) TextType() string { return "TEXT" }

// TimestampType 时间戳列类型
func (d *Dialect) TimestampType() string { return "TIMESTAMP" }

// FloatType 浮点列类型
func (d *Dialect) FloatType() string { return "DOUBLE PRECISION" }

// BlobType 二进制列类型
func (d *Dialect) BlobType() string { return "BYTEA" }

// SupportsCreateIndexIfNotExists 是否支持CREATE INDEX IF NOT EXISTS
func (d *Dialect) SupportsCreateIndexIfNotExists() bool { return true }

// ConfigureDB 连接建立后执行的配置SQL
func (d *Dialect) ConfigureDB() []string { return nil }

// Open 打开PostgreSQL存储后端
func Open(dsn string) (*sqlstore.Store, error) {
	return sqlstore.Open(dsn, NewDialect())
}
