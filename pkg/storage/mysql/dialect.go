// Package mysql MySQL方言实现。
package mysql

import (
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LENAX/process-engine/pkg/storage/sqlstore"
)

// Dialect MySQL方言（对外导出）
type Dialect struct{}

// NewDialect 创建MySQL方言实例
func NewDialect() *Dialect {
	return &Dialect{}
}

var _ sqlstore.Dialect = (*Dialect)(nil)

// Name 方言名称
func (d *Dialect) Name() string { return "mysql" }

// Driver database/sql驱动名
func (d *Dialect) Driver() string { return "mysql" }

// BooleanType 布尔列类型
func (d *Dialect) BooleanType() string { return "TINYINT(1)" }

// TextType 大文本列类型
func (d *Dialect) TextType() string { return "TEXT" }

// TimestampType 时间戳列类型
func (d *Dialect) TimestampType() string { return "DATETIME(6)" }

// FloatType 浮点列类型
func (d *Dialect) FloatType() string { return "DOUBLE" }

// BlobType 二进制列类型
func (d *Dialect) BlobType() string { return "LONGBLOB" }

// SupportsCreateIndexIfNotExists MySQL不支持CREATE INDEX IF NOT EXISTS
func (d *Dialect) SupportsCreateIndexIfNotExists() bool { return false }

// ConfigureDB 连接建立后执行的配置SQL
func (d *Dialect) ConfigureDB() []string {
	return []string{
		"SET SESSION sql_mode = 'STRICT_TRANS_TABLES'",
	}
}

// Open 打开MySQL存储后端
// DSN未启用parseTime时自动补上，时间列按time.Time扫描依赖此参数。
func Open(dsn string) (*sqlstore.Store, error) {
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	return sqlstore.Open(dsn, NewDialect())
}
