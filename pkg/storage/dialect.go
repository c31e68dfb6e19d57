package storage

// Dialect 屏蔽不同数据库之间的SQL类型差异
type Dialect interface {
	// Name 方言名称（sqlite/mysql/postgres）
	Name() string
	// TimestampType 时间戳列类型
	TimestampType() string
	// TextType 长文本列类型
	TextType() string
}

// SQLiteDialect SQLite方言
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string          { return "sqlite" }
func (SQLiteDialect) TimestampType() string { return "DATETIME" }
func (SQLiteDialect) TextType() string      { return "TEXT" }

// MySQLDialect MySQL方言
type MySQLDialect struct{}

func (MySQLDialect) Name() string          { return "mysql" }
func (MySQLDialect) TimestampType() string { return "DATETIME(6)" }
func (MySQLDialect) TextType() string      { return "LONGTEXT" }

// PostgresDialect PostgreSQL方言
type PostgresDialect struct{}

func (PostgresDialect) Name() string          { return "postgres" }
func (PostgresDialect) TimestampType() string { return "TIMESTAMPTZ" }
func (PostgresDialect) TextType() string      { return "TEXT" }
