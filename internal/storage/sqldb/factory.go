package sqldb

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	// 按需注册数据库驱动
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stevelan1995/dag-runner/pkg/storage"
)

// Options 存储后端配置
type Options struct {
	// Type 数据库类型: sqlite / mysql / postgres
	Type string
	// DSN 数据源连接串。sqlite时为文件路径
	DSN string
}

// Open 按类型打开数据库并返回运行历史仓储
func Open(opts Options) (storage.RunRepository, error) {
	var (
		driver  string
		dsn     string
		dialect storage.Dialect
	)

	switch opts.Type {
	case "", "sqlite":
		driver = "sqlite3"
		dsn = opts.DSN
		if dsn == "" {
			dsn = "dag_runner.db"
		}
		dialect = storage.SQLiteDialect{}
	case "mysql":
		driver = "mysql"
		dsn = opts.DSN
		dialect = storage.MySQLDialect{}
	case "postgres":
		driver = "postgres"
		dsn = opts.DSN
		dialect = storage.PostgresDialect{}
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", opts.Type)
	}

	if dsn == "" {
		return nil, fmt.Errorf("数据库类型 %s 需要提供DSN", opts.Type)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败 (%s): %w", dialect.Name(), err)
	}

	repo, err := NewRepo(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("✅ 运行历史存储已就绪 (类型: %s)", dialect.Name())
	return repo, nil
}
