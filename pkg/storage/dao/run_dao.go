package dao

import (
	"database/sql"
	"time"
)

// RunDAO dag_run表的数据访问对象
type RunDAO struct {
	RunID       string       `db:"run_id"`
	DAGID       string       `db:"dag_id"`
	State       string       `db:"state"`
	StartTime   time.Time    `db:"start_time"`
	EndTime     sql.NullTime `db:"end_time"`
	DurationMS  int64        `db:"duration_ms"`
	TaskCount   int          `db:"task_count"`
	SuccessRate float64      `db:"success_rate"`
}

// TaskRunDAO task_run表的数据访问对象
type TaskRunDAO struct {
	RunID      string         `db:"run_id"`
	TaskID     string         `db:"task_id"`
	State      string         `db:"state"`
	Attempts   int            `db:"attempts"`
	Output     sql.NullString `db:"output"`
	Error      sql.NullString `db:"error"`
	StartTime  sql.NullTime   `db:"start_time"`
	EndTime    sql.NullTime   `db:"end_time"`
	DurationMS int64          `db:"duration_ms"`
}
