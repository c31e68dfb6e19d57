package storage

import (
	"context"
	"errors"
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/state"
)

// ErrRunNotFound 指定RunID不存在
var ErrRunNotFound = errors.New("运行记录不存在")

// RunRecord DAG运行历史记录（对外查询视图）
type RunRecord struct {
	RunID       string
	DAGID       string
	State       string
	StartTime   time.Time
	EndTime     time.Time
	DurationMS  int64
	TaskCount   int
	SuccessRate float64
}

// TaskRunRecord 单个Task的运行历史记录
type TaskRunRecord struct {
	RunID      string
	TaskID     string
	State      string
	Attempts   int
	Output     string
	Error      string
	StartTime  time.Time
	EndTime    time.Time
	DurationMS int64
}

// RunRepository 运行历史仓储接口
type RunRepository interface {
	// SaveRun 保存一次完整的DAG运行结果（含所有Task记录）
	SaveRun(ctx context.Context, result *state.DAGResult) error
	// GetRun 按RunID查询运行记录
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	// ListRuns 按开始时间倒序列出最近的运行记录
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	// ListTaskRuns 列出某次运行的所有Task记录（按开始时间升序）
	ListTaskRuns(ctx context.Context, runID string) ([]*TaskRunRecord, error)
	// Close 关闭底层数据库连接
	Close() error
}
