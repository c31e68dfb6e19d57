package events

import (
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/state"
)

// 事件主题常量（对外导出）
const (
	TopicTaskStatus = "dag-runner.task.status"
	TopicRunStatus  = "dag-runner.run.status"
)

// TaskStatusEvent Task状态变更事件（对外导出）
// 进程内通过Pub/Sub传递，供进度上报/可视化协作方订阅
type TaskStatusEvent struct {
	RunID     string          `json:"run_id"`
	DAGID     string          `json:"dag_id"`
	TaskID    string          `json:"task_id"`
	State     state.TaskState `json:"state"`
	Attempts  int             `json:"attempts,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RunStatusEvent DAG运行状态变更事件（对外导出）
type RunStatusEvent struct {
	RunID     string         `json:"run_id"`
	DAGID     string         `json:"dag_id"`
	State     state.DAGState `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
}
