package state

import "fmt"

// TaskState Task执行状态（对外导出）
type TaskState string

const (
	StatePending TaskState = "PENDING" // 初始状态，等待调度
	StateRunning TaskState = "RUNNING" // 正在执行（瞬态）
	StateSuccess TaskState = "SUCCESS" // 执行成功（终态）
	StateFailed  TaskState = "FAILED"  // 重试耗尽后失败（终态）
	StateSkipped TaskState = "SKIPPED" // 因上游失败/跳过而被跳过（终态）
)

// IsTerminal 判断是否为终态（对外导出）
func (s TaskState) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateSkipped
}

// DAGState DAG运行状态（对外导出）
type DAGState string

const (
	DAGStatePending DAGState = "PENDING"
	DAGStateRunning DAGState = "RUNNING"
	DAGStateSuccess DAGState = "SUCCESS" // 所有Task均为SUCCESS
	DAGStateFailed  DAGState = "FAILED"  // 存在FAILED或SKIPPED的Task
)

// InvalidTransitionError 状态转换冲突错误（对外导出）
// CAS语义：当前状态与期望的from状态不一致时返回，
// 用于防止同一Task被并发调度决策重复派发或重复终结
type InvalidTransitionError struct {
	TaskID  string
	From    TaskState // 调用方期望的当前状态
	To      TaskState
	Current TaskState // 实际的当前状态
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Task %s 状态转换失败: 期望当前状态为 %s（目标 %s），实际为 %s",
		e.TaskID, e.From, e.To, e.Current)
}
