package state

import "time"

// TaskResult Task执行结果（对外导出）
// 每个Task在一次运行中到达终态时生成且仅生成一次，生成后只读
type TaskResult struct {
	TaskID    string
	State     TaskState   // SUCCESS / FAILED / SKIPPED
	Output    interface{} // 成功时的返回值或捕获的标准输出
	Error     string      // 失败时的错误描述
	Attempts  int         // 实际消耗的尝试次数（SKIPPED为0）
	StartTime time.Time
	EndTime   time.Time
}

// Duration 计算Task执行耗时（对外导出）
func (r *TaskResult) Duration() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Success 判断Task是否执行成功（对外导出）
func (r *TaskResult) Success() bool {
	return r.State == StateSuccess
}

// DAGResult DAG运行的聚合结果（对外导出）
// 在所有Task到达终态后生成，生成后只读
type DAGResult struct {
	RunID       string // 本次运行的唯一ID
	DAGID       string
	State       DAGState // 所有Task均SUCCESS时为SUCCESS，否则为FAILED
	StartTime   time.Time
	EndTime     time.Time
	TaskResults map[string]*TaskResult
}

// NewDAGResult 创建DAGResult容器（对外导出）
func NewDAGResult(runID, dagID string) *DAGResult {
	return &DAGResult{
		RunID:       runID,
		DAGID:       dagID,
		State:       DAGStatePending,
		TaskResults: make(map[string]*TaskResult),
	}
}

// AddTaskResult 记录单个Task的结果（对外导出）
func (r *DAGResult) AddTaskResult(result *TaskResult) {
	r.TaskResults[result.TaskID] = result
}

// Finalize 根据各Task结果推导整体状态（对外导出）
func (r *DAGResult) Finalize() {
	r.State = DAGStateSuccess
	for _, tr := range r.TaskResults {
		if tr.State != StateSuccess {
			r.State = DAGStateFailed
			break
		}
	}
}

// Duration 计算整体运行耗时（对外导出）
func (r *DAGResult) Duration() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// SuccessRate 计算Task成功率（对外导出）
func (r *DAGResult) SuccessRate() float64 {
	if len(r.TaskResults) == 0 {
		return 0
	}
	success := 0
	for _, tr := range r.TaskResults {
		if tr.Success() {
			success++
		}
	}
	return float64(success) / float64(len(r.TaskResults))
}

// FailedTasks 获取所有失败的Task结果（对外导出）
func (r *DAGResult) FailedTasks() map[string]*TaskResult {
	failed := make(map[string]*TaskResult)
	for id, tr := range r.TaskResults {
		if tr.State == StateFailed {
			failed[id] = tr
		}
	}
	return failed
}
