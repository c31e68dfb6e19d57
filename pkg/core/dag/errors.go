package dag

import (
	"fmt"
	"strings"
)

// CycleError 循环依赖错误（对外导出）
// TaskIDs为Kahn算法剥离后剩余的节点集合：不一定是最小环，但足以定位问题
type CycleError struct {
	DAGID   string
	TaskIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("DAG %s 存在循环依赖，涉及Task: [%s]", e.DAGID, strings.Join(e.TaskIDs, ", "))
}

// UnknownDependencyError 依赖缺失错误（对外导出）
// Task引用了同一DAG中不存在的依赖ID
type UnknownDependencyError struct {
	DAGID        string
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("DAG %s: Task %s 依赖的Task %s 不存在", e.DAGID, e.TaskID, e.DependencyID)
}
