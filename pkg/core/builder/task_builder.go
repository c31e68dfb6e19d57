package builder

import (
	"fmt"
	"slices"
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// TaskBuilder Task构建器（对外导出）
// 链式API，供以代码方式组装DAG的调用方使用；配置文件路径走config包
type TaskBuilder struct {
	id           string
	taskType     string
	funcName     string
	args         []interface{}
	kwargs       map[string]interface{}
	command      string
	retries      int
	timeout      time.Duration
	dependencies []string
	errs         []error
}

// NewTaskBuilder 创建Task构建器（对外导出）
func NewTaskBuilder(id string) *TaskBuilder {
	return &TaskBuilder{
		id:           id,
		dependencies: make([]string, 0),
	}
}

// WithFunction 绑定进程内函数及位置参数（链式构建，对外导出）
// 与WithShellCommand互斥，后设置者覆盖前者
func (b *TaskBuilder) WithFunction(fnName string, args ...interface{}) *TaskBuilder {
	if fnName == "" {
		b.errs = append(b.errs, fmt.Errorf("Task %s: 函数名不能为空", b.id))
		return b
	}
	b.taskType = task.TypeFunction
	b.funcName = fnName
	b.args = args
	return b
}

// WithKwargs 设置关键字参数（链式构建，对外导出）
func (b *TaskBuilder) WithKwargs(kwargs map[string]interface{}) *TaskBuilder {
	b.kwargs = kwargs
	return b
}

// WithShellCommand 绑定外部Shell命令（链式构建，对外导出）
func (b *TaskBuilder) WithShellCommand(command string) *TaskBuilder {
	if command == "" {
		b.errs = append(b.errs, fmt.Errorf("Task %s: 命令不能为空", b.id))
		return b
	}
	b.taskType = task.TypeShell
	b.command = command
	return b
}

// WithRetries 设置重试预算（链式构建，对外导出）
func (b *TaskBuilder) WithRetries(count int) *TaskBuilder {
	if count < 0 {
		b.errs = append(b.errs, fmt.Errorf("Task %s: retries不能为负数", b.id))
		return b
	}
	b.retries = count
	return b
}

// WithTimeout 设置单次尝试的超时上限（链式构建，对外导出）
func (b *TaskBuilder) WithTimeout(timeout time.Duration) *TaskBuilder {
	if timeout < 0 {
		b.errs = append(b.errs, fmt.Errorf("Task %s: timeout不能为负数", b.id))
		return b
	}
	b.timeout = timeout
	return b
}

// WithDependency 添加单个前置依赖（链式构建，对外导出），重复添加自动去重
func (b *TaskBuilder) WithDependency(depID string) *TaskBuilder {
	if depID == "" || slices.Contains(b.dependencies, depID) {
		return b
	}
	b.dependencies = append(b.dependencies, depID)
	return b
}

// WithDependencies 批量添加前置依赖（链式构建，对外导出）
func (b *TaskBuilder) WithDependencies(depIDs ...string) *TaskBuilder {
	for _, depID := range depIDs {
		b.WithDependency(depID)
	}
	return b
}

// Build 完成Task构建（对外导出）
// 汇总链式调用期间积累的错误并做最终校验
func (b *TaskBuilder) Build() (*task.Task, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	t := &task.Task{
		ID:           b.id,
		Type:         b.taskType,
		FuncName:     b.funcName,
		Args:         b.args,
		Kwargs:       b.kwargs,
		Command:      b.command,
		Retries:      b.retries,
		Timeout:      b.timeout,
		Dependencies: append([]string(nil), b.dependencies...),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
