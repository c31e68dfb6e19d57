package executor

import (
	"context"
	"fmt"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// TaskExecutor 任务执行器接口（对外导出）
// 对"执行并产出结果"的能力做多态抽象：函数调用与外部命令
// 呈现完全一致的结果形态，重试策略与调度器对执行类型无感知。
// ctx携带单次尝试的deadline，实现必须在ctx取消后尽快返回
type TaskExecutor interface {
	// Execute 执行一次尝试，成功返回输出，失败返回错误
	Execute(ctx context.Context, t *task.Task) (interface{}, error)
}

// Factory 执行器工厂（对外导出）
// 按Task类型选择执行器变体
type Factory struct {
	function *FunctionExecutor
	command  *CommandExecutor
}

// NewFactory 创建执行器工厂（对外导出）
// registry: Job函数注册中心; executionMode: DAG的执行模式
func NewFactory(registry *task.FunctionRegistry, executionMode string) *Factory {
	return &Factory{
		function: NewFunctionExecutor(registry),
		command:  NewCommandExecutor(executionMode == dag.ModeMultiprocessing),
	}
}

// ForTask 根据Task类型选择执行器（对外导出）
func (f *Factory) ForTask(t *task.Task) (TaskExecutor, error) {
	switch t.Type {
	case task.TypeFunction:
		return f.function, nil
	case task.TypeShell:
		return f.command, nil
	default:
		return nil, fmt.Errorf("Task %s: 不支持的类型 %s", t.ID, t.Type)
	}
}
