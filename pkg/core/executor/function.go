package executor

import (
	"context"
	"fmt"

	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// FunctionExecutor 进程内函数执行器（对外导出）
// 从注册中心按名称查表获取Job函数并调用
type FunctionExecutor struct {
	registry *task.FunctionRegistry
}

// NewFunctionExecutor 创建函数执行器（对外导出）
func NewFunctionExecutor(registry *task.FunctionRegistry) *FunctionExecutor {
	return &FunctionExecutor{registry: registry}
}

// funcOutcome 单次函数调用的结果（内部结构）
type funcOutcome struct {
	output interface{}
	err    error
}

// Execute 执行函数Task的一次尝试（对外导出）
// 函数在独立goroutine中运行并与ctx.Done竞争：超时后该goroutine被放弃，
// 其后续产出被丢弃，不会与下一次尝试的输出合并
func (e *FunctionExecutor) Execute(ctx context.Context, t *task.Task) (interface{}, error) {
	if e.registry == nil {
		return nil, fmt.Errorf("Job函数注册中心未配置")
	}

	fn := e.registry.Get(t.FuncName)
	if fn == nil {
		return nil, fmt.Errorf("Job函数 %s 未注册", t.FuncName)
	}

	outcomeCh := make(chan funcOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcomeCh <- funcOutcome{err: fmt.Errorf("Job函数 %s panic: %v", t.FuncName, r)}
			}
		}()
		output, err := fn(ctx, t.Args, t.Kwargs)
		outcomeCh <- funcOutcome{output: output, err: err}
	}()

	select {
	case outcome := <-outcomeCh:
		if outcome.err != nil {
			return nil, outcome.err
		}
		return outcome.output, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
