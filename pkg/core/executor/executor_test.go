package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

func newTestRegistry(t *testing.T) *task.FunctionRegistry {
	t.Helper()
	registry := task.NewFunctionRegistry()
	if err := task.RegisterBuiltins(registry); err != nil {
		t.Fatalf("注册内置函数失败: %v", err)
	}
	return registry
}

func TestFunctionExecutor_Execute(t *testing.T) {
	exec := NewFunctionExecutor(newTestRegistry(t))

	out, err := exec.Execute(context.Background(), &task.Task{
		ID:       "echo",
		Type:     task.TypeFunction,
		FuncName: "builtin.echo",
		Args:     []interface{}{"hello"},
	})
	if err != nil {
		t.Fatalf("执行失败: %v", err)
	}
	if out != "hello" {
		t.Errorf("输出错误，期望: hello, 实际: %v", out)
	}
}

func TestFunctionExecutor_UnknownFunction(t *testing.T) {
	exec := NewFunctionExecutor(newTestRegistry(t))

	_, err := exec.Execute(context.Background(), &task.Task{
		ID:       "x",
		Type:     task.TypeFunction,
		FuncName: "no.such.fn",
	})
	if err == nil || !strings.Contains(err.Error(), "未注册") {
		t.Fatalf("错误信息错误: %v", err)
	}
}

func TestFunctionExecutor_Panic(t *testing.T) {
	registry := task.NewFunctionRegistry()
	registry.Register("panics", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		panic("boom")
	})
	exec := NewFunctionExecutor(registry)

	_, err := exec.Execute(context.Background(), &task.Task{
		ID: "p", Type: task.TypeFunction, FuncName: "panics",
	})
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("panic应当转换为错误: %v", err)
	}
}

func TestFunctionExecutor_Timeout(t *testing.T) {
	exec := NewFunctionExecutor(newTestRegistry(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := exec.Execute(ctx, &task.Task{
		ID:       "slow",
		Type:     task.TypeFunction,
		FuncName: "builtin.sleep",
		Kwargs:   map[string]interface{}{"seconds": 10},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("超时应当返回DeadlineExceeded: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("超时后不应继续等待函数返回")
	}
}

func TestCommandExecutor_Execute(t *testing.T) {
	exec := NewCommandExecutor(false)

	out, err := exec.Execute(context.Background(), &task.Task{
		ID:      "hi",
		Type:    task.TypeShell,
		Command: "echo hello",
	})
	if err != nil {
		t.Fatalf("执行失败: %v", err)
	}
	if strings.TrimSpace(out.(string)) != "hello" {
		t.Errorf("输出错误: %v", out)
	}
}

func TestCommandExecutor_ExitCode(t *testing.T) {
	exec := NewCommandExecutor(false)

	_, err := exec.Execute(context.Background(), &task.Task{
		ID:      "fail",
		Type:    task.TypeShell,
		Command: "echo oops >&2; exit 3",
	})
	if err == nil {
		t.Fatal("非零退出码应当报错")
	}
	if !strings.Contains(err.Error(), "退出码 3") || !strings.Contains(err.Error(), "oops") {
		t.Errorf("错误信息应包含退出码与stderr: %v", err)
	}
}

func TestCommandExecutor_Timeout(t *testing.T) {
	exec := NewCommandExecutor(false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, &task.Task{
		ID:      "slow",
		Type:    task.TypeShell,
		Command: "sleep 10",
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("超时应当返回DeadlineExceeded: %v", err)
	}
}

func TestFactory_ForTask(t *testing.T) {
	factory := NewFactory(newTestRegistry(t), dag.ModeThreading)

	fe, err := factory.ForTask(&task.Task{ID: "f", Type: task.TypeFunction, FuncName: "builtin.echo"})
	if err != nil {
		t.Fatalf("获取执行器失败: %v", err)
	}
	if _, ok := fe.(*FunctionExecutor); !ok {
		t.Errorf("执行器类型错误: %T", fe)
	}

	ce, err := factory.ForTask(&task.Task{ID: "s", Type: task.TypeShell, Command: "true"})
	if err != nil {
		t.Fatalf("获取执行器失败: %v", err)
	}
	if _, ok := ce.(*CommandExecutor); !ok {
		t.Errorf("执行器类型错误: %T", ce)
	}

	if _, err := factory.ForTask(&task.Task{ID: "u", Type: "docker"}); err == nil {
		t.Fatal("未知类型应当报错")
	}
}
