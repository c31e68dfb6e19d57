package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// CommandExecutor 外部命令执行器（对外导出）
// 通过 /bin/sh -c 运行命令行：退出码为0视为成功，输出为捕获的标准输出；
// 非零退出码或无法启动视为失败，错误信息携带退出码与标准错误
type CommandExecutor struct {
	// isolateProcessGroup multiprocessing模式下命令运行在独立进程组中，
	// 超时时整组终止，避免残留子进程
	isolateProcessGroup bool
}

// NewCommandExecutor 创建命令执行器（对外导出）
func NewCommandExecutor(isolateProcessGroup bool) *CommandExecutor {
	return &CommandExecutor{isolateProcessGroup: isolateProcessGroup}
}

// Execute 执行命令Task的一次尝试（对外导出）
// ctx超时或取消时进程（组）被强制终止，已捕获的部分输出被丢弃
func (e *CommandExecutor) Execute(ctx context.Context, t *task.Task) (interface{}, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", t.Command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.isolateProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			// 终止整个进程组（负PID）
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}

	if err := cmd.Run(); err != nil {
		// 超时/取消优先于进程被杀的退出错误上报
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("命令退出码 %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("命令启动失败: %w", err)
	}

	return stdout.String(), nil
}
