package config

import (
	"fmt"
	"strings"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// Validate 校验DAG配置文档的字段合法性（对外导出）
// 图结构层面的校验（循环依赖、依赖缺失）不在此处，由dag.Validate负责
func Validate(cfg *DAGConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}
	if cfg.DAGID == "" {
		return fmt.Errorf("dag_id不能为空")
	}
	if len(cfg.Tasks) == 0 {
		return fmt.Errorf("tasks不能为空")
	}
	if cfg.MaxWorkers < 0 {
		return fmt.Errorf("max_workers不能为负数")
	}
	if cfg.ExecutionMode != "" &&
		cfg.ExecutionMode != dag.ModeThreading &&
		cfg.ExecutionMode != dag.ModeMultiprocessing {
		return fmt.Errorf("execution_mode必须是threading/multiprocessing之一")
	}

	seen := make(map[string]bool, len(cfg.Tasks))
	for i := range cfg.Tasks {
		if err := validateTask(&cfg.Tasks[i]); err != nil {
			return err
		}
		if seen[cfg.Tasks[i].TaskID] {
			return fmt.Errorf("task_id %s 重复", cfg.Tasks[i].TaskID)
		}
		seen[cfg.Tasks[i].TaskID] = true
	}
	return nil
}

// validateTask 校验单个Task配置（内部方法）
func validateTask(tc *TaskConfig) error {
	if tc.TaskID == "" {
		return fmt.Errorf("task_id不能为空")
	}
	if tc.Retries < 0 {
		return fmt.Errorf("Task %s: retries不能为负数", tc.TaskID)
	}
	if tc.TimeoutSeconds < 0 {
		return fmt.Errorf("Task %s: timeout不能为负数", tc.TaskID)
	}

	switch strings.ToLower(tc.TaskType) {
	case "python", task.TypeFunction:
		if tc.Function == "" {
			return fmt.Errorf("Task %s: %s类型必须指定function", tc.TaskID, tc.TaskType)
		}
	case "shell":
		if tc.Command == "" {
			return fmt.Errorf("Task %s: shell类型必须指定command", tc.TaskID)
		}
	case "":
		return fmt.Errorf("Task %s: task_type不能为空", tc.TaskID)
	default:
		return fmt.Errorf("Task %s: 不支持的task_type %s", tc.TaskID, tc.TaskType)
	}
	return nil
}

// ValidateFunctions 校验配置引用的函数是否均已注册（对外导出）
// 在运行前调用，避免执行到一半才发现函数缺失
func ValidateFunctions(cfg *DAGConfig, registry *task.FunctionRegistry) error {
	if registry == nil {
		return fmt.Errorf("registry不能为空")
	}
	for i := range cfg.Tasks {
		tc := &cfg.Tasks[i]
		taskType := strings.ToLower(tc.TaskType)
		if taskType != "python" && taskType != task.TypeFunction {
			continue
		}
		if !registry.Exists(tc.Function) {
			return fmt.Errorf("Task %s: 函数 %s 未注册", tc.TaskID, tc.Function)
		}
	}
	return nil
}
