package task

import (
	"fmt"
	"time"
)

// Task类型常量（对外导出）
// 配置文档中原有的 "python" 类型在加载时映射为 TypeFunction
const (
	TypeFunction = "function" // 进程内注册函数调用
	TypeShell    = "shell"    // 外部Shell命令
)

// Task DAG中的独立工作单元（对外导出）
// DAG构建完成后不可变，运行期间只有其关联状态（由state.Tracker持有）会变化
type Task struct {
	ID           string                 // DAG内唯一ID
	Type         string                 // TypeFunction / TypeShell
	FuncName     string                 // 注册函数名（TypeFunction）
	Args         []interface{}          // 位置参数（TypeFunction）
	Kwargs       map[string]interface{} // 关键字参数（TypeFunction）
	Command      string                 // 命令行（TypeShell）
	Retries      int                    // 重试预算（非负，默认0）
	Timeout      time.Duration          // 单次尝试的超时上限（0表示不限制）
	Dependencies []string               // 前置依赖Task ID列表（有序）
}

// Validate 校验Task自身字段合法性（对外导出）
// 依赖的存在性与无环性由DAG校验，不在此处检查
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("Task ID不能为空")
	}
	if t.Retries < 0 {
		return fmt.Errorf("Task %s: retries不能为负数", t.ID)
	}
	if t.Timeout < 0 {
		return fmt.Errorf("Task %s: timeout不能为负数", t.ID)
	}
	switch t.Type {
	case TypeFunction:
		if t.FuncName == "" {
			return fmt.Errorf("Task %s: function类型必须指定函数名", t.ID)
		}
	case TypeShell:
		if t.Command == "" {
			return fmt.Errorf("Task %s: shell类型必须指定命令", t.ID)
		}
	default:
		return fmt.Errorf("Task %s: 不支持的类型 %s", t.ID, t.Type)
	}
	for _, depID := range t.Dependencies {
		if depID == t.ID {
			return fmt.Errorf("Task %s: 不能依赖自身", t.ID)
		}
	}
	return nil
}

// MaxAttempts 计算最大尝试次数（重试预算+1，对外导出）
func (t *Task) MaxAttempts() int {
	return t.Retries + 1
}
