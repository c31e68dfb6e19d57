package builder

import (
	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// DAGBuilder DAG构建器（对外导出）
// 链式组装Task并在Build时统一校验图结构
type DAGBuilder struct {
	id            string
	description   string
	maxWorkers    int
	executionMode string
	tasks         []*task.Task
	errs          []error
}

// NewDAGBuilder 创建DAG构建器（对外导出）
func NewDAGBuilder(id string) *DAGBuilder {
	return &DAGBuilder{id: id}
}

// WithDescription 设置描述（链式构建，对外导出）
func (b *DAGBuilder) WithDescription(description string) *DAGBuilder {
	b.description = description
	return b
}

// WithMaxWorkers 设置最大并发Worker数（链式构建，对外导出）
func (b *DAGBuilder) WithMaxWorkers(n int) *DAGBuilder {
	b.maxWorkers = n
	return b
}

// WithExecutionMode 设置执行模式（链式构建，对外导出）
func (b *DAGBuilder) WithExecutionMode(mode string) *DAGBuilder {
	b.executionMode = mode
	return b
}

// AddTask 添加已构建的Task（链式构建，对外导出）
func (b *DAGBuilder) AddTask(t *task.Task) *DAGBuilder {
	b.tasks = append(b.tasks, t)
	return b
}

// AddTaskBuilder 添加Task构建器（链式构建，对外导出）
// 构建错误被记录并在Build时统一上报
func (b *DAGBuilder) AddTaskBuilder(tb *TaskBuilder) *DAGBuilder {
	t, err := tb.Build()
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.tasks = append(b.tasks, t)
	return b
}

// Build 完成DAG构建并校验图结构（对外导出）
func (b *DAGBuilder) Build() (*dag.DAG, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	d := dag.New(b.id)
	d.Description = b.description
	if b.maxWorkers > 0 {
		d.MaxWorkers = b.maxWorkers
	}
	if b.executionMode != "" {
		d.ExecutionMode = b.executionMode
	}

	for _, t := range b.tasks {
		if err := d.AddTask(t); err != nil {
			return nil, err
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
