package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/executor"
	"github.com/stevelan1995/dag-runner/pkg/core/policy"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
	"github.com/stevelan1995/dag-runner/pkg/events"
)

// HistoryRecorder 运行历史记录接口（对外导出）
// 持久化由外部存储协作方实现，核心只依赖此接口
type HistoryRecorder interface {
	SaveRun(ctx context.Context, result *state.DAGResult) error
}

// Options Runner配置项（对外导出）
type Options struct {
	Policy   *policy.Policy          // 重试/超时策略，nil使用默认
	Registry *task.FunctionRegistry  // Job函数注册中心，nil创建空注册中心
	Bus      *events.Bus             // 事件总线（可选）
	History  HistoryRecorder         // 运行历史存储（可选）
	FailFast bool                    // 首个FAILED后不再提交新Task，剩余PENDING直接SKIPPED
}

// Runner DAG执行入口（对外导出）
// 持有策略与协作方配置，按运行ID跟踪进行中的Execution
type Runner struct {
	opts Options

	mu     sync.RWMutex
	active map[string]*Execution // RunID -> 进行中的Execution
}

// New 创建Runner实例（对外导出）
func New(opts Options) *Runner {
	if opts.Policy == nil {
		opts.Policy = policy.Default()
	}
	if opts.Registry == nil {
		opts.Registry = task.NewFunctionRegistry()
	}
	return &Runner{
		opts:   opts,
		active: make(map[string]*Execution),
	}
}

// Validate 校验DAG结构（对外导出）
// 无效时返回CycleError或UnknownDependencyError，校验失败的DAG不允许启动运行
func (r *Runner) Validate(d *dag.DAG) error {
	return d.Validate()
}

// Run 阻塞式执行DAG（对外导出）
// 所有Task到达终态后返回DAGResult；返回error仅发生在结构校验失败
// 或调度器内部一致性错误（TransitionError）时
func (r *Runner) Run(ctx context.Context, d *dag.DAG) (*state.DAGResult, error) {
	execution, err := r.Start(ctx, d)
	if err != nil {
		return nil, err
	}
	return execution.Wait()
}

// Start 异步启动DAG执行（对外导出）
// 返回Execution句柄，供调用方查询实时状态、等待完成
func (r *Runner) Start(ctx context.Context, d *dag.DAG) (*Execution, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("DAG校验失败: %w", err)
	}

	execution := newExecution(uuid.NewString(), d, &r.opts, executor.NewFactory(r.opts.Registry, d.ExecutionMode))

	r.mu.Lock()
	r.active[execution.RunID()] = execution
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.active, execution.RunID())
			r.mu.Unlock()
		}()
		execution.run(ctx)
	}()

	return execution, nil
}

// Get 根据RunID获取进行中的Execution（对外导出）
func (r *Runner) Get(runID string) (*Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.active[runID]
	return e, exists
}

// Active 列出所有进行中的RunID（对外导出）
func (r *Runner) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
