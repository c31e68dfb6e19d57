package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/policy"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
	"github.com/stevelan1995/dag-runner/pkg/events"
)

// execLog 按完成顺序记录Task执行轨迹
type execLog struct {
	mu      sync.Mutex
	order   []string
	current atomic.Int32
	peak    atomic.Int32
}

func (l *execLog) enter(id string) {
	n := l.current.Add(1)
	for {
		peak := l.peak.Load()
		if n <= peak || l.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	l.mu.Lock()
	l.order = append(l.order, id)
	l.mu.Unlock()
}

func (l *execLog) exit() {
	l.current.Add(-1)
}

func (l *execLog) executed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// newTestRunner 创建带记录函数的Runner：
// "ok"正常返回，"fail"始终失败，"slow"休眠50ms后成功
func newTestRunner(t *testing.T, failFast bool, bus *events.Bus, history HistoryRecorder) (*Runner, *execLog) {
	t.Helper()
	logRec := &execLog{}
	registry := task.NewFunctionRegistry()

	register := func(name string, fn task.JobFunction) {
		if err := registry.Register(name, fn); err != nil {
			t.Fatalf("注册函数失败: %v", err)
		}
	}
	register("ok", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		logRec.enter(kwargs["id"].(string))
		defer logRec.exit()
		return "ok", nil
	})
	register("fail", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		logRec.enter(kwargs["id"].(string))
		defer logRec.exit()
		return nil, fmt.Errorf("模拟失败")
	})
	register("slow", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		logRec.enter(kwargs["id"].(string))
		defer logRec.exit()
		select {
		case <-time.After(50 * time.Millisecond):
			return "slow ok", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	r := New(Options{
		Policy:   &policy.Policy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond},
		Registry: registry,
		Bus:      bus,
		History:  history,
		FailFast: failFast,
	})
	return r, logRec
}

func funcTask(id, fn string, retries int, deps ...string) *task.Task {
	return &task.Task{
		ID:           id,
		Type:         task.TypeFunction,
		FuncName:     fn,
		Kwargs:       map[string]interface{}{"id": id},
		Retries:      retries,
		Dependencies: deps,
	}
}

func buildDAG(t *testing.T, maxWorkers int, tasks ...*task.Task) *dag.DAG {
	t.Helper()
	d := dag.New("test-dag")
	d.MaxWorkers = maxWorkers
	for _, tk := range tasks {
		if err := d.AddTask(tk); err != nil {
			t.Fatalf("添加Task失败 (%s): %v", tk.ID, err)
		}
	}
	return d
}

func mustRun(t *testing.T, r *Runner, d *dag.DAG) *state.DAGResult {
	t.Helper()
	result, err := r.Run(context.Background(), d)
	if err != nil {
		t.Fatalf("执行失败: %v", err)
	}
	return result
}

func assertTaskState(t *testing.T, result *state.DAGResult, taskID string, want state.TaskState) {
	t.Helper()
	tr, exists := result.TaskResults[taskID]
	if !exists {
		t.Fatalf("缺少Task %s 的结果", taskID)
	}
	if tr.State != want {
		t.Errorf("Task %s 状态错误，期望: %s, 实际: %s (%s)", taskID, want, tr.State, tr.Error)
	}
}

func TestRunner_LinearSuccess(t *testing.T) {
	r, logRec := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 4,
		funcTask("a", "ok", 0),
		funcTask("b", "ok", 0, "a"),
		funcTask("c", "ok", 0, "b"),
	)

	result := mustRun(t, r, d)

	if result.State != state.DAGStateSuccess {
		t.Fatalf("DAG状态错误: %s", result.State)
	}
	for _, id := range []string{"a", "b", "c"} {
		assertTaskState(t, result, id, state.StateSuccess)
	}

	order := logRec.executed()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("执行顺序错误: %v", order)
	}
	if result.SuccessRate() != 1.0 {
		t.Errorf("成功率错误: %v", result.SuccessRate())
	}
}

func TestRunner_DiamondJoin(t *testing.T) {
	r, logRec := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 4,
		funcTask("a", "ok", 0),
		funcTask("b", "slow", 0, "a"),
		funcTask("c", "ok", 0, "a"),
		funcTask("d", "ok", 0, "b", "c"),
	)

	result := mustRun(t, r, d)

	if result.State != state.DAGStateSuccess {
		t.Fatalf("DAG状态错误: %s", result.State)
	}

	// d必须在b、c都完成后才开始
	order := logRec.executed()
	if order[len(order)-1] != "d" {
		t.Errorf("汇合点应当最后执行: %v", order)
	}
}

func TestRunner_FailureSkipsDependents(t *testing.T) {
	r, logRec := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 4,
		funcTask("a", "fail", 2),
		funcTask("b", "ok", 0, "a"),
		funcTask("c", "ok", 0, "b"),
		funcTask("x", "ok", 0),
	)

	result := mustRun(t, r, d)

	if result.State != state.DAGStateFailed {
		t.Fatalf("DAG状态错误: %s", result.State)
	}
	assertTaskState(t, result, "a", state.StateFailed)
	assertTaskState(t, result, "b", state.StateSkipped)
	assertTaskState(t, result, "c", state.StateSkipped)
	assertTaskState(t, result, "x", state.StateSuccess)

	// retries=2共3次尝试
	if result.TaskResults["a"].Attempts != 3 {
		t.Errorf("尝试次数错误，期望: 3, 实际: %d", result.TaskResults["a"].Attempts)
	}
	// 被跳过的Task从不执行
	for _, id := range logRec.executed() {
		if id == "b" || id == "c" {
			t.Errorf("被跳过的Task不应执行: %v", logRec.executed())
		}
	}
	if result.TaskResults["b"].Attempts != 0 {
		t.Errorf("被跳过的Task尝试次数应为0，实际: %d", result.TaskResults["b"].Attempts)
	}
}

func TestRunner_PartialBlockedJoin(t *testing.T) {
	r, _ := newTestRunner(t, false, nil, nil)
	// d依赖b(失败)与c(成功)：任一上游失败即应跳过
	d := buildDAG(t, 4,
		funcTask("a", "ok", 0),
		funcTask("b", "fail", 0, "a"),
		funcTask("c", "ok", 0, "a"),
		funcTask("d", "ok", 0, "b", "c"),
	)

	result := mustRun(t, r, d)

	assertTaskState(t, result, "b", state.StateFailed)
	assertTaskState(t, result, "c", state.StateSuccess)
	assertTaskState(t, result, "d", state.StateSkipped)
}

func TestRunner_WorkerLimit(t *testing.T) {
	r, logRec := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 1,
		funcTask("a", "slow", 0),
		funcTask("b", "slow", 0),
	)

	result := mustRun(t, r, d)

	if result.State != state.DAGStateSuccess {
		t.Fatalf("DAG状态错误: %s", result.State)
	}
	if peak := logRec.peak.Load(); peak > 1 {
		t.Errorf("并发Worker数超限，期望: <=1, 实际: %d", peak)
	}
}

func TestRunner_SingleWorkerRepeated(t *testing.T) {
	// 单Worker下反复跑短链路，校验token归还与完成信号的时序：
	// 任何一轮卡死都说明调度循环在池满时错过了完成信号
	for i := 0; i < 100; i++ {
		r, _ := newTestRunner(t, false, nil, nil)
		d := buildDAG(t, 1,
			funcTask("a", "ok", 0),
			funcTask("b", "ok", 0, "a"),
			funcTask("c", "ok", 0, "b"),
			funcTask("d", "ok", 0, "c"),
		)

		execution, err := r.Start(context.Background(), d)
		if err != nil {
			t.Fatalf("第%d轮启动失败: %v", i, err)
		}

		select {
		case <-execution.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("第%d轮调度卡死，状态快照: %v", i, execution.Snapshot())
		}

		result, err := execution.Wait()
		if err != nil {
			t.Fatalf("第%d轮执行失败: %v", i, err)
		}
		if result.State != state.DAGStateSuccess {
			t.Fatalf("第%d轮DAG状态错误: %s", i, result.State)
		}
	}
}

func TestRunner_ParallelRoots(t *testing.T) {
	r, logRec := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 4,
		funcTask("a", "slow", 0),
		funcTask("b", "slow", 0),
		funcTask("c", "slow", 0),
	)

	result := mustRun(t, r, d)

	if result.State != state.DAGStateSuccess {
		t.Fatalf("DAG状态错误: %s", result.State)
	}
	// 三个独立Task在容量4的池中应当有并行
	if peak := logRec.peak.Load(); peak < 2 {
		t.Errorf("独立Task应当并行执行，峰值并发: %d", peak)
	}
}

func TestRunner_FailFast(t *testing.T) {
	r, logRec := newTestRunner(t, true, nil, nil)
	// a立即失败；b在途慢任务；c依赖b；x独立但尚未派发时应被跳过
	d := buildDAG(t, 2,
		funcTask("a", "fail", 0),
		funcTask("b", "slow", 0),
		funcTask("c", "ok", 0, "b"),
		funcTask("x", "ok", 0, "b"),
	)

	result := mustRun(t, r, d)

	if result.State != state.DAGStateFailed {
		t.Fatalf("DAG状态错误: %s", result.State)
	}
	assertTaskState(t, result, "a", state.StateFailed)
	// 在途Task正常跑完
	assertTaskState(t, result, "b", state.StateSuccess)
	// 未派发的全部跳过
	assertTaskState(t, result, "c", state.StateSkipped)
	assertTaskState(t, result, "x", state.StateSkipped)

	for _, id := range logRec.executed() {
		if id == "c" || id == "x" {
			t.Errorf("fail-fast后不应执行新Task: %v", logRec.executed())
		}
	}
}

func TestRunner_ValidateBeforeStart(t *testing.T) {
	r, _ := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 4,
		funcTask("a", "ok", 0, "b"),
		funcTask("b", "ok", 0, "a"),
	)

	if _, err := r.Run(context.Background(), d); err == nil {
		t.Fatal("循环依赖的DAG不应启动")
	}
}

func TestRunner_StartAndQuery(t *testing.T) {
	r, _ := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 2, funcTask("a", "slow", 0))

	execution, err := r.Start(context.Background(), d)
	if err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	if execution.RunID() == "" {
		t.Error("RunID不应为空")
	}

	// 运行中可查询实时状态
	snap := execution.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("快照大小错误: %d", len(snap))
	}
	if execution.Result() != nil {
		t.Error("运行未结束时Result应返回nil")
	}

	result, err := execution.Wait()
	if err != nil {
		t.Fatalf("等待失败: %v", err)
	}
	if result.State != state.DAGStateSuccess {
		t.Errorf("DAG状态错误: %s", result.State)
	}
	if execution.Result() == nil {
		t.Error("运行结束后Result不应为nil")
	}
}

func TestRunner_ContextCancel(t *testing.T) {
	r, _ := newTestRunner(t, false, nil, nil)
	d := buildDAG(t, 2,
		funcTask("a", "slow", 0),
		funcTask("b", "ok", 0, "a"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	execution, err := r.Start(ctx, d)
	if err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	cancel()

	result, err := execution.Wait()
	if err != nil {
		t.Fatalf("等待失败: %v", err)
	}
	if result.State != state.DAGStateFailed {
		t.Errorf("取消后DAG应为FAILED, 实际: %s", result.State)
	}
}

// fakeHistory 捕获SaveRun调用
type fakeHistory struct {
	mu      sync.Mutex
	results []*state.DAGResult
}

func (h *fakeHistory) SaveRun(ctx context.Context, result *state.DAGResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
	return nil
}

func TestRunner_HistoryRecorded(t *testing.T) {
	history := &fakeHistory{}
	r, _ := newTestRunner(t, false, nil, history)
	d := buildDAG(t, 2, funcTask("a", "ok", 0))

	result := mustRun(t, r, d)

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.results) != 1 {
		t.Fatalf("历史记录次数错误: %d", len(history.results))
	}
	if history.results[0].RunID != result.RunID {
		t.Errorf("历史记录RunID错误: %s", history.results[0].RunID)
	}
}

func TestRunner_EventsPublished(t *testing.T) {
	bus := events.NewBus(false)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	taskCh, err := bus.SubscribeTasks(ctx)
	if err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	runCh, err := bus.SubscribeRuns(ctx)
	if err != nil {
		t.Fatalf("订阅失败: %v", err)
	}

	r, _ := newTestRunner(t, false, bus, nil)
	d := buildDAG(t, 2,
		funcTask("a", "ok", 0),
		funcTask("b", "fail", 0, "a"),
		funcTask("c", "ok", 0, "b"),
	)
	result := mustRun(t, r, d)

	// 收集运行状态事件直到终态
	var runStates []state.DAGState
	for ev := range runCh {
		runStates = append(runStates, ev.State)
		if ev.State == state.DAGStateSuccess || ev.State == state.DAGStateFailed {
			break
		}
	}
	if len(runStates) != 2 || runStates[0] != state.DAGStateRunning || runStates[1] != state.DAGStateFailed {
		t.Errorf("运行状态事件序列错误: %v", runStates)
	}

	// Task事件：a RUNNING/SUCCESS、b RUNNING/FAILED、c SKIPPED，共5条
	seen := map[string][]state.TaskState{}
	for i := 0; i < 5; i++ {
		select {
		case ev := <-taskCh:
			if ev.RunID != result.RunID {
				t.Errorf("事件RunID错误: %s", ev.RunID)
			}
			seen[ev.TaskID] = append(seen[ev.TaskID], ev.State)
		case <-ctx.Done():
			t.Fatalf("等待Task事件超时，已收到: %v", seen)
		}
	}
	if states := seen["c"]; len(states) != 1 || states[0] != state.StateSkipped {
		t.Errorf("Task c 事件错误: %v", states)
	}
	if states := seen["b"]; len(states) != 2 || states[1] != state.StateFailed {
		t.Errorf("Task b 事件错误: %v", states)
	}
}
