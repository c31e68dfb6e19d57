package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/executor"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/events"
)

// Execution 单次DAG运行的调度器（对外导出）
// 事件驱动：每收到一个完成信号，只重新评估刚完成Task的下游，
// 新就绪的入队、被阻断的直接SKIPPED并级联传播
type Execution struct {
	runID   string
	d       *dag.DAG
	opts    *Options
	factory *executor.Factory
	tracker *state.Tracker

	mu     sync.Mutex
	result *state.DAGResult
	err    error // 调度器内部一致性错误（致命）
	done   chan struct{}
}

// newExecution 创建Execution（内部方法）
func newExecution(runID string, d *dag.DAG, opts *Options, factory *executor.Factory) *Execution {
	return &Execution{
		runID:   runID,
		d:       d,
		opts:    opts,
		factory: factory,
		tracker: state.NewTracker(d.DependencyMap()),
		result:  state.NewDAGResult(runID, d.ID),
		done:    make(chan struct{}),
	}
}

// RunID 返回本次运行的唯一ID（对外导出）
func (e *Execution) RunID() string {
	return e.runID
}

// TaskState 查询指定Task的实时状态（对外导出，只读）
func (e *Execution) TaskState(taskID string) (state.TaskState, error) {
	return e.tracker.Get(taskID)
}

// Snapshot 获取所有Task状态的实时快照（对外导出，只读）
func (e *Execution) Snapshot() map[string]state.TaskState {
	return e.tracker.Snapshot()
}

// Done 返回运行完成信号channel（对外导出）
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait 阻塞等待运行完成（对外导出）
func (e *Execution) Wait() (*state.DAGResult, error) {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// Result 获取运行结果（对外导出）
// 运行未结束时返回nil
func (e *Execution) Result() *state.DAGResult {
	select {
	case <-e.done:
	default:
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// run 调度主循环（内部方法）
// Worker池为固定容量的token池，就绪队列按DAG声明顺序FIFO；
// 调度协程自身从不执行Task，只在完成信号与池容量上阻塞
func (e *Execution) run(ctx context.Context) {
	defer close(e.done)

	log.Printf("🚀 [开始执行DAG] DAGID=%s, RunID=%s, Tasks=%d, MaxWorkers=%d, Mode=%s",
		e.d.ID, e.runID, e.d.Len(), e.d.MaxWorkers, e.d.ExecutionMode)

	e.result.StartTime = time.Now()
	e.result.State = state.DAGStateRunning
	e.publishRun(state.DAGStateRunning)

	// Worker协程在fatal错误时通过此ctx被回收
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan struct{}, e.d.MaxWorkers) // Worker池（token）
	completionCh := make(chan *state.TaskResult)
	var workerWg sync.WaitGroup

	ready := e.d.Roots() // 就绪队列，始终按声明顺序
	queued := make(map[string]bool, e.d.Len())
	for _, id := range ready {
		queued[id] = true
	}

	terminal := 0
	total := e.d.Len()
	failed := false // fail-fast闩锁

	var fatalErr error

dispatchLoop:
	for terminal < total {
		// 1. 尽可能派发就绪Task（fail-fast触发后不再提交新Task）
		if !(failed && e.opts.FailFast) {
		fill:
			for len(ready) > 0 {
				select {
				case slots <- struct{}{}:
					taskID := ready[0]
					ready = ready[1:]
					if err := e.dispatch(runCtx, taskID, slots, completionCh, &workerWg); err != nil {
						fatalErr = err
						break dispatchLoop
					}
				default:
					// 池已满，等待完成信号
					break fill
				}
			}
		}

		// 2. 阻塞等待完成信号
		tr := <-completionCh
		terminal++
		e.mu.Lock()
		e.result.AddTaskResult(tr)
		e.mu.Unlock()
		e.publishTask(tr.TaskID, tr.State, tr.Attempts, tr.Error)

		if tr.State == state.StateFailed {
			failed = true
			if e.opts.FailFast {
				// fail-fast：所有剩余PENDING直接SKIPPED，在途Task继续完成
				skipped, err := e.skipAllPending()
				if err != nil {
					fatalErr = err
					break dispatchLoop
				}
				terminal += skipped
				ready = ready[:0]
				continue
			}
		}

		// 3. 重新评估刚完成Task的下游：新就绪入队，被阻断的级联SKIPPED
		newReady, skipped, err := e.evaluateDependents(tr.TaskID, queued)
		if err != nil {
			fatalErr = err
			break dispatchLoop
		}
		terminal += skipped
		ready = append(ready, newReady...)
	}

	// fatal错误时回收在途Worker
	if fatalErr != nil {
		cancel()
	}
	go func() {
		workerWg.Wait()
		close(completionCh)
	}()
	for tr := range completionCh {
		e.mu.Lock()
		e.result.AddTaskResult(tr)
		e.mu.Unlock()
	}

	e.finish(ctx, fatalErr)
}

// dispatch 派发单个Task到Worker（内部方法）
// CAS PENDING->RUNNING失败说明调度逻辑存在竞争bug，按致命错误上报
func (e *Execution) dispatch(ctx context.Context, taskID string, slots chan struct{}, completionCh chan<- *state.TaskResult, wg *sync.WaitGroup) error {
	if err := e.tracker.Transition(taskID, state.StatePending, state.StateRunning); err != nil {
		return fmt.Errorf("调度一致性错误: %w", err)
	}
	e.publishTask(taskID, state.StateRunning, 0, "")

	t, _ := e.d.GetTask(taskID)
	wg.Add(1)
	go func() {
		defer wg.Done()

		exec, err := e.factory.ForTask(t)
		var tr *state.TaskResult
		if err != nil {
			now := time.Now()
			tr = &state.TaskResult{
				TaskID:    t.ID,
				State:     state.StateFailed,
				Error:     err.Error(),
				Attempts:  0,
				StartTime: now,
				EndTime:   now,
			}
		} else {
			tr = e.opts.Policy.Run(ctx, t, exec)
		}

		// Worker负责将自己的Task转入终态，CAS失败说明存在调度bug，按致命错误记录
		if err := e.tracker.Transition(t.ID, state.StateRunning, tr.State); err != nil {
			log.Printf("❌ [调度一致性错误] TaskID=%s: %v", t.ID, err)
			e.mu.Lock()
			if e.err == nil {
				e.err = fmt.Errorf("调度一致性错误: %w", err)
			}
			e.mu.Unlock()
		}

		// 先归还Worker token再发完成信号，保证调度循环看到池满时
		// 必然还有未消费的完成信号，不会在completionCh上永久阻塞
		<-slots
		completionCh <- tr
	}()
	return nil
}

// evaluateDependents 重新评估刚完成Task的直接下游（内部方法）
// 返回新就绪的Task ID列表（按声明顺序）与被SKIPPED的数量
func (e *Execution) evaluateDependents(taskID string, queued map[string]bool) ([]string, int, error) {
	children, err := e.d.Children(taskID)
	if err != nil {
		return nil, 0, fmt.Errorf("查询下游失败: %w", err)
	}

	newReady := make([]string, 0)
	skippedTotal := 0
	for _, childID := range children {
		s, err := e.tracker.Get(childID)
		if err != nil {
			return nil, 0, err
		}
		if s != state.StatePending || queued[childID] {
			continue
		}

		if e.tracker.IsBlocked(childID) {
			skipped, err := e.skipCascade(childID)
			if err != nil {
				return nil, 0, err
			}
			skippedTotal += skipped
			continue
		}
		if e.tracker.IsReady(childID) {
			queued[childID] = true
			newReady = append(newReady, childID)
		}
	}
	return newReady, skippedTotal, nil
}

// skipCascade 将被阻断的Task标记为SKIPPED并向下游级联传播（内部方法）
// 被跳过的Task从不占用Worker、从不重试
func (e *Execution) skipCascade(taskID string) (int, error) {
	if err := e.tracker.Transition(taskID, state.StatePending, state.StateSkipped); err != nil {
		return 0, fmt.Errorf("调度一致性错误: %w", err)
	}

	e.recordSkipped(taskID)
	skipped := 1

	children, err := e.d.Children(taskID)
	if err != nil {
		return skipped, fmt.Errorf("查询下游失败: %w", err)
	}
	for _, childID := range children {
		s, err := e.tracker.Get(childID)
		if err != nil {
			return skipped, err
		}
		if s == state.StatePending && e.tracker.IsBlocked(childID) {
			n, err := e.skipCascade(childID)
			skipped += n
			if err != nil {
				return skipped, err
			}
		}
	}
	return skipped, nil
}

// skipAllPending fail-fast触发后跳过所有尚未派发的Task（内部方法）
func (e *Execution) skipAllPending() (int, error) {
	skipped := 0
	for _, taskID := range e.d.TaskIDs() {
		s, err := e.tracker.Get(taskID)
		if err != nil {
			return skipped, err
		}
		if s != state.StatePending {
			continue
		}
		if err := e.tracker.Transition(taskID, state.StatePending, state.StateSkipped); err != nil {
			return skipped, fmt.Errorf("调度一致性错误: %w", err)
		}
		e.recordSkipped(taskID)
		skipped++
	}
	return skipped, nil
}

// recordSkipped 生成SKIPPED终态的TaskResult并发布事件（内部方法）
func (e *Execution) recordSkipped(taskID string) {
	now := time.Now()
	tr := &state.TaskResult{
		TaskID:    taskID,
		State:     state.StateSkipped,
		Error:     "上游Task失败或被跳过",
		Attempts:  0,
		StartTime: now,
		EndTime:   now,
	}
	e.mu.Lock()
	e.result.AddTaskResult(tr)
	e.mu.Unlock()
	e.publishTask(taskID, state.StateSkipped, 0, tr.Error)
	log.Printf("⏭️  [Task跳过] DAGID=%s, TaskID=%s", e.d.ID, taskID)
}

// finish 汇总结果、发布事件、持久化历史（内部方法）
func (e *Execution) finish(ctx context.Context, fatalErr error) {
	e.mu.Lock()
	e.result.EndTime = time.Now()
	e.result.Finalize()
	if fatalErr != nil && e.err == nil {
		e.err = fatalErr
	}
	if e.err != nil {
		fatalErr = e.err
		e.result.State = state.DAGStateFailed
	}
	result := e.result
	e.mu.Unlock()

	e.publishRun(result.State)

	if fatalErr != nil {
		log.Printf("❌ [DAG执行中止] DAGID=%s, RunID=%s, 错误=%v", e.d.ID, e.runID, fatalErr)
		return
	}

	log.Printf("🏁 [DAG执行完成] DAGID=%s, RunID=%s, 状态=%s, 耗时=%v, 成功率=%.0f%%",
		e.d.ID, e.runID, result.State, result.Duration(), result.SuccessRate()*100)

	if e.opts.History != nil {
		if err := e.opts.History.SaveRun(ctx, result); err != nil {
			log.Printf("警告: 保存运行历史失败: RunID=%s, %v", e.runID, err)
		}
	}
}

// publishTask 发布Task状态事件（内部方法）
func (e *Execution) publishTask(taskID string, s state.TaskState, attempts int, errMsg string) {
	if e.opts.Bus == nil {
		return
	}
	event := &events.TaskStatusEvent{
		RunID:     e.runID,
		DAGID:     e.d.ID,
		TaskID:    taskID,
		State:     s,
		Attempts:  attempts,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
	if err := e.opts.Bus.PublishTask(event); err != nil {
		log.Printf("警告: 发布Task状态事件失败: TaskID=%s, %v", taskID, err)
	}
}

// publishRun 发布运行状态事件（内部方法）
func (e *Execution) publishRun(s state.DAGState) {
	if e.opts.Bus == nil {
		return
	}
	event := &events.RunStatusEvent{
		RunID:     e.runID,
		DAGID:     e.d.ID,
		State:     s,
		Timestamp: time.Now(),
	}
	if err := e.opts.Bus.PublishRun(event); err != nil {
		log.Printf("警告: 发布运行状态事件失败: RunID=%s, %v", e.runID, err)
	}
}
