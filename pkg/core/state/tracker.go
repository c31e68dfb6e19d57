package state

import (
	"fmt"
	"sync"
)

// Tracker 并发安全的Task状态存储（对外导出）
// 每个Task在一次运行中持有一个状态，Tracker是"某个Task是否可以执行"的唯一事实来源。
// 所有写操作采用CAS语义（Transition），同一Task ID不可能有两个并发写者同时成功。
type Tracker struct {
	mu     sync.RWMutex
	states map[string]TaskState
	deps   map[string][]string // Task ID -> 依赖的前置Task ID列表
}

// NewTracker 创建Tracker实例（对外导出）
// deps: Task ID -> 前置依赖ID列表，所有Task初始状态为PENDING
func NewTracker(deps map[string][]string) *Tracker {
	states := make(map[string]TaskState, len(deps))
	depsCopy := make(map[string][]string, len(deps))
	for id, d := range deps {
		states[id] = StatePending
		depsCopy[id] = append([]string(nil), d...)
	}
	return &Tracker{
		states: states,
		deps:   depsCopy,
	}
}

// Get 查询指定Task的当前状态（对外导出）
func (t *Tracker) Get(taskID string) (TaskState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, exists := t.states[taskID]
	if !exists {
		return "", fmt.Errorf("Task %s 不存在", taskID)
	}
	return s, nil
}

// Transition CAS状态转换（对外导出）
// 当前状态与from不一致时返回InvalidTransitionError，调用方视为竞争失败
func (t *Tracker) Transition(taskID string, from, to TaskState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, exists := t.states[taskID]
	if !exists {
		return fmt.Errorf("Task %s 不存在", taskID)
	}
	if current != from {
		return &InvalidTransitionError{TaskID: taskID, From: from, To: to, Current: current}
	}
	t.states[taskID] = to
	return nil
}

// IsReady 判断Task是否就绪（对外导出）
// 就绪条件：所有前置依赖均为SUCCESS
func (t *Tracker) IsReady(taskID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, depID := range t.deps[taskID] {
		if t.states[depID] != StateSuccess {
			return false
		}
	}
	return true
}

// IsBlocked 判断Task是否被阻断（对外导出）
// 阻断条件：任一前置依赖为FAILED或SKIPPED，此类Task应被直接标记为SKIPPED而非派发
func (t *Tracker) IsBlocked(taskID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, depID := range t.deps[taskID] {
		s := t.states[depID]
		if s == StateFailed || s == StateSkipped {
			return true
		}
	}
	return false
}

// Snapshot 获取所有Task状态的快照（对外导出）
// 返回副本，供进度上报/可视化等只读场景轮询
func (t *Tracker) Snapshot() map[string]TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]TaskState, len(t.states))
	for id, s := range t.states {
		snapshot[id] = s
	}
	return snapshot
}

// AllTerminal 判断是否所有Task均已到达终态（对外导出）
func (t *Tracker) AllTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.states {
		if !s.IsTerminal() {
			return false
		}
	}
	return true
}

// CountByState 按状态统计Task数量（对外导出）
func (t *Tracker) CountByState() map[TaskState]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[TaskState]int)
	for _, s := range t.states {
		counts[s]++
	}
	return counts
}
