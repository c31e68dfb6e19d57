package dag

import (
	"fmt"
	"sort"

	godag "github.com/begmaroman/go-dag"

	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// 执行模式常量（对外导出）
// 资源隔离方式的选择，不影响调度正确性：
// threading模式下所有Task共享进程，multiprocessing模式下shell命令
// 运行在独立进程组中，超时可整组终止
const (
	ModeThreading       = "threading"
	ModeMultiprocessing = "multiprocessing"
)

// DefaultMaxWorkers 默认最大并发Worker数
const DefaultMaxWorkers = 4

// vertex go-dag节点包装（内部结构，实现Identifiable接口）
type vertex struct {
	id   string
	task *task.Task
}

// ID 实现go-dag的Identifiable接口
func (v *vertex) ID() string {
	return v.id
}

// Hash 实现go-dag的Hashable接口，以Task ID作为节点哈希
// 默认哈希对节点做JSON序列化，vertex全是非导出字段，
// 不自定义的话所有节点哈希相同，加第二个节点即报重复
func (v *vertex) Hash() (godag.VHash, error) {
	return godag.ToHash(v.id)
}

// DAG 有向无环图，持有一次运行的全部Task与依赖结构（对外导出）
// 由已校验的配置构建一次，运行期间只读；Task状态由state.Tracker单独持有
type DAG struct {
	ID            string
	Description   string
	MaxWorkers    int    // 最大并发Worker数（正整数）
	ExecutionMode string // ModeThreading / ModeMultiprocessing

	tasks map[string]*task.Task
	order []string // Task ID插入顺序，用于确定性的平局裁决

	// go-dag图结构，首次校验通过后构建，用于父子节点查询
	graph *godag.DAG[*vertex]
}

// New 创建DAG实例（对外导出）
func New(id string) *DAG {
	return &DAG{
		ID:            id,
		MaxWorkers:    DefaultMaxWorkers,
		ExecutionMode: ModeThreading,
		tasks:         make(map[string]*task.Task),
		order:         make([]string, 0),
	}
}

// AddTask 添加Task到DAG（对外导出）
// Task ID重复时返回错误；依赖的存在性与无环性由Validate统一检查
func (d *DAG) AddTask(t *task.Task) error {
	if t == nil {
		return fmt.Errorf("Task不能为空")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := d.tasks[t.ID]; exists {
		return fmt.Errorf("Task ID %s 已存在", t.ID)
	}

	d.tasks[t.ID] = t
	d.order = append(d.order, t.ID)
	d.graph = nil // 结构已变化，作废已构建的图
	return nil
}

// GetTask 根据ID获取Task（对外导出）
func (d *DAG) GetTask(taskID string) (*task.Task, bool) {
	t, exists := d.tasks[taskID]
	return t, exists
}

// Tasks 按声明顺序返回所有Task（对外导出）
func (d *DAG) Tasks() []*task.Task {
	result := make([]*task.Task, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.tasks[id])
	}
	return result
}

// TaskIDs 按声明顺序返回所有Task ID（对外导出）
func (d *DAG) TaskIDs() []string {
	return append([]string(nil), d.order...)
}

// Len 返回Task数量（对外导出）
func (d *DAG) Len() int {
	return len(d.tasks)
}

// DeclarationIndex 返回Task在DAG中的声明序号（对外导出）
// 用于多个Task同时就绪时的稳定排序；未知ID返回-1
func (d *DAG) DeclarationIndex(taskID string) int {
	for i, id := range d.order {
		if id == taskID {
			return i
		}
	}
	return -1
}

// DependencyMap 返回Task ID到其依赖列表的映射（对外导出）
// 供state.Tracker初始化使用，返回副本
func (d *DAG) DependencyMap() map[string][]string {
	deps := make(map[string][]string, len(d.tasks))
	for id, t := range d.tasks {
		deps[id] = append([]string(nil), t.Dependencies...)
	}
	return deps
}

// Validate 校验DAG结构合法性（对外导出）
// 依次检查：执行参数、依赖引用完整性（UnknownDependencyError）、
// 无环性（Kahn算法剥离入度为0的节点，剩余节点集作为CycleError报告）。
// 幂等：对同一DAG重复调用结果一致
func (d *DAG) Validate() error {
	if d.MaxWorkers <= 0 {
		return fmt.Errorf("DAG %s: max_workers必须大于0", d.ID)
	}
	if d.ExecutionMode != ModeThreading && d.ExecutionMode != ModeMultiprocessing {
		return fmt.Errorf("DAG %s: 不支持的执行模式 %s", d.ID, d.ExecutionMode)
	}

	// 1. 依赖引用完整性（按声明顺序检查，保证报错确定性）
	for _, id := range d.order {
		for _, depID := range d.tasks[id].Dependencies {
			if _, exists := d.tasks[depID]; !exists {
				return &UnknownDependencyError{DAGID: d.ID, TaskID: id, DependencyID: depID}
			}
		}
	}

	// 2. Kahn算法检测循环：不断移除入度为0的节点，剩余节点必在环上
	inDegree := make(map[string]int, len(d.tasks))
	children := d.childrenIndex()
	for id, t := range d.tasks {
		inDegree[id] = len(t.Dependencies)
	}

	queue := make([]string, 0)
	for _, id := range d.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	removed := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		removed++

		for _, childID := range children[current] {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				queue = append(queue, childID)
			}
		}
	}

	if removed < len(d.tasks) {
		remaining := make([]string, 0, len(d.tasks)-removed)
		for _, id := range d.order {
			if inDegree[id] > 0 {
				remaining = append(remaining, id)
			}
		}
		return &CycleError{DAGID: d.ID, TaskIDs: remaining}
	}

	// 3. 校验通过后构建go-dag图结构（已确认无环，AddEdge不会失败）
	if d.graph == nil {
		if err := d.buildGraph(); err != nil {
			return fmt.Errorf("构建图结构失败: %w", err)
		}
	}
	return nil
}

// buildGraph 构建go-dag图结构（内部方法）
func (d *DAG) buildGraph() error {
	g := godag.NewDAG[*vertex]()
	for _, id := range d.order {
		if _, err := g.AddVertex(&vertex{id: id, task: d.tasks[id]}); err != nil {
			return fmt.Errorf("添加节点失败: Task ID=%s, Error=%w", id, err)
		}
	}
	for _, id := range d.order {
		for _, depID := range d.tasks[id].Dependencies {
			// 边方向：前置Task -> 后置Task
			if err := g.AddEdge(depID, id); err != nil {
				return fmt.Errorf("添加边失败: %s -> %s, Error=%w", depID, id, err)
			}
		}
	}
	d.graph = g
	return nil
}

// Children 获取直接下游Task ID列表（对外导出，按声明顺序）
// 需要先通过Validate构建图结构
func (d *DAG) Children(taskID string) ([]string, error) {
	if d.graph == nil {
		return nil, fmt.Errorf("DAG %s 尚未校验，图结构未构建", d.ID)
	}
	children, err := d.graph.GetChildren(taskID)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(children))
	for id := range children {
		result = append(result, id)
	}
	d.sortByDeclaration(result)
	return result, nil
}

// Parents 获取直接上游Task ID列表（对外导出，按声明顺序）
func (d *DAG) Parents(taskID string) ([]string, error) {
	if d.graph == nil {
		return nil, fmt.Errorf("DAG %s 尚未校验，图结构未构建", d.ID)
	}
	parents, err := d.graph.GetParents(taskID)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(parents))
	for id := range parents {
		result = append(result, id)
	}
	d.sortByDeclaration(result)
	return result, nil
}

// Roots 获取所有无依赖的根Task ID（对外导出，按声明顺序）
func (d *DAG) Roots() []string {
	roots := make([]string, 0)
	for _, id := range d.order {
		if len(d.tasks[id].Dependencies) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves 获取所有无下游的叶子Task ID（对外导出，按声明顺序）
func (d *DAG) Leaves() []string {
	hasChild := make(map[string]bool, len(d.tasks))
	for _, t := range d.tasks {
		for _, depID := range t.Dependencies {
			hasChild[depID] = true
		}
	}

	leaves := make([]string, 0)
	for _, id := range d.order {
		if !hasChild[id] {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// ExecutionLevels 计算拓扑分层（对外导出）
// 每一层的Task的依赖全部落在更早的层中，同层Task可并行执行。
// 仅用于可视化与执行计划展示，运行时调度是事件驱动的，不依赖分层
func (d *DAG) ExecutionLevels() ([][]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(d.tasks))
	children := d.childrenIndex()
	for id, t := range d.tasks {
		inDegree[id] = len(t.Dependencies)
	}

	current := make([]string, 0)
	for _, id := range d.order {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	levels := make([][]string, 0)
	for len(current) > 0 {
		levels = append(levels, current)

		next := make([]string, 0)
		for _, id := range current {
			for _, childID := range children[id] {
				inDegree[childID]--
				if inDegree[childID] == 0 {
					next = append(next, childID)
				}
			}
		}
		d.sortByDeclaration(next)
		current = next
	}
	return levels, nil
}

// childrenIndex 构建邻接表：Task ID -> 直接下游ID列表（内部方法）
func (d *DAG) childrenIndex() map[string][]string {
	children := make(map[string][]string, len(d.tasks))
	for _, id := range d.order {
		for _, depID := range d.tasks[id].Dependencies {
			children[depID] = append(children[depID], id)
		}
	}
	return children
}

// sortByDeclaration 按声明顺序排序Task ID列表（内部方法）
func (d *DAG) sortByDeclaration(ids []string) {
	index := make(map[string]int, len(d.order))
	for i, id := range d.order {
		index[id] = i
	}
	sort.Slice(ids, func(i, j int) bool {
		return index[ids[i]] < index[ids[j]]
	})
}
