package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
)

// StateSymbol Task状态对应的显示符号
func StateSymbol(s state.TaskState) string {
	switch s {
	case state.StateSuccess:
		return "✅"
	case state.StateFailed:
		return "❌"
	case state.StateSkipped:
		return "⏭️"
	case state.StateRunning:
		return "🔄"
	default:
		return "⏸️"
	}
}

// stateColor Task状态对应的颜色
func stateColor(s state.TaskState) *color.Color {
	switch s {
	case state.StateSuccess:
		return color.New(color.FgGreen)
	case state.StateFailed:
		return color.New(color.FgRed)
	case state.StateSkipped:
		return color.New(color.FgYellow)
	case state.StateRunning:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

// StateCell 状态列单元格，按状态着色（历史查询等表格共用）
func StateCell(s state.TaskState) Cell {
	return Cell{Text: string(s), Color: stateColor(s)}
}

// RenderLevels 按执行层级展示DAG结构（同层Task可并行）
func RenderLevels(d *dag.DAG) error {
	levels, err := d.ExecutionLevels()
	if err != nil {
		return err
	}

	title := color.New(color.FgCyan, color.Bold)
	title.Printf("DAG: %s\n", d.ID)
	if d.Description != "" {
		fmt.Printf("  %s\n", d.Description)
	}
	fmt.Printf("  Task数: %d  最大并发: %d  执行模式: %s\n\n", d.Len(), d.MaxWorkers, d.ExecutionMode)

	for i, level := range levels {
		fmt.Printf("Level %d: [%s]\n", i, strings.Join(level, ", "))
	}
	return nil
}

// RenderTree 以树形结构展示DAG依赖关系
func RenderTree(d *dag.DAG) error {
	roots := d.Roots()

	title := color.New(color.FgCyan, color.Bold)
	title.Printf("DAG: %s\n", d.ID)

	for i, root := range roots {
		renderSubtree(d, root, "", i == len(roots)-1, map[string]bool{})
	}
	return nil
}

// renderSubtree 递归打印子树。同一Task被多个上游依赖时只展开一次
func renderSubtree(d *dag.DAG, taskID, prefix string, last bool, seen map[string]bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if last {
		connector = "└── "
		childPrefix = prefix + "    "
	}

	label := taskID
	if seen[taskID] {
		label += " (...)"
	}
	fmt.Printf("%s%s%s\n", prefix, connector, label)

	if seen[taskID] {
		return
	}
	seen[taskID] = true

	children, err := d.Children(taskID)
	if err != nil {
		return
	}
	for i, child := range children {
		renderSubtree(d, child, childPrefix, i == len(children)-1, seen)
	}
}

// RenderRunSummary 打印一次运行的汇总统计
func RenderRunSummary(result *state.DAGResult) {
	bold := color.New(color.Bold)
	bold.Printf("\n运行汇总 (%s)\n", result.DAGID)
	fmt.Printf("  RunID:  %s\n", result.RunID)
	fmt.Printf("  状态:   %s\n", result.State)
	fmt.Printf("  耗时:   %s\n", result.Duration().Round(time.Millisecond))
	fmt.Printf("  成功率: %.0f%%\n\n", result.SuccessRate()*100)

	ids := make([]string, 0, len(result.TaskResults))
	for id := range result.TaskResults {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := NewTable([]string{"TASK", "STATE", "ATTEMPTS", "DURATION", "ERROR"})
	for _, id := range ids {
		tr := result.TaskResults[id]
		table.AddStyledRow([]Cell{
			{Text: id},
			{Text: StateSymbol(tr.State) + " " + string(tr.State), Color: stateColor(tr.State)},
			{Text: fmt.Sprintf("%d", tr.Attempts)},
			{Text: tr.Duration().Round(time.Millisecond).String()},
			{Text: truncate(tr.Error, 60)},
		})
	}
	table.Render()
}

// RenderTaskStates 按声明顺序打印当前Task状态（运行中查询用）
func RenderTaskStates(d *dag.DAG, states map[string]state.TaskState) {
	for _, id := range d.TaskIDs() {
		s := states[id]
		stateColor(s).Printf("  %s %-30s %s\n", StateSymbol(s), id, s)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
