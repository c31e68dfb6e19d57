package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Cell 表格单元格，Color为nil时按默认样式输出
type Cell struct {
	Text  string
	Color *color.Color
}

// Table 简单表格输出，支持按单元格着色（运行状态列用）
type Table struct {
	headers []string
	rows    [][]Cell
	widths  []int
}

// NewTable 创建表格
func NewTable(headers []string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		headers: headers,
		rows:    make([][]Cell, 0),
		widths:  widths,
	}
}

// AddRow 添加纯文本行
func (t *Table) AddRow(row []string) {
	cells := make([]Cell, len(row))
	for i, text := range row {
		cells[i] = Cell{Text: text}
	}
	t.AddStyledRow(cells)
}

// AddStyledRow 添加带样式的行
func (t *Table) AddStyledRow(row []Cell) {
	// 更新列宽
	for i, cell := range row {
		if i < len(t.widths) && len(cell.Text) > t.widths[i] {
			t.widths[i] = len(cell.Text)
		}
	}
	t.rows = append(t.rows, row)
}

// Render 渲染表格
func (t *Table) Render() {
	// 打印表头
	headerColor := color.New(color.FgCyan, color.Bold)
	for i, h := range t.headers {
		headerColor.Printf("%-*s  ", t.widths[i], h)
	}
	fmt.Println()

	// 打印分隔线
	for i := range t.headers {
		fmt.Print(strings.Repeat("-", t.widths[i]))
		fmt.Print("  ")
	}
	fmt.Println()

	// 打印数据行
	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(t.widths) {
				continue
			}
			if cell.Color != nil {
				cell.Color.Printf("%-*s", t.widths[i], cell.Text)
				fmt.Print("  ")
			} else {
				fmt.Printf("%-*s  ", t.widths[i], cell.Text)
			}
		}
		fmt.Println()
	}
}
