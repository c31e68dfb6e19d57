package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/dag-runner/internal/storage/sqldb"
	"github.com/stevelan1995/dag-runner/pkg/cli/output"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/storage"
)

var (
	historyDBType string
	historyDBDSN  string
	historyLimit  int
)

// historyCmd history子命令
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "运行历史查询命令",
	Long:  `查询持久化的DAG运行历史记录。`,
}

// historyListCmd 列出最近的运行记录
var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出最近的运行记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		records, err := repo.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(records)
		}

		if len(records) == 0 {
			output.Info("暂无运行记录")
			return nil
		}

		table := output.NewTable([]string{"RUN_ID", "DAG", "STATE", "TASKS", "SUCCESS", "DURATION", "STARTED"})
		for _, rec := range records {
			table.AddStyledRow([]output.Cell{
				{Text: rec.RunID},
				{Text: rec.DAGID},
				output.StateCell(state.TaskState(rec.State)),
				{Text: fmt.Sprintf("%d", rec.TaskCount)},
				{Text: fmt.Sprintf("%.0f%%", rec.SuccessRate*100)},
				{Text: fmt.Sprintf("%dms", rec.DurationMS)},
				{Text: rec.StartTime.Local().Format("2006-01-02 15:04:05")},
			})
		}
		table.Render()
		return nil
	},
}

// historyShowCmd 查看某次运行的详情
var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "查看某次运行的详情",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openHistory()
		if err != nil {
			return err
		}
		defer repo.Close()

		run, err := repo.GetRun(cmd.Context(), args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}
		tasks, err := repo.ListTaskRuns(cmd.Context(), args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(map[string]interface{}{
				"run":   run,
				"tasks": tasks,
			})
		}

		fmt.Printf("RunID:  %s\n", run.RunID)
		fmt.Printf("DAG:    %s\n", run.DAGID)
		fmt.Printf("状态:   %s\n", run.State)
		fmt.Printf("耗时:   %dms\n", run.DurationMS)
		fmt.Printf("成功率: %.0f%%\n", run.SuccessRate*100)
		fmt.Println("\nTasks:")

		table := output.NewTable([]string{"TASK", "STATE", "ATTEMPTS", "DURATION", "ERROR"})
		for _, t := range tasks {
			table.AddStyledRow([]output.Cell{
				{Text: t.TaskID},
				output.StateCell(state.TaskState(t.State)),
				{Text: fmt.Sprintf("%d", t.Attempts)},
				{Text: fmt.Sprintf("%dms", t.DurationMS)},
				{Text: t.Error},
			})
		}
		table.Render()
		return nil
	},
}

// openHistory 打开历史存储（内部方法）
func openHistory() (storage.RunRepository, error) {
	repo, err := sqldb.Open(sqldb.Options{Type: historyDBType, DSN: historyDBDSN})
	if err != nil {
		output.Error("打开历史存储失败: %v", err)
		return nil, err
	}
	return repo, nil
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBType, "db-type", "sqlite", "历史存储类型: sqlite/mysql/postgres")
	historyCmd.PersistentFlags().StringVar(&historyDBDSN, "db", "dag_runner.db", "历史存储DSN（sqlite为文件路径）")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "返回的记录条数")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
