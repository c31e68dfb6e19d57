package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/dag-runner/internal/storage/sqldb"
	"github.com/stevelan1995/dag-runner/pkg/cli/output"
	"github.com/stevelan1995/dag-runner/pkg/config"
	"github.com/stevelan1995/dag-runner/pkg/core/runner"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
	"github.com/stevelan1995/dag-runner/pkg/events"
)

var (
	runMaxWorkers    int
	runExecutionMode string
	runFailFast      bool
	runWatch         bool
	runDBType        string
	runDBDSN         string
)

// runCmd 执行DAG
var runCmd = &cobra.Command{
	Use:   "run <config-file>",
	Short: "执行DAG配置文件",
	Long: `加载DAG配置文件并执行其中的所有Task。

示例：
  # 执行配置文件
  dag-runner run ./pipeline.json

  # 覆盖最大并发并开启快速失败
  dag-runner run ./pipeline.yaml --max-workers 8 --fail-fast

  # 执行并把运行历史写入SQLite
  dag-runner run ./pipeline.json --db ./history.db

  # 实时打印Task状态变化
  dag-runner run ./pipeline.json --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadFile(args[0])
		if err != nil {
			output.Error("加载配置失败: %v", err)
			return err
		}

		// 命令行参数覆盖配置文件
		if runMaxWorkers > 0 {
			cfg.MaxWorkers = runMaxWorkers
		}
		if runExecutionMode != "" {
			cfg.ExecutionMode = runExecutionMode
		}

		d, err := config.Parse(cfg)
		if err != nil {
			output.Error("解析配置失败: %v", err)
			return err
		}

		registry := task.NewFunctionRegistry()
		task.RegisterBuiltins(registry)
		if err := config.ValidateFunctions(cfg, registry); err != nil {
			output.Error("函数校验失败: %v", err)
			return err
		}

		opts := runner.Options{
			Registry: registry,
			FailFast: runFailFast,
		}

		if runDBDSN != "" {
			repo, err := sqldb.Open(sqldb.Options{Type: runDBType, DSN: runDBDSN})
			if err != nil {
				output.Error("打开历史存储失败: %v", err)
				return err
			}
			defer repo.Close()
			opts.History = repo
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runWatch {
			bus := events.NewBus(false)
			defer bus.Close()
			opts.Bus = bus
			if err := watchTaskEvents(ctx, bus); err != nil {
				output.Error("订阅事件失败: %v", err)
				return err
			}
		}

		r := runner.New(opts)
		result, err := r.Run(ctx, d)
		if err != nil {
			output.Error("执行失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		output.RenderRunSummary(result)
		if result.State != state.DAGStateSuccess {
			return fmt.Errorf("DAG执行失败 (RunID: %s)", result.RunID)
		}
		output.Success("DAG执行成功 (RunID: %s)", result.RunID)
		return nil
	},
}

// watchTaskEvents 订阅并实时打印Task状态变化（内部方法）
func watchTaskEvents(ctx context.Context, bus *events.Bus) error {
	ch, err := bus.SubscribeTasks(ctx)
	if err != nil {
		return err
	}
	go func() {
		for ev := range ch {
			line := fmt.Sprintf("%s %s -> %s", output.StateSymbol(ev.State), ev.TaskID, ev.State)
			if ev.Attempts > 1 {
				line += fmt.Sprintf(" (第%d次尝试)", ev.Attempts)
			}
			if ev.Error != "" {
				line += fmt.Sprintf(" [%s]", ev.Error)
			}
			fmt.Println(line)
		}
	}()
	return nil
}

func init() {
	runCmd.Flags().IntVarP(&runMaxWorkers, "max-workers", "w", 0, "最大并发Worker数（覆盖配置文件）")
	runCmd.Flags().StringVarP(&runExecutionMode, "execution-mode", "m", "", "执行模式: threading/multiprocessing（覆盖配置文件）")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "任一Task失败后跳过所有未开始的Task")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "实时打印Task状态变化")
	runCmd.Flags().StringVar(&runDBType, "db-type", "sqlite", "历史存储类型: sqlite/mysql/postgres")
	runCmd.Flags().StringVar(&runDBDSN, "db", "", "历史存储DSN（sqlite为文件路径，为空则不记录历史）")

	rootCmd.AddCommand(runCmd)
}
