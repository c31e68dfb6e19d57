package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version 构建时通过ldflags注入
var Version = "dev"

var outputJSON bool

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "dag-runner",
	Short: "单机DAG任务执行引擎",
	Long: `dag-runner 在单机上按依赖顺序并发执行DAG中的Task。

支持JSON/YAML配置文件、依赖驱动调度、重试退避、超时控制、
失败跳过传播以及运行历史持久化。`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令（对外导出）
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "以JSON格式输出")
}
