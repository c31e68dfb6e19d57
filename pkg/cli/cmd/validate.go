package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stevelan1995/dag-runner/pkg/cli/output"
	"github.com/stevelan1995/dag-runner/pkg/config"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

var validateCheckFunctions bool

// validateCmd 校验配置文件
var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "校验DAG配置文件",
	Long: `校验DAG配置文件：字段完整性、依赖存在性与循环检测。

示例：
  dag-runner validate ./pipeline.json

  # 同时校验function类型Task引用的函数是否已注册
  dag-runner validate ./pipeline.json --check-functions`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ReadFile(args[0])
		if err != nil {
			output.Error("加载配置失败: %v", err)
			return err
		}

		d, err := config.Parse(cfg)
		if err != nil {
			output.Error("配置无效: %v", err)
			return err
		}

		if err := d.Validate(); err != nil {
			output.Error("DAG结构无效: %v", err)
			return err
		}

		if validateCheckFunctions {
			registry := task.NewFunctionRegistry()
			task.RegisterBuiltins(registry)
			if err := config.ValidateFunctions(cfg, registry); err != nil {
				output.Error("函数校验失败: %v", err)
				return err
			}
		}

		output.Success("配置有效: %s (%d个Task)", d.ID, d.Len())
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateCheckFunctions, "check-functions", false, "校验function类型Task引用的函数")

	rootCmd.AddCommand(validateCmd)
}
