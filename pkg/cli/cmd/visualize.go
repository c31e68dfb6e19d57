package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/dag-runner/pkg/cli/output"
	"github.com/stevelan1995/dag-runner/pkg/config"
)

var visualizeStyle string

// visualizeCmd 可视化DAG结构
var visualizeCmd = &cobra.Command{
	Use:   "visualize <config-file>",
	Short: "展示DAG结构",
	Long: `以文本形式展示DAG的依赖结构。

示例：
  # 按执行层级展示（同层可并行）
  dag-runner visualize ./pipeline.json

  # 以依赖树形式展示
  dag-runner visualize ./pipeline.json --style tree`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := config.Load(args[0])
		if err != nil {
			output.Error("加载配置失败: %v", err)
			return err
		}

		if err := d.Validate(); err != nil {
			output.Error("DAG结构无效: %v", err)
			return err
		}

		switch visualizeStyle {
		case "levels":
			return output.RenderLevels(d)
		case "tree":
			return output.RenderTree(d)
		default:
			return fmt.Errorf("不支持的展示样式: %s（支持levels/tree）", visualizeStyle)
		}
	},
}

func init() {
	visualizeCmd.Flags().StringVarP(&visualizeStyle, "style", "s", "levels", "展示样式: levels/tree")

	rootCmd.AddCommand(visualizeCmd)
}
