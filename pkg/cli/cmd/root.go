// Package cmd 命令行命令定义。
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/LENAX/process-engine/pkg/config"
	"github.com/LENAX/process-engine/pkg/core/engine"
)

var (
	configPath string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "process-engine",
	Short: "Process Engine CLI - 流程引擎命令行工具",
	Long: `Process Engine CLI 是一个用于管理流程实例运行时状态的命令行工具。

支持的功能：
  - 启动流程实例
  - 查看执行树
  - 级联删除流程实例
  - 读写流程变量

使用示例：
  # 启动流程实例
  process-engine instance start --definition order-process

  # 查看执行树
  process-engine instance tree <instance-id>

  # 级联删除流程实例
  process-engine instance delete <instance-id> --reason "用户取消" --cascade`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "process-engine.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	rootCmd.AddCommand(instanceCmd)
	rootCmd.AddCommand(variableCmd)
	rootCmd.AddCommand(versionCmd)
}

// openEngine 按配置文件装配引擎
func openEngine() (*engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return engine.New(cfg)
}
