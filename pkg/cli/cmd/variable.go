package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/LENAX/process-engine/pkg/cli/output"
)

// variableCmd variable子命令
var variableCmd = &cobra.Command{
	Use:   "variable",
	Short: "流程变量管理命令",
	Long:  `沿作用域链读写流程变量。`,
}

// variableGetCmd 读取变量
var variableGetCmd = &cobra.Command{
	Use:   "get <execution-id> <name>",
	Short: "沿作用域链读取变量",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			output.Error("装配引擎失败: %v", err)
			return err
		}
		defer eng.Close()

		value, found, err := eng.GetVariable(context.Background(), args[0], args[1])
		if err != nil {
			output.Error("读取变量失败: %v", err)
			return err
		}
		if !found {
			output.Warning("变量不存在: %s", args[1])
			return nil
		}
		return output.PrintJSON(map[string]any{"name": args[1], "value": value})
	},
}

// variableSetCmd 设置变量
// 值按JSON解析，解析失败时按原始字符串处理。
var variableSetCmd = &cobra.Command{
	Use:   "set <execution-id> <name> <value>",
	Short: "在执行的作用域链上设置变量",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			output.Error("装配引擎失败: %v", err)
			return err
		}
		defer eng.Close()

		var value any
		if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
			value = args[2]
		}

		if err := eng.SetVariable(context.Background(), args[0], args[1], value); err != nil {
			output.Error("设置变量失败: %v", err)
			return err
		}
		output.Success("变量已设置: %s", args[1])
		return nil
	},
}

func init() {
	variableCmd.AddCommand(variableGetCmd)
	variableCmd.AddCommand(variableSetCmd)
}
