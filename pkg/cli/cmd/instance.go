package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LENAX/process-engine/pkg/cli/output"
	"github.com/LENAX/process-engine/pkg/core/entity"
	"github.com/LENAX/process-engine/pkg/core/runtime"
)

var (
	startDefinitionID  string
	startDefinitionKey string
	startBusinessKey   string
	startTenantID      string
	deleteReason       string
	deleteCascade      bool
)

// instanceCmd instance子命令
var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "流程实例管理命令",
	Long:  `管理流程实例，包括启动、查看执行树和级联删除。`,
}

// instanceStartCmd 启动流程实例
var instanceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动流程实例",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			output.Error("装配引擎失败: %v", err)
			return err
		}
		defer eng.Close()

		pi, err := eng.StartProcessInstance(context.Background(), runtime.CreateProcessInstanceRequest{
			ProcessDefinitionID:  startDefinitionID,
			ProcessDefinitionKey: startDefinitionKey,
			BusinessKey:          startBusinessKey,
			TenantID:             startTenantID,
		})
		if err != nil {
			output.Error("启动流程实例失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(map[string]any{
				"id":           pi.ID,
				"definitionId": pi.ProcessDefinitionID,
				"businessKey":  pi.BusinessKey,
				"startTime":    pi.StartTime,
			})
		}
		output.Success("流程实例已启动: %s", pi.ID)
		return nil
	},
}

// instanceTreeCmd 查看执行树
var instanceTreeCmd = &cobra.Command{
	Use:   "tree <instance-id>",
	Short: "查看流程实例的执行树",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			output.Error("装配引擎失败: %v", err)
			return err
		}
		defer eng.Close()

		root, err := eng.GetExecutionTree(context.Background(), args[0])
		if err != nil {
			output.Error("加载执行树失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(treeToMap(root))
		}

		table := output.NewTable([]string{"EXECUTION_ID", "ACTIVITY", "ACTIVE", "SCOPE", "PARENT"})
		walkTree(root, func(e *entity.Execution, depth int) {
			indent := strings.Repeat("  ", depth)
			table.AddRow([]string{
				indent + e.ID,
				e.ActivityID,
				fmt.Sprintf("%t", e.IsActive),
				fmt.Sprintf("%t", e.IsScope),
				e.ParentID,
			})
		})
		table.Render()
		return nil
	},
}

// instanceDeleteCmd 删除流程实例
var instanceDeleteCmd = &cobra.Command{
	Use:   "delete <instance-id>",
	Short: "删除流程实例（--cascade时级联删除整棵树）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			output.Error("装配引擎失败: %v", err)
			return err
		}
		defer eng.Close()

		if err := eng.DeleteProcessInstance(context.Background(), args[0], deleteReason, deleteCascade); err != nil {
			output.Error("删除流程实例失败: %v", err)
			return err
		}
		output.Success("流程实例已删除: %s", args[0])
		return nil
	},
}

func init() {
	instanceStartCmd.Flags().StringVar(&startDefinitionID, "definition", "", "流程定义ID")
	instanceStartCmd.Flags().StringVar(&startDefinitionKey, "key", "", "流程定义Key")
	instanceStartCmd.Flags().StringVar(&startBusinessKey, "business-key", "", "业务Key")
	instanceStartCmd.Flags().StringVar(&startTenantID, "tenant", "", "租户ID")

	instanceDeleteCmd.Flags().StringVar(&deleteReason, "reason", "", "删除原因")
	instanceDeleteCmd.Flags().BoolVar(&deleteCascade, "cascade", false, "级联删除整棵执行树及子流程实例")

	instanceCmd.AddCommand(instanceStartCmd)
	instanceCmd.AddCommand(instanceTreeCmd)
	instanceCmd.AddCommand(instanceDeleteCmd)
}

// walkTree 深度优先遍历执行树
func walkTree(e *entity.Execution, fn func(e *entity.Execution, depth int)) {
	var walk func(cur *entity.Execution, depth int)
	walk = func(cur *entity.Execution, depth int) {
		fn(cur, depth)
		for _, child := range cur.Children() {
			walk(child, depth+1)
		}
		if sub := cur.SubProcessInstance(); sub != nil {
			walk(sub, depth+1)
		}
	}
	walk(e, 0)
}

// treeToMap 执行树转为可序列化结构
func treeToMap(e *entity.Execution) map[string]any {
	children := make([]map[string]any, 0, len(e.Children()))
	for _, child := range e.Children() {
		children = append(children, treeToMap(child))
	}
	node := map[string]any{
		"id":         e.ID,
		"activityId": e.ActivityID,
		"isActive":   e.IsActive,
		"isScope":    e.IsScope,
		"children":   children,
	}
	if sub := e.SubProcessInstance(); sub != nil {
		node["subProcessInstance"] = treeToMap(sub)
	}
	return node
}
