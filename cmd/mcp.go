package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"snowball/internal/config"
	"snowball/internal/mcp"
	"snowball/internal/util"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "以MCP工具方式对外提供小雪宝",
	Long: `把小雪宝暴露为 Model Context Protocol 工具 consult_snowball，
供小智音箱等外部智能体调用。
配置 mcp.endpoint 为 ws:// 地址时作为客户端接入，留空则走标准输入输出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := config.GetConfig()
		if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
			cfg.MCP.Endpoint = endpoint
		}

		bridge := mcp.NewBridge(router)
		if err := bridge.Run(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				util.Info("MCP桥接已停止")
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	mcpCmd.Flags().String("endpoint", "", "ws:// 接入点，覆盖配置文件中的 mcp.endpoint")
	rootCmd.AddCommand(mcpCmd)
}
