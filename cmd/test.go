package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snowball/internal/config"
	"snowball/internal/llm"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "测试当前供应商的连接",
	Long:  "用当前配置向活跃供应商发送一次最小请求，验证密钥与应用类型是否正确。",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		fmt.Printf("正在测试 %s 的连接...\n", cfg.Provider.Active)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := router.TestConnection(ctx)
		if err != nil {
			fmt.Printf("❌ %s\n", llm.ErrorText(err))
			return nil
		}

		fmt.Printf("✅ %s\n", result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
