package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snowball/internal/config"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [问题...]",
	Short: "向小雪宝提一个问题",
	Long:  "一次性提问，不进入交互界面。回复中引用的图片会以链接形式列出。",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")

		timeout := 2 * time.Minute
		if cfg := config.GetConfig(); cfg != nil && cfg.Provider.Timeout > 0 {
			timeout = time.Duration(cfg.Provider.Timeout) * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		reply := router.Ask(ctx, question)
		fmt.Println(reply.Text)
		for _, image := range reply.Images {
			fmt.Printf("🖼️  %s (%s)\n", image.URL, image.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
