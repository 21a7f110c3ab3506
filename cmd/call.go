package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"snowball/internal/call"
	"snowball/internal/config"
	"snowball/internal/llm"
)

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call",
	Short: "和小雪宝语音通话",
	Long: `与小雪宝建立实时语音通话。
音色由配置中的 persona.voice_tone 决定，Ctrl+C 挂断。
通话功能目前仅支持 Gemini 模型。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		dialer, err := call.DialerFor(cfg.Provider.Active, cfg.Gemini.APIKey)
		if err != nil {
			fmt.Println(llm.ErrorText(err))
			return nil
		}

		session := call.NewSession(dialer, func(state call.State) {
			switch state {
			case call.StateConnecting:
				fmt.Println("📞 正在接通小雪宝...")
			case call.StateActive:
				fmt.Println("📞 通话已接通，Ctrl+C 挂断")
			case call.StateEnded:
				fmt.Println("📞 通话结束")
			case call.StateError:
				fmt.Println("📞 通话出错")
			}
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err = session.Start(ctx, cfg)
		duration := session.End()
		fmt.Printf("通话时长 %s\n", call.FormatDuration(duration))

		if err != nil && ctx.Err() == nil {
			fmt.Println(llm.ErrorText(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
}
