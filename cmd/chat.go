package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"snowball/internal/chat"
	"snowball/internal/llm"
	"snowball/internal/profile"
	"snowball/internal/util"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "和小雪宝开始陪伴对话",
	Long: `启动交互式陪伴对话界面。
小雪宝会记录勇气星与成就，偶尔模拟突发状况来练习应对，
对话结束后根据聊天内容更新成长档案。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		util.Info("正在启动陪伴对话...")

		store, err := profile.NewStore()
		if err != nil {
			return err
		}

		session, err := chat.NewSession(router, store)
		if err != nil {
			return err
		}

		if err := chat.RunChat(session); err != nil {
			return err
		}

		// 留存本次对话历史，供 profile generate 离线重新生成档案
		if err := store.SaveHistory(session.History()); err != nil {
			util.Warnw("保存对话历史失败", map[string]interface{}{"error": err})
		}

		// 对话结束后静默更新成长档案，历史太短或供应商不支持时自动跳过
		updateProfile(session, store)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// updateProfile 根据本次对话历史生成并保存成长档案
func updateProfile(session *chat.Session, store *profile.Store) {
	provider, err := router.Active()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	generated, err := profile.Generate(ctx, provider, session.History())
	if err != nil {
		util.Warnw("生成成长档案失败", map[string]interface{}{"error": llm.ErrorText(err)})
		return
	}
	if generated == nil {
		return
	}

	if err := store.SaveProfile(generated); err != nil {
		util.Warnw("保存成长档案失败", map[string]interface{}{"error": err})
		return
	}
	util.Infow("成长档案已更新", map[string]interface{}{"summary": generated.Summary})
}
