package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snowball/internal/profile"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "查看成长档案",
	Long: `展示小雪宝为孩子维护的成长数据与健康档案。
档案在每次陪伴对话结束后根据聊天内容自动更新。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profile.NewStore()
		if err != nil {
			return err
		}

		stats, err := store.LoadStats()
		if err != nil {
			return err
		}

		fmt.Println("=== 成长数据 ===")
		fmt.Printf("⭐ 勇气星: %d\n", stats.Stars)
		fmt.Printf("等级: Lv.%d   连续打卡: %d 天\n", stats.Level, stats.Streak)

		fmt.Println("\n=== 成就 ===")
		for _, achievement := range profile.Achievements() {
			marker := "🔒"
			if stats.HasUnlocked(achievement.ID) {
				marker = "🏆"
			}
			fmt.Printf("%s %s - %s\n", marker, achievement.Title, achievement.Description)
		}

		saved, err := store.LoadProfile()
		if err != nil {
			return err
		}
		if saved == nil {
			fmt.Println("\n还没有生成健康档案，先和小雪宝聊几句吧。")
			return nil
		}

		fmt.Println("\n=== 健康档案 ===")
		fmt.Printf("概况: %s\n", saved.Summary)
		if len(saved.Tags) > 0 {
			fmt.Printf("关注点: %s\n", strings.Join(saved.Tags, "、"))
		}
		fmt.Printf("建议: %s\n", saved.Advice)
		return nil
	},
}

// profileGenerateCmd represents the generate command
var profileGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "根据最近一次对话重新生成健康档案",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profile.NewStore()
		if err != nil {
			return err
		}

		history, err := store.LoadHistory()
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("还没有对话记录，先和小雪宝聊几句吧。")
			return nil
		}

		provider, err := router.Active()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		generated, err := profile.Generate(ctx, provider, history)
		if err != nil {
			return err
		}
		if generated == nil {
			fmt.Println("当前对话还不足以生成档案，或当前供应商不支持结构化输出。")
			return nil
		}

		if err := store.SaveProfile(generated); err != nil {
			return err
		}

		fmt.Println("✅ 健康档案已更新")
		fmt.Printf("概况: %s\n", generated.Summary)
		if len(generated.Tags) > 0 {
			fmt.Printf("关注点: %s\n", strings.Join(generated.Tags, "、"))
		}
		fmt.Printf("建议: %s\n", generated.Advice)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileGenerateCmd)
}
