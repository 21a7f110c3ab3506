package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowball/internal/config"
	"snowball/internal/llm"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置管理",
	Long:  "管理小雪宝的配置文件和设置",
}

// configShowCmd represents the show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示当前配置",
	Run: func(cmd *cobra.Command, args []string) {
		showConfig()
	},
}

// configInitCmd represents the init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "生成默认配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, created, err := config.InitDefaultConfig(configPath)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("已创建默认配置文件: %s\n", path)
		} else {
			fmt.Printf("配置文件已存在: %s\n", path)
		}
		return nil
	},
}

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "列出支持的模型供应商",
	Run: func(cmd *cobra.Command, args []string) {
		active := config.GetConfig().Provider.Active
		for _, kind := range llm.SupportedKinds() {
			marker := "  "
			if string(kind) == active {
				marker = "* "
			}
			fmt.Printf("%s%-15s %s\n", marker, kind, llm.KindDescription(kind))
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(providersCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// showConfig 显示当前配置，密钥打码
func showConfig() {
	cfg := config.GetConfig()

	fmt.Println("=== 供应商 ===")
	fmt.Printf("活跃供应商: %s\n", cfg.Provider.Active)
	fmt.Printf("请求超时: %d 秒   网络重试: %d 次\n", cfg.Provider.Timeout, cfg.Provider.Retries)

	fmt.Println("\n=== Gemini ===")
	fmt.Printf("API密钥: %s\n", maskKey(cfg.Gemini.APIKey))
	fmt.Printf("模型: %s\n", cfg.Gemini.Model)
	fmt.Printf("通话模型: %s\n", cfg.Gemini.LiveModel)

	fmt.Println("\n=== OpenAI 兼容 ===")
	fmt.Printf("API密钥: %s\n", maskKey(cfg.OpenAI.APIKey))
	fmt.Printf("接口地址: %s\n", cfg.OpenAI.BaseURL)
	fmt.Printf("模型: %s\n", cfg.OpenAI.Model)

	fmt.Println("\n=== 硅基流动 ===")
	fmt.Printf("API密钥: %s\n", maskKey(cfg.SiliconFlow.APIKey))
	fmt.Printf("模型: %s\n", cfg.SiliconFlow.Model)

	fmt.Println("\n=== Dify ===")
	fmt.Printf("API密钥: %s\n", maskKey(cfg.Dify.APIKey))
	fmt.Printf("接口地址: %s\n", cfg.Dify.BaseURL)

	fmt.Println("\n=== 人设 ===")
	if cfg.Persona.SystemInstruction == "" {
		fmt.Println("系统提示词: (内置小雪宝人设)")
	} else {
		fmt.Printf("系统提示词: %d 字符（自定义）\n", len(cfg.Persona.SystemInstruction))
	}
	fmt.Printf("语音音色: %s\n", cfg.Persona.VoiceTone)

	fmt.Println("\n=== MCP ===")
	if cfg.MCP.Endpoint == "" {
		fmt.Println("接入方式: stdio")
	} else {
		fmt.Printf("接入方式: %s\n", cfg.MCP.Endpoint)
	}

	fmt.Println("\n=== 日志 ===")
	fmt.Printf("级别: %s   格式: %s   输出: %s\n",
		cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
}

// maskKey 打码展示密钥
func maskKey(key string) string {
	if key == "" {
		return "(未设置)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
