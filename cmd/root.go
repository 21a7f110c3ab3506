package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snowball/internal/config"
	"snowball/internal/llm"
	"snowball/internal/util"
)

var (
	// configPath 是配置文件的路径
	configPath string
	// verbose 标志用于启用详细输出
	verbose bool
	// router 是全局的对话路由
	router *llm.Router
)

// rootCmd 代表没有调用子命令时的基础命令
var rootCmd = &cobra.Command{
	Use:   "snowball",
	Short: "小雪宝 - 儿童健康陪伴助手",
	Long: `小雪宝是一个面向白血病患儿的健康陪伴助手，
支持 Gemini、OpenAI、硅基流动与 Dify 多种模型供应商，
提供陪伴对话、成长档案、语音通话与 MCP 桥接能力。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeApp()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// 默认行为：显示状态信息
		showStatus()
	},
}

// Execute 将所有子命令添加到根命令并适当设置标志。
// 这是由 main.main() 调用的。它只需要对 rootCmd 调用一次。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "命令执行失败: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认: $SNOWBALL_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出")
}

// initializeApp 初始化应用
func initializeApp() error {
	// 1. 处理配置文件路径
	if configPath == "" {
		configPath = os.Getenv("SNOWBALL_CONFIG")
	}

	// 2. 加载配置文件
	if err := config.LoadConfig(configPath); err != nil {
		return util.WrapError(util.ErrCodeConfigInvalid, "配置加载失败", err)
	}

	// 3. 根据verbose标志调整日志级别
	logLevel := config.Config.Logging.Level
	if verbose {
		logLevel = "debug"
	}

	// 4. 初始化日志系统
	if err := util.InitLogger(logLevel, config.Config.Logging.Format,
		config.Config.Logging.Output, config.Config.Logging.File); err != nil {
		return util.WrapError(util.ErrCodeConfigInvalid, "日志系统初始化失败", err)
	}

	util.Info("应用配置加载完成")
	util.Debugw("配置详情", map[string]interface{}{
		"provider":    config.Config.Provider.Active,
		"log_level":   logLevel,
		"config_path": configPath,
	})

	// 5. 初始化提供商注册表并注册所有提供商
	if err := llm.InitRegistry(); err != nil {
		return util.WrapError(util.ErrCodeInitializationFailed, "提供商注册表初始化失败", err)
	}
	if err := RegisterProviders(); err != nil {
		return util.WrapError(util.ErrCodeInitializationFailed, "提供商注册失败", err)
	}

	// 6. 创建对话路由，提供商实例按需懒构造
	router = llm.NewRouter()

	return nil
}

// showStatus 显示应用状态
func showStatus() {
	fmt.Println("小雪宝初始化完成")
	fmt.Printf("当前供应商: %s", config.Config.Provider.Active)
	if desc := llm.KindDescription(llm.ProviderKind(config.Config.Provider.Active)); desc != "" {
		fmt.Printf(" (%s)", desc)
	}
	fmt.Println()
	fmt.Printf("日志级别: %s\n", config.Config.Logging.Level)
	fmt.Println("\n使用 'snowball --help' 查看可用命令")
}
