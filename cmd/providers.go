package cmd

import (
	"fmt"

	"snowball/internal/llm"
	"snowball/internal/util"
)

// RegisterProviders 显式注册所有支持的模型供应商工厂。
// 供应商实例由路由按当前配置懒构造，这里只登记构造方式。
func RegisterProviders() error {
	util.Debug("开始注册模型供应商...")

	if err := llm.RegisterProviderFactory(llm.KindGemini,
		"Google Gemini (REST)", llm.NewGeminiProvider); err != nil {
		return fmt.Errorf("无法注册 gemini 供应商工厂: %v", err)
	}
	util.Debug("Gemini 供应商已注册")

	if err := llm.RegisterProviderFactory(llm.KindOpenAI,
		"OpenAI 兼容接口 (默认 DeepSeek)", llm.NewOpenAIProvider); err != nil {
		return fmt.Errorf("无法注册 openai 供应商工厂: %v", err)
	}
	util.Debug("OpenAI 供应商已注册")

	if err := llm.RegisterProviderFactory(llm.KindSiliconFlow,
		"硅基流动 (SiliconFlow)", llm.NewSiliconFlowProvider); err != nil {
		return fmt.Errorf("无法注册 siliconflow 供应商工厂: %v", err)
	}
	util.Debug("硅基流动供应商已注册")

	if err := llm.RegisterProviderFactory(llm.KindDifyChat,
		"Dify 聊天助手应用", llm.NewDifyChatProvider); err != nil {
		return fmt.Errorf("无法注册 dify-chat 供应商工厂: %v", err)
	}
	util.Debug("Dify Chat 供应商已注册")

	if err := llm.RegisterProviderFactory(llm.KindDifyWorkflow,
		"Dify Workflow 应用", llm.NewDifyWorkflowProvider); err != nil {
		return fmt.Errorf("无法注册 dify-workflow 供应商工厂: %v", err)
	}
	util.Debug("Dify Workflow 供应商已注册")

	return nil
}
