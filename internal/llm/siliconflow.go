package llm

import (
	"context"
	"time"

	"snowball/internal/config"
	"snowball/internal/util"
)

// 硅基流动的固定接入点，不可配置
const siliconFlowEndpoint = "https://api.siliconflow.cn/v1/chat/completions"

// SiliconFlowProvider 硅基流动提供商，复用 Chat Completions 协议
type SiliconFlowProvider struct {
	core chatCompletionCore
}

// NewSiliconFlowProvider 创建硅基流动提供商
func NewSiliconFlowProvider(cfg *config.AppConfig) (Provider, error) {
	if cfg.SiliconFlow.APIKey == "" {
		return nil, util.NewError(util.ErrCodeAPIKeyMissing, "请先配置硅基流动 (SiliconFlow) API 信息。")
	}

	model := cfg.SiliconFlow.Model
	if model == "" {
		model = "deepseek-ai/DeepSeek-V3"
	}

	client := NewRetryableAPIClient(siliconFlowEndpoint,
		providerTimeout(cfg), cfg.Provider.Retries, time.Second)
	client.SetHeader("Authorization", "Bearer "+cfg.SiliconFlow.APIKey)

	util.Debugw("硅基流动提供商创建成功", map[string]interface{}{
		"model": model,
	})

	return &SiliconFlowProvider{
		core: chatCompletionCore{
			client:            client,
			model:             model,
			systemInstruction: SystemInstructionOr(cfg.Persona.SystemInstruction),
			errPrefix:         "SiliconFlow API Error",
		},
	}, nil
}

// Send 发送消息并返回归一化回复
func (p *SiliconFlowProvider) Send(ctx context.Context, query string) (*Reply, error) {
	text, err := p.core.send(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: text}, nil
}

// TestConnection 测试连通性
func (p *SiliconFlowProvider) TestConnection(ctx context.Context) (string, error) {
	if err := p.core.ping(ctx); err != nil {
		return "", testFailure(err)
	}
	return "硅基流动 (SiliconFlow) 连接成功！", nil
}

// GenerateJSON 生成结构化JSON输出
func (p *SiliconFlowProvider) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return p.core.generateJSON(ctx, prompt)
}

// Kind 返回提供商类型
func (p *SiliconFlowProvider) Kind() ProviderKind {
	return KindSiliconFlow
}
