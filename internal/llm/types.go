package llm

import (
	"context"

	"snowball/internal/config"
)

// ProviderKind 提供商类型
type ProviderKind string

const (
	KindGemini       ProviderKind = "gemini"
	KindOpenAI       ProviderKind = "openai"
	KindSiliconFlow  ProviderKind = "siliconflow"
	KindDifyChat     ProviderKind = "dify-chat"
	KindDifyWorkflow ProviderKind = "dify-workflow"
)

// ImageRef 回复中引用的一张图片
type ImageRef struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Reply 一次对话调用的归一化结果。
// Text 永远是可直接展示的纯文本，Images 为附带图片（按出现顺序、URL去重）。
type Reply struct {
	Text   string     `json:"text"`
	Images []ImageRef `json:"images,omitempty"`
}

// Provider 定义了与上游模型服务交互的统一接口
type Provider interface {
	// Send 发送一条用户消息并返回归一化回复
	Send(ctx context.Context, query string) (*Reply, error)

	// TestConnection 测试连通性，成功时返回中文提示语
	TestConnection(ctx context.Context) (string, error)

	// Kind 返回提供商类型
	Kind() ProviderKind
}

// UserSender 支持以外部用户标识发送并按用户维持会话的提供商
type UserSender interface {
	SendAs(ctx context.Context, query, user string) (*Reply, error)
}

// ProviderFactory 提供商工厂函数类型
type ProviderFactory func(cfg *config.AppConfig) (Provider, error)
