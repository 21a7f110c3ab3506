package llm

import (
	"context"
	"fmt"
	"time"

	"snowball/internal/config"
	"snowball/internal/util"
)

// chatMessage OpenAI 兼容接口的消息结构
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest OpenAI 兼容接口的请求结构
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

// chatResponseFormat 结构化输出格式声明
type chatResponseFormat struct {
	Type string `json:"type"`
}

// chatCompletionResponse OpenAI 兼容接口的响应结构
type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// chatCompletionCore OpenAI 兼容提供商的共用实现。
// OpenAI/DeepSeek 与硅基流动走同一套 Chat Completions 协议，
// 只在端点、默认模型和错误前缀上有差异。
type chatCompletionCore struct {
	client            *RetryableAPIClient
	model             string
	systemInstruction string
	errPrefix         string // 如 "OpenAI API Error"
}

// send 发送一轮 system+user 对话，返回助手文本
func (c *chatCompletionCore) send(ctx context.Context, query string) (string, error) {
	request := &chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemInstruction},
			{Role: "user", Content: query},
		},
		Temperature: 0.7,
	}

	var response chatCompletionResponse
	if err := c.client.PostJSONWithRetry(ctx, "", request, &response); err != nil {
		return "", c.mapError(err)
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "收到空回复", nil
	}
	return response.Choices[0].Message.Content, nil
}

// generateJSON 请求结构化JSON输出（用于成长档案生成）
func (c *chatCompletionCore) generateJSON(ctx context.Context, prompt string) (string, error) {
	request := &chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	var response chatCompletionResponse
	if err := c.client.PostJSONWithRetry(ctx, "", request, &response); err != nil {
		return "", c.mapError(err)
	}

	if len(response.Choices) == 0 {
		return "", util.NewError(util.ErrCodeInvalidResponse, "上游未返回任何候选回复")
	}
	return response.Choices[0].Message.Content, nil
}

// ping 发送最小测试请求验证连通性
func (c *chatCompletionCore) ping(ctx context.Context) error {
	request := &chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: "ping"},
		},
		MaxTokens: 5,
	}
	return c.client.PostJSON(ctx, "", request, nil)
}

// mapError 将传输层错误转为带展示文案的应用错误
func (c *chatCompletionCore) mapError(err error) error {
	if ue, ok := err.(*UpstreamError); ok {
		code := util.ErrCodeAPIRequestFailed
		if ue.StatusCode == 401 {
			code = util.ErrCodeAuthFailed
		}
		return util.NewError(code, fmt.Sprintf("%s: %d %s", c.errPrefix, ue.StatusCode, ue.Message))
	}
	return err
}

// OpenAIProvider OpenAI 兼容提供商（DeepSeek 等）
type OpenAIProvider struct {
	core chatCompletionCore
}

// NewOpenAIProvider 创建 OpenAI 兼容提供商
func NewOpenAIProvider(cfg *config.AppConfig) (Provider, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, util.NewError(util.ErrCodeAPIKeyMissing, "请先配置 OpenAI/DeepSeek API 信息。")
	}

	baseURL := trimTrailingSlash(cfg.OpenAI.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}

	model := cfg.OpenAI.Model
	if model == "" {
		model = "deepseek-chat"
	}

	client := NewRetryableAPIClient(baseURL+"/chat/completions",
		providerTimeout(cfg), cfg.Provider.Retries, time.Second)
	client.SetHeader("Authorization", "Bearer "+cfg.OpenAI.APIKey)

	util.Debugw("OpenAI 提供商创建成功", map[string]interface{}{
		"model":    model,
		"base_url": baseURL,
	})

	return &OpenAIProvider{
		core: chatCompletionCore{
			client:            client,
			model:             model,
			systemInstruction: SystemInstructionOr(cfg.Persona.SystemInstruction),
			errPrefix:         "OpenAI API Error",
		},
	}, nil
}

// Send 发送消息并返回归一化回复
func (p *OpenAIProvider) Send(ctx context.Context, query string) (*Reply, error) {
	text, err := p.core.send(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: text}, nil
}

// TestConnection 测试连通性
func (p *OpenAIProvider) TestConnection(ctx context.Context) (string, error) {
	if err := p.core.ping(ctx); err != nil {
		return "", testFailure(err)
	}
	return "OpenAI 接口连接成功！", nil
}

// GenerateJSON 生成结构化JSON输出
func (p *OpenAIProvider) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return p.core.generateJSON(ctx, prompt)
}

// Kind 返回提供商类型
func (p *OpenAIProvider) Kind() ProviderKind {
	return KindOpenAI
}

// providerTimeout 从配置取请求超时
func providerTimeout(cfg *config.AppConfig) time.Duration {
	if cfg.Provider.Timeout > 0 {
		return time.Duration(cfg.Provider.Timeout) * time.Second
	}
	return 60 * time.Second
}

// trimTrailingSlash 去除URL末尾的斜杠
func trimTrailingSlash(url string) string {
	for len(url) > 0 && url[len(url)-1] == '/' {
		url = url[:len(url)-1]
	}
	return url
}

// testFailure 将连接测试错误统一为 "连接失败: ..." 展示文案
func testFailure(err error) error {
	switch e := err.(type) {
	case *UpstreamError:
		code := util.ErrCodeAPIRequestFailed
		if e.StatusCode == 401 {
			code = util.ErrCodeAuthFailed
		}
		return util.NewError(code, fmt.Sprintf("连接失败: %d %s", e.StatusCode, e.Message))
	case *util.AppError:
		return util.NewError(e.Code, "连接失败: "+e.Message)
	default:
		return util.NewError(util.ErrCodeNetworkFailed, "连接失败: "+err.Error())
	}
}
