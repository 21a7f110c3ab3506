package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"snowball/internal/config"
	"snowball/internal/util"
)

// geminiPart Gemini 内容片段
type geminiPart struct {
	Text string `json:"text"`
}

// geminiContent Gemini 对话轮次
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" 或 "model"
	Parts []geminiPart `json:"parts"`
}

// geminiGenerationConfig 生成参数
type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// geminiRequest generateContent 请求结构
type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

// geminiResponse generateContent 响应结构
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiProvider Google Gemini 提供商。
// REST 接口本身无状态，对话历史在客户端维护（等价于 SDK 的 chat session）。
type GeminiProvider struct {
	client            *RetryableAPIClient
	model             string
	systemInstruction string

	mu      sync.Mutex
	history []geminiContent
}

// NewGeminiProvider 创建 Gemini 提供商
func NewGeminiProvider(cfg *config.AppConfig) (Provider, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, util.NewError(util.ErrCodeAPIKeyMissing, "请先配置 Gemini API Key。")
	}

	baseURL := cfg.Gemini.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := cfg.Gemini.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client := NewRetryableAPIClient(baseURL, providerTimeout(cfg), cfg.Provider.Retries, time.Second)
	// Gemini API 使用 x-goog-api-key header 进行认证
	client.SetHeader("x-goog-api-key", cfg.Gemini.APIKey)

	util.Debugw("Gemini 提供商创建成功", map[string]interface{}{
		"model":    model,
		"base_url": baseURL,
	})

	return &GeminiProvider{
		client:            client,
		model:             model,
		systemInstruction: SystemInstructionOr(cfg.Persona.SystemInstruction),
	}, nil
}

// Send 发送消息并返回归一化回复，对话历史随调用累积
func (p *GeminiProvider) Send(ctx context.Context, query string) (*Reply, error) {
	p.mu.Lock()
	contents := make([]geminiContent, len(p.history), len(p.history)+1)
	copy(contents, p.history)
	p.mu.Unlock()

	userTurn := geminiContent{Role: "user", Parts: []geminiPart{{Text: query}}}
	contents = append(contents, userTurn)

	request := &geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: p.systemInstruction}}},
		Contents:          contents,
		GenerationConfig:  &geminiGenerationConfig{Temperature: 0.7},
	}

	var response geminiResponse
	endpoint := fmt.Sprintf("models/%s:generateContent", p.model)
	if err := p.client.PostJSONWithRetry(ctx, endpoint, request, &response); err != nil {
		return nil, p.mapError(err)
	}

	text := responseText(&response)
	if text == "" {
		return &Reply{Text: "小雪宝正在思考..."}, nil
	}

	p.mu.Lock()
	p.history = append(p.history, userTurn,
		geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}})
	p.mu.Unlock()

	return &Reply{Text: text}, nil
}

// TestConnection 测试连通性，不使用也不影响对话历史
func (p *GeminiProvider) TestConnection(ctx context.Context) (string, error) {
	request := &geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: "Hello"}}},
		},
	}
	endpoint := fmt.Sprintf("models/%s:generateContent", p.model)
	if err := p.client.PostJSON(ctx, endpoint, request, nil); err != nil {
		return "", testFailure(err)
	}
	return "Gemini 连接成功！", nil
}

// GenerateJSON 生成结构化JSON输出
func (p *GeminiProvider) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	request := &geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{ResponseMimeType: "application/json"},
	}

	var response geminiResponse
	endpoint := fmt.Sprintf("models/%s:generateContent", p.model)
	if err := p.client.PostJSONWithRetry(ctx, endpoint, request, &response); err != nil {
		return "", p.mapError(err)
	}

	return responseText(&response), nil
}

// Kind 返回提供商类型
func (p *GeminiProvider) Kind() ProviderKind {
	return KindGemini
}

// ResetSession 清空客户端维护的对话历史
func (p *GeminiProvider) ResetSession() {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}

// mapError 将传输层错误转为带展示文案的应用错误
func (p *GeminiProvider) mapError(err error) error {
	if ue, ok := err.(*UpstreamError); ok {
		code := util.ErrCodeAPIRequestFailed
		if ue.StatusCode == 401 || ue.StatusCode == 403 {
			code = util.ErrCodeAuthFailed
		}
		return util.NewError(code, fmt.Sprintf("Gemini API Error: %d %s", ue.StatusCode, ue.Message))
	}
	return err
}

// responseText 拼接首个候选回复的所有文本片段
func responseText(response *geminiResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}
