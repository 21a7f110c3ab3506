package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"snowball/internal/config"
	"snowball/internal/util"
)

// 会话失效自动恢复前的等待时间
const difyRetryDelay = 200 * time.Millisecond

// difyChatRequest /chat-messages 请求体
type difyChatRequest struct {
	Inputs           map[string]string `json:"inputs"`
	Query            string            `json:"query"`
	ResponseMode     string            `json:"response_mode"`
	User             string            `json:"user"`
	ConversationID   string            `json:"conversation_id,omitempty"`
	AutoGenerateName bool              `json:"auto_generate_name"`
}

// difyWorkflowRequest /workflows/run 请求体
type difyWorkflowRequest struct {
	Inputs       map[string]string `json:"inputs"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

// difyFile Dify 响应中的文件对象
type difyFile struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// difyChatResponse /chat-messages 阻塞模式响应
type difyChatResponse struct {
	ConversationID string     `json:"conversation_id"`
	Answer         string     `json:"answer"`
	Files          []difyFile `json:"files"`
}

// difyWorkflowResponse /workflows/run 阻塞模式响应
type difyWorkflowResponse struct {
	Data struct {
		Outputs map[string]interface{} `json:"outputs"`
	} `json:"data"`
}

// DifyProvider Dify 提供商，支持聊天助手与 Workflow 两种应用类型。
// 聊天模式下按用户标识分别持有 conversation_id，
// 会话失效时自动清除并重试一次。
type DifyProvider struct {
	client   *RetryableAPIClient
	workflow bool

	mu sync.Mutex
	// conversations 键为外部用户标识，默认会话的键为空串
	conversations map[string]string
}

// NewDifyChatProvider 创建 Dify 聊天助手提供商
func NewDifyChatProvider(cfg *config.AppConfig) (Provider, error) {
	return newDifyProvider(cfg, false)
}

// NewDifyWorkflowProvider 创建 Dify Workflow 提供商
func NewDifyWorkflowProvider(cfg *config.AppConfig) (Provider, error) {
	return newDifyProvider(cfg, true)
}

func newDifyProvider(cfg *config.AppConfig, workflow bool) (Provider, error) {
	if cfg.Dify.APIKey == "" || cfg.Dify.BaseURL == "" {
		return nil, util.NewError(util.ErrCodeAPIKeyMissing, "请先配置 Dify API 信息。")
	}

	client := NewRetryableAPIClient(trimTrailingSlash(cfg.Dify.BaseURL),
		providerTimeout(cfg), cfg.Provider.Retries, time.Second)
	client.SetHeader("Authorization", "Bearer "+cfg.Dify.APIKey)

	util.Debugw("Dify 提供商创建成功", map[string]interface{}{
		"base_url": cfg.Dify.BaseURL,
		"workflow": workflow,
	})

	return &DifyProvider{
		client:        client,
		workflow:      workflow,
		conversations: make(map[string]string),
	}, nil
}

// Send 发送消息并返回归一化回复。
// Dify 的业务失败（认证、类型不匹配等）以提示文本作为回复返回，
// 只有纯网络错误才作为 error 上抛。
func (p *DifyProvider) Send(ctx context.Context, query string) (*Reply, error) {
	return p.send(ctx, query, "", false)
}

// SendAs 以指定的外部用户标识发送，按用户分别维持会话
func (p *DifyProvider) SendAs(ctx context.Context, query, user string) (*Reply, error) {
	return p.send(ctx, query, user, false)
}

func (p *DifyProvider) send(ctx context.Context, query, user string, isRetry bool) (*Reply, error) {
	wireUser := user
	if wireUser == "" {
		wireUser = p.defaultUserID()
	}

	if p.workflow {
		return p.sendWorkflow(ctx, query, wireUser)
	}
	return p.sendChat(ctx, query, wireUser, user, isRetry)
}

// sendChat 聊天助手模式，slot 为会话归属的用户标识
func (p *DifyProvider) sendChat(ctx context.Context, query, wireUser, slot string, isRetry bool) (*Reply, error) {
	request := &difyChatRequest{
		Inputs:           map[string]string{},
		Query:            query,
		ResponseMode:     "blocking",
		User:             wireUser,
		ConversationID:   p.currentConversation(slot),
		AutoGenerateName: false,
	}

	var response difyChatResponse
	if err := p.client.PostJSONWithRetry(ctx, "chat-messages", request, &response); err != nil {
		ue, ok := err.(*UpstreamError)
		if !ok {
			return nil, err
		}

		// 会话失效自动恢复：清除过期ID，稍候重试一次
		if p.isStaleConversation(ue) {
			util.Warnw("Dify 会话已失效，正在重置", map[string]interface{}{
				"status": ue.StatusCode,
				"code":   ue.Code,
			})
			p.setConversation(slot, "")
			if !isRetry {
				select {
				case <-ctx.Done():
					return nil, util.WrapError(util.ErrCodeContextCanceled, "request context canceled", ctx.Err())
				case <-time.After(difyRetryDelay):
				}
				return p.send(ctx, query, slot, true)
			}
		}

		return &Reply{Text: p.failureText(ue)}, nil
	}

	if response.ConversationID != "" {
		p.setConversation(slot, response.ConversationID)
	}

	images := NewImageSet()
	for _, f := range response.Files {
		if f.Type == "image" && f.URL != "" {
			images.Add(f.URL, f.Name)
		}
	}

	return p.assembleReply(response.Answer, images), nil
}

// sendWorkflow Workflow 模式
func (p *DifyProvider) sendWorkflow(ctx context.Context, query, user string) (*Reply, error) {
	request := &difyWorkflowRequest{
		// 覆盖常见的开始节点变量名，避免编排差异导致入参丢失
		Inputs: map[string]string{
			"query":    query,
			"text":     query,
			"input":    query,
			"question": query,
		},
		ResponseMode: "blocking",
		User:         user,
	}

	var response difyWorkflowResponse
	if err := p.client.PostJSONWithRetry(ctx, "workflows/run", request, &response); err != nil {
		ue, ok := err.(*UpstreamError)
		if !ok {
			return nil, err
		}
		return &Reply{Text: p.failureText(ue)}, nil
	}

	outputs := response.Data.Outputs
	text := workflowOutputText(outputs)

	images := NewImageSet()
	images.AddAll(CollectImages(outputs))

	if text == "" && len(outputs) == 0 {
		text = "Workflow 执行成功，但未返回任何 Output 变量。"
	}

	return p.assembleReply(text, images), nil
}

// TestConnection 测试连通性，不使用也不影响会话状态
func (p *DifyProvider) TestConnection(ctx context.Context) (string, error) {
	var err error
	if p.workflow {
		request := &difyWorkflowRequest{
			Inputs:       map[string]string{"query": "ping", "text": "ping"},
			ResponseMode: "blocking",
			User:         "test-user",
		}
		err = p.client.PostJSON(ctx, "workflows/run", request, nil)
	} else {
		request := &difyChatRequest{
			Inputs:           map[string]string{},
			Query:            "ping",
			ResponseMode:     "blocking",
			User:             "test-connection-user",
			AutoGenerateName: false,
		}
		err = p.client.PostJSON(ctx, "chat-messages", request, nil)
	}

	if err == nil {
		if p.workflow {
			return "Dify Workflow 连接成功！", nil
		}
		return "Dify Chat 连接成功！", nil
	}

	if ue, ok := err.(*UpstreamError); ok {
		appType := "Chat"
		if p.workflow {
			appType = "Workflow"
		}
		switch {
		case ue.StatusCode == 401:
			return "", util.NewError(util.ErrCodeAuthFailed,
				"鉴权失败(401)。请检查密钥与应用类型("+appType+")是否匹配。")
		case ue.Code == "not_workflow_app":
			return "", util.NewError(util.ErrCodeAppTypeMismatch,
				"模式不匹配(400): 您的应用不是 Workflow 类型。请切换为 [聊天助手 (Chat)] 模式。")
		case ue.StatusCode == 404:
			return "", util.NewError(util.ErrCodeAPIRequestFailed,
				"接口未找到(404)。请检查 Base URL 或应用类型是否正确。")
		}
	}
	return "", testFailure(err)
}

// Kind 返回提供商类型
func (p *DifyProvider) Kind() ProviderKind {
	if p.workflow {
		return KindDifyWorkflow
	}
	return KindDifyChat
}

// ResetSession 清除持有的全部 conversation_id
func (p *DifyProvider) ResetSession() {
	p.mu.Lock()
	p.conversations = make(map[string]string)
	p.mu.Unlock()
}

// assembleReply 为回复补全图片标注并兜底空内容
func (p *DifyProvider) assembleReply(text string, images *ImageSet) *Reply {
	refs := images.List()
	text = AnnotateImages(text, refs)
	if text == "" {
		text = "Dify 没有返回内容"
	}
	return &Reply{Text: text, Images: refs}
}

// failureText 将上游业务失败转为展示给用户的提示文本
func (p *DifyProvider) failureText(ue *UpstreamError) string {
	if ue.StatusCode == 401 {
		appType := "Chat App"
		if p.workflow {
			appType = "Workflow"
		}
		return "Dify 认证失败 (401)。请检查您的 API Key 类型是否为 [" + appType + "]。"
	}

	if ue.Code == "not_workflow_app" {
		return "配置错误：您的 Dify 应用不支持 Workflow API。请在个人中心将 Dify 模式切换为 [聊天助手 (Chat)] 模式。"
	}

	return "Dify 连接失败: " + ue.Message
}

// isStaleConversation 判断是否为会话失效错误（仅聊天模式会触发）
func (p *DifyProvider) isStaleConversation(ue *UpstreamError) bool {
	if p.workflow {
		return false
	}
	if ue.Code == "conversation_not_exists" {
		return true
	}
	if containsConversationNotExists(ue.Message) {
		return true
	}
	return ue.StatusCode == 404
}

// containsConversationNotExists 匹配 Dify 的会话失效消息
func containsConversationNotExists(message string) bool {
	return strings.Contains(message, "Conversation Not Exists")
}

// currentConversation 读取指定用户的 conversation_id
func (p *DifyProvider) currentConversation(slot string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conversations[slot]
}

// setConversation 更新指定用户的 conversation_id
func (p *DifyProvider) setConversation(slot, id string) {
	p.mu.Lock()
	p.conversations[slot] = id
	p.mu.Unlock()
}

// defaultUserID 构造默认会话的用户标识，绑定当前会话
func (p *DifyProvider) defaultUserID() string {
	conv := p.currentConversation("")
	if conv == "" {
		conv = "default"
	}
	return "snowball-user-" + conv
}

// workflowOutputText 从 Workflow 输出变量中探测主文本。
// 依次尝试 text、answer、result、content、response，
// 都未命中时，若只有一个字符串类型的输出变量则直接采用。
func workflowOutputText(outputs map[string]interface{}) string {
	for _, key := range []string{"text", "answer", "result", "content", "response"} {
		v, ok := outputs[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr {
			if s != "" {
				return s
			}
			continue
		}
		if isFalsy(v) {
			continue
		}
		return safeStringify(v)
	}

	if len(outputs) == 1 {
		for _, v := range outputs {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}

	return ""
}

// isFalsy 模拟上游约定里空值不作为输出的语义
func isFalsy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return !val
	case float64:
		return val == 0
	default:
		return false
	}
}
