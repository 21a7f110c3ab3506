package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"snowball/internal/config"
	"snowball/internal/llm"
	"snowball/internal/util"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// consultParams consult_snowball 工具的入参
type consultParams struct {
	// Query 用户关于医疗建议、陪伴或图片生成的问题
	Query string `json:"query"`
	// UserID 维持对话上下文的用户标识，可选
	UserID string `json:"user_id,omitempty"`
}

// consultResult consult_snowball 工具的出参
type consultResult struct {
	Text string `json:"text"`
}

// Bridge 将小雪宝暴露为 MCP 工具，供小智等外部智能体调用
type Bridge struct {
	router  *llm.Router
	fetcher *ImageFetcher
}

// NewBridge 创建 MCP 桥接
func NewBridge(router *llm.Router) *Bridge {
	return &Bridge{
		router:  router,
		fetcher: NewImageFetcher(30 * time.Second),
	}
}

// Consult 处理一次咨询：取回回复文本并下载其中引用的图片。
// userID 透传给提供商，支持按用户维持会话的提供商据此分别保存上下文。
func (b *Bridge) Consult(ctx context.Context, query, userID string) (string, []*FetchedImage, error) {
	if userID == "" {
		userID = "mcp-default-user"
	}
	util.Infow("收到MCP咨询请求", map[string]interface{}{
		"user_id":   userID,
		"query_len": len(query),
	})

	reply, err := b.router.SendAs(ctx, query, userID)
	if err != nil {
		return "", nil, err
	}

	images := b.fetcher.FetchAll(ctx, CollectReplyImageURLs(reply))
	return reply.Text, images, nil
}

// NewServer 构造注册了 consult_snowball 工具的 MCP 服务器
func (b *Bridge) NewServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "Little Snowball (LeukemiaPal)",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "consult_snowball",
		Description: "向儿童健康陪伴助手小雪宝咨询医疗知识、寻求陪伴或请求示意图。",
	}, b.handleConsult)

	return server
}

// handleConsult consult_snowball 工具处理函数
func (b *Bridge) handleConsult(ctx context.Context, req *mcp.CallToolRequest, in consultParams) (*mcp.CallToolResult, consultResult, error) {
	text, images, err := b.Consult(ctx, in.Query, in.UserID)
	if err != nil {
		util.Errorw("MCP咨询处理失败", map[string]interface{}{"error": err})
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Error consulting Snowball: %s", llm.ErrorText(err))},
			},
			IsError: true,
		}, consultResult{}, nil
	}

	var content []mcp.Content
	if text != "" {
		content = append(content, &mcp.TextContent{Text: text})
	}
	for _, image := range images {
		content = append(content, &mcp.ImageContent{
			Data:     image.Data,
			MIMEType: image.MIMEType,
		})
	}

	return &mcp.CallToolResult{Content: content}, consultResult{Text: text}, nil
}

// Run 启动 MCP 服务，按配置选择接入方式。
// endpoint 为 ws:// 地址时作为客户端接入小智，否则走标准输入输出。
func (b *Bridge) Run(ctx context.Context, cfg *config.AppConfig) error {
	server := b.NewServer()

	endpoint := cfg.MCP.Endpoint
	if strings.HasPrefix(endpoint, "ws") {
		util.Infow("MCP桥接经WebSocket接入", map[string]interface{}{
			"endpoint": endpoint,
		})
		transport := NewWebSocketClientTransport(endpoint)
		if err := server.Run(ctx, transport); err != nil {
			return util.WrapError(util.ErrCodeMCPConnectionFailed, "MCP WebSocket 会话失败", err)
		}
		return nil
	}

	util.Infow("MCP桥接经Stdio运行", nil)
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		return util.WrapError(util.ErrCodeMCPConnectionFailed, "MCP Stdio 会话失败", err)
	}
	return nil
}
