package mcp

import (
	"context"
	"fmt"

	"snowball/internal/util"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// WebSocketClientTransport 以 WebSocket 客户端身份接入对端的 MCP 传输。
// 小智侧是 WebSocket 服务器，所以这里反向拨号。
type WebSocketClientTransport struct {
	url    string
	dialer *websocket.Dialer
}

// NewWebSocketClientTransport 创建 WebSocket 客户端传输
func NewWebSocketClientTransport(url string) *WebSocketClientTransport {
	return &WebSocketClientTransport{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

// Connect 建立 WebSocket 连接
func (t *WebSocketClientTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, util.WrapErrorWithDetails(util.ErrCodeMCPConnectionFailed,
			"连接MCP接入点失败", err, fmt.Sprintf("endpoint: %s", t.url))
	}

	util.Infow("已连接MCP接入点", map[string]interface{}{"endpoint": t.url})
	return &wsConnection{conn: conn}, nil
}

// wsConnection WebSocket 上的一条 MCP 连接
type wsConnection struct {
	conn *websocket.Conn
}

// Read 读取一条 JSON-RPC 消息
func (c *wsConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	message, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		util.Warnw("解析MCP消息失败", map[string]interface{}{"error": err})
		return nil, err
	}
	return message, nil
}

// Write 发送一条 JSON-RPC 消息
func (c *wsConnection) Write(ctx context.Context, message jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(message)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close 关闭连接
func (c *wsConnection) Close() error {
	return c.conn.Close()
}

// SessionID 返回会话标识
func (c *wsConnection) SessionID() string {
	return c.conn.LocalAddr().String()
}
