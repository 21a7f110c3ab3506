package llm

import (
	"context"
	"fmt"
	"sync"

	"snowball/internal/config"
	"snowball/internal/util"
)

// Router 对话路由。
// 按当前配置懒构造活跃提供商，配置标识串变化时重建并丢弃会话状态，
// 并把所有失败归一化为可直接展示的纯文本。
type Router struct {
	mu          sync.Mutex
	configFn    func() *config.AppConfig
	fingerprint string
	provider    Provider
}

// NewRouter 创建使用全局配置的路由
func NewRouter() *Router {
	return NewRouterWith(config.GetConfig)
}

// NewRouterWith 创建使用指定配置源的路由
func NewRouterWith(configFn func() *config.AppConfig) *Router {
	return &Router{configFn: configFn}
}

// resolve 返回与当前配置匹配的提供商实例，必要时重建
func (r *Router) resolve() (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.configFn()
	if cfg == nil {
		return nil, util.NewError(util.ErrCodeConfigInvalid, "配置未初始化")
	}

	fingerprint := cfg.ProviderFingerprint()
	if r.provider != nil && r.fingerprint == fingerprint {
		return r.provider, nil
	}

	if r.provider != nil {
		util.Debugw("提供商配置已变化，正在重建", map[string]interface{}{
			"kind": cfg.Provider.Active,
		})
	}

	provider, err := NewProvider(ProviderKind(cfg.Provider.Active), cfg)
	if err != nil {
		r.provider = nil
		r.fingerprint = ""
		return nil, err
	}

	r.provider = provider
	r.fingerprint = fingerprint
	return provider, nil
}

// Send 发送消息，返回归一化回复或错误
func (r *Router) Send(ctx context.Context, query string) (*Reply, error) {
	provider, err := r.resolve()
	if err != nil {
		return nil, err
	}
	return provider.Send(ctx, query)
}

// SendAs 以指定的外部用户标识发送消息。
// 提供商不支持按用户维持会话时退回 Send。
func (r *Router) SendAs(ctx context.Context, query, user string) (*Reply, error) {
	provider, err := r.resolve()
	if err != nil {
		return nil, err
	}
	if sender, ok := provider.(UserSender); ok && user != "" {
		return sender.SendAs(ctx, query, user)
	}
	return provider.Send(ctx, query)
}

// Ask 发送消息并保证返回可展示的回复，任何失败都转为提示文本
func (r *Router) Ask(ctx context.Context, query string) *Reply {
	reply, err := r.Send(ctx, query)
	if err != nil {
		return &Reply{Text: ErrorText(err)}
	}
	return reply
}

// TestConnection 用当前配置做一次无状态连接测试
func (r *Router) TestConnection(ctx context.Context) (string, error) {
	cfg := r.configFn()
	if cfg == nil {
		return "", util.NewError(util.ErrCodeConfigInvalid, "配置未初始化")
	}

	// 测试不应污染活跃会话，这里总是新建实例
	provider, err := NewProvider(ProviderKind(cfg.Provider.Active), cfg)
	if err != nil {
		return "", err
	}
	return provider.TestConnection(ctx)
}

// Active 返回当前活跃提供商实例（懒构造）
func (r *Router) Active() (Provider, error) {
	return r.resolve()
}

// ActiveKind 返回当前配置的提供商类型
func (r *Router) ActiveKind() ProviderKind {
	cfg := r.configFn()
	if cfg == nil {
		return ""
	}
	return ProviderKind(cfg.Provider.Active)
}

// Reset 强制丢弃当前提供商实例与其会话状态
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = nil
	r.fingerprint = ""
}

// ErrorText 将任意错误转为可直接展示的纯文本。
// 应用错误使用其消息文案，未知错误与网络错误包装为连接错误提示。
func ErrorText(err error) string {
	if err == nil {
		return ""
	}

	if appErr, ok := err.(*util.AppError); ok {
		switch appErr.Code {
		case util.ErrCodeNetworkFailed, util.ErrCodeContextCanceled:
			detail := appErr.Message
			if appErr.Cause != nil {
				detail = appErr.Cause.Error()
			}
			return fmt.Sprintf("(网络连接错误: %s)", detail)
		default:
			return appErr.Message
		}
	}

	return fmt.Sprintf("(网络连接错误: %s)", err.Error())
}
