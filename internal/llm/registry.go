package llm

import (
	"fmt"
	"sort"
	"sync"

	"snowball/internal/config"
	"snowball/internal/util"
	"snowball/pkg/registry"
)

const (
	// ProviderRegistryKey 是提供商注册表在中央服务中的键名
	ProviderRegistryKey = "providers"
)

// providerEntry 提供商注册表项，实现 RegistryItem 接口
type providerEntry struct {
	kind        ProviderKind
	description string
	factory     ProviderFactory
}

// ID 返回注册表项的唯一标识符
func (e *providerEntry) ID() string {
	return string(e.kind)
}

// Name 返回注册表项的名称
func (e *providerEntry) Name() string {
	return string(e.kind)
}

// Type 返回注册表项的类型
func (e *providerEntry) Type() string {
	return "provider"
}

// --- 全局注册表实例 ---
var (
	providerRegistry registry.Registry[*providerEntry]
	providerMutex    sync.RWMutex
)

// InitRegistry 初始化提供商注册表
func InitRegistry() error {
	providerMutex.Lock()
	defer providerMutex.Unlock()

	if providerRegistry != nil {
		return nil // 已经初始化
	}

	regService := util.GetRegistryService()
	reg := registry.NewRegistry[*providerEntry]()
	if err := regService.Register(ProviderRegistryKey, reg); err != nil {
		// 注册失败（键已存在）时复用现有实例
		if instance, ok := regService.Get(ProviderRegistryKey); ok {
			if existing, ok := instance.(registry.Registry[*providerEntry]); ok {
				providerRegistry = existing
				return nil
			}
			return fmt.Errorf("提供商注册表类型断言失败")
		}
		return fmt.Errorf("初始化或获取提供商注册表失败: %v", err)
	}

	providerRegistry = reg
	return nil
}

// getRegistry 获取提供商注册表实例
func getRegistry() (registry.Registry[*providerEntry], error) {
	providerMutex.RLock()
	defer providerMutex.RUnlock()

	if providerRegistry == nil {
		return nil, util.NewError(util.ErrCodeInternalErr, "提供商注册表未初始化")
	}
	return providerRegistry, nil
}

// RegisterProviderFactory 注册提供商工厂函数
func RegisterProviderFactory(kind ProviderKind, description string, factory ProviderFactory) error {
	reg, err := getRegistry()
	if err != nil {
		return err
	}

	if kind == "" {
		return util.NewError(util.ErrCodeInvalidParam, "provider kind cannot be empty")
	}
	if factory == nil {
		return util.NewError(util.ErrCodeInvalidParam, "provider factory cannot be nil")
	}

	return reg.Register(&providerEntry{
		kind:        kind,
		description: description,
		factory:     factory,
	})
}

// NewProvider 按类型创建提供商实例
func NewProvider(kind ProviderKind, cfg *config.AppConfig) (Provider, error) {
	reg, err := getRegistry()
	if err != nil {
		return nil, err
	}

	entry, exists := reg.Get(string(kind))
	if !exists || entry.factory == nil {
		return nil, util.NewErrorWithDetails(util.ErrCodeProviderNotSupported,
			"配置错误：未知的模型供应商。", fmt.Sprintf("kind: %s", kind))
	}

	provider, err := entry.factory(cfg)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// SupportedKinds 列出所有已注册的提供商类型
func SupportedKinds() []ProviderKind {
	reg, err := getRegistry()
	if err != nil {
		return nil
	}

	var kinds []ProviderKind
	for _, entry := range reg.List() {
		kinds = append(kinds, entry.kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// KindDescription 返回提供商类型的说明文案
func KindDescription(kind ProviderKind) string {
	reg, err := getRegistry()
	if err != nil {
		return ""
	}
	if entry, exists := reg.Get(string(kind)); exists {
		return entry.description
	}
	return ""
}
