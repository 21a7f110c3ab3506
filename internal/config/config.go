package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// 全局配置实例
var Config *AppConfig

// 应用配置结构
type AppConfig struct {
	Provider    ProviderConfig    `toml:"provider"`
	Gemini      GeminiConfig      `toml:"gemini"`
	OpenAI      OpenAIConfig      `toml:"openai"`
	SiliconFlow SiliconFlowConfig `toml:"siliconflow"`
	Dify        DifyConfig        `toml:"dify"`
	Persona     PersonaConfig     `toml:"persona"`
	MCP         MCPConfig         `toml:"mcp"`
	Logging     LoggingConfig     `toml:"logging"`
}

// 提供商配置
type ProviderConfig struct {
	Active  string `toml:"active"`  // gemini, openai, siliconflow, dify-chat, dify-workflow
	Timeout int    `toml:"timeout"` // 超时时间（秒）
	Retries int    `toml:"retries"` // 网络失败时的重试次数
}

// Gemini配置
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	LiveModel string `toml:"live_model"` // 语音通话模型
}

// OpenAI兼容接口配置
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// 硅基流动配置
type SiliconFlowConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// Dify配置，应用类型由 provider.active 决定（dify-chat / dify-workflow）
type DifyConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// 人设配置
type PersonaConfig struct {
	SystemInstruction string `toml:"system_instruction"` // 留空使用内置小雪宝人设
	VoiceTone         string `toml:"voice_tone"`         // standard, cute, deep, gentle
}

// MCP桥接配置
type MCPConfig struct {
	Endpoint string `toml:"endpoint"` // ws:// 接入点，留空使用 stdio
}

// 日志配置
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
	Output string `toml:"output"` // stdout, stderr, file
	File   string `toml:"file"`   // 日志文件路径
}

// 支持的提供商类型
var supportedProviders = []string{"gemini", "openai", "siliconflow", "dify-chat", "dify-workflow"}

// 加载配置文件
func LoadConfig(configPath string) error {
	// 如果没有指定配置文件路径，使用默认路径
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// 检查配置文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// 创建默认配置文件
		if err := createDefaultConfig(configPath); err != nil {
			return fmt.Errorf("创建默认配置文件失败: %w", err)
		}
		fmt.Fprintf(os.Stderr, "已创建默认配置文件: %s\n", configPath)
	}

	// 解析TOML配置文件
	var config AppConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 使用环境变量覆盖配置
	overrideWithEnv(&config)

	// 补齐缺省值
	applyDefaults(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	// 设置全局配置
	Config = &config
	return nil
}

// 获取默认配置文件路径
func getDefaultConfigPath() string {
	// 优先使用当前目录下的config.toml
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}

	// 使用用户主目录下的配置文件
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}

	return filepath.Join(homeDir, ".snowball", "config.toml")
}

// 创建默认配置文件
func createDefaultConfig(configPath string) error {
	// 确保目录存在
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 默认配置内容
	defaultConfig := `# 小雪宝配置文件

[provider]
active = "gemini"
timeout = 60
retries = 1

[gemini]
api_key = "${GEMINI_API_KEY}"
base_url = "https://generativelanguage.googleapis.com/v1beta"
model = "gemini-2.5-flash"
live_model = "gemini-2.5-flash-native-audio-preview-09-2025"

[openai]
api_key = ""
base_url = "https://api.deepseek.com/v1"
model = "deepseek-chat"

[siliconflow]
api_key = ""
model = "deepseek-ai/DeepSeek-V3"

[dify]
api_key = ""
base_url = "https://api.dify.ai/v1"

[persona]
system_instruction = ""
voice_tone = "standard"

[mcp]
endpoint = ""

[logging]
level = "info"
format = "text"
output = "stderr"
file = ""
`

	return os.WriteFile(configPath, []byte(defaultConfig), 0644)
}

// 使用环境变量覆盖配置
func overrideWithEnv(config *AppConfig) {
	if v := os.Getenv("SNOWBALL_PROVIDER"); v != "" {
		config.Provider.Active = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		config.OpenAI.BaseURL = v
	}
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		config.SiliconFlow.APIKey = v
	}
	if v := os.Getenv("DIFY_API_KEY"); v != "" {
		config.Dify.APIKey = v
	}
	if v := os.Getenv("DIFY_BASE_URL"); v != "" {
		config.Dify.BaseURL = v
	}
	if v := os.Getenv("SNOWBALL_MCP_ENDPOINT"); v != "" {
		config.MCP.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// applyDefaults 为留空的配置项补齐缺省值
func applyDefaults(config *AppConfig) {
	if config.Provider.Active == "" {
		config.Provider.Active = "gemini"
	}
	if config.Provider.Timeout <= 0 {
		config.Provider.Timeout = 60
	}
	if config.Gemini.BaseURL == "" {
		config.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.Gemini.Model == "" {
		config.Gemini.Model = "gemini-2.5-flash"
	}
	if config.Gemini.LiveModel == "" {
		config.Gemini.LiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	}
	if config.OpenAI.BaseURL == "" {
		config.OpenAI.BaseURL = "https://api.deepseek.com/v1"
	}
	if config.OpenAI.Model == "" {
		config.OpenAI.Model = "deepseek-chat"
	}
	if config.SiliconFlow.Model == "" {
		config.SiliconFlow.Model = "deepseek-ai/DeepSeek-V3"
	}
	if config.Dify.BaseURL == "" {
		config.Dify.BaseURL = "https://api.dify.ai/v1"
	}
	if config.Persona.VoiceTone == "" {
		config.Persona.VoiceTone = "standard"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stderr"
	}
}

// 验证配置
func validateConfig(config *AppConfig) error {
	providerValid := false
	for _, p := range supportedProviders {
		if config.Provider.Active == p {
			providerValid = true
			break
		}
	}
	if !providerValid {
		return fmt.Errorf("不支持的提供商类型: %s（可选: %s）",
			config.Provider.Active, strings.Join(supportedProviders, ", "))
	}

	validTones := []string{"standard", "cute", "deep", "gentle"}
	toneValid := false
	for _, tone := range validTones {
		if config.Persona.VoiceTone == tone {
			toneValid = true
			break
		}
	}
	if !toneValid {
		return fmt.Errorf("无效的语音音色: %s", config.Persona.VoiceTone)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("无效的日志级别: %s", config.Logging.Level)
	}

	return nil
}

// InitDefaultConfig 在指定路径生成默认配置文件，路径为空时使用默认路径。
// 返回最终路径与是否新建，已存在的文件不会被覆盖。
func InitDefaultConfig(configPath string) (string, bool, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}
	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	}
	if err := createDefaultConfig(configPath); err != nil {
		return "", false, fmt.Errorf("创建默认配置文件失败: %w", err)
	}
	return configPath, true, nil
}

// 获取当前配置
func GetConfig() *AppConfig {
	return Config
}

// SupportedProviders 返回支持的提供商类型列表
func SupportedProviders() []string {
	out := make([]string, len(supportedProviders))
	copy(out, supportedProviders)
	return out
}

// ProviderFingerprint 返回当前提供商配置的标识串。
// 标识串变化意味着会话状态（如 Dify conversation_id）必须重建。
func (c *AppConfig) ProviderFingerprint() string {
	parts := []string{c.Provider.Active, c.Persona.SystemInstruction}
	switch c.Provider.Active {
	case "gemini":
		parts = append(parts, c.Gemini.APIKey, c.Gemini.BaseURL, c.Gemini.Model)
	case "openai":
		parts = append(parts, c.OpenAI.APIKey, c.OpenAI.BaseURL, c.OpenAI.Model)
	case "siliconflow":
		parts = append(parts, c.SiliconFlow.APIKey, c.SiliconFlow.Model)
	case "dify-chat", "dify-workflow":
		parts = append(parts, c.Dify.APIKey, c.Dify.BaseURL)
	}
	return strings.Join(parts, "\x1f")
}
