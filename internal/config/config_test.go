package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.toml")

	configContent := `
[provider]
active = "dify-chat"
timeout = 30

[dify]
api_key = "test_dify_key"
base_url = "https://dify.example.com/v1"

[persona]
voice_tone = "cute"

[logging]
level = "debug"
format = "json"
output = "stdout"
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("创建测试配置文件失败: %v", err)
	}

	// 测试加载配置
	err = LoadConfig(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	// 验证配置值
	if Config.Provider.Active != "dify-chat" {
		t.Errorf("期望活跃提供商为 'dify-chat'，实际为 '%s'", Config.Provider.Active)
	}

	if Config.Provider.Timeout != 30 {
		t.Errorf("期望超时时间为 30，实际为 %d", Config.Provider.Timeout)
	}

	if Config.Dify.APIKey != "test_dify_key" {
		t.Errorf("期望Dify密钥为 'test_dify_key'，实际为 '%s'", Config.Dify.APIKey)
	}

	if Config.Persona.VoiceTone != "cute" {
		t.Errorf("期望语音音色为 'cute'，实际为 '%s'", Config.Persona.VoiceTone)
	}

	if Config.Logging.Level != "debug" {
		t.Errorf("期望日志级别为 'debug'，实际为 '%s'", Config.Logging.Level)
	}

	// 未配置的部分应补齐缺省值
	if Config.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("期望Gemini缺省模型为 'gemini-2.5-flash'，实际为 '%s'", Config.Gemini.Model)
	}

	if Config.OpenAI.BaseURL != "https://api.deepseek.com/v1" {
		t.Errorf("期望OpenAI缺省地址为 'https://api.deepseek.com/v1'，实际为 '%s'", Config.OpenAI.BaseURL)
	}
}

func TestLoadConfigInvalidProvider(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_config.toml")

	configContent := `
[provider]
active = "unknown"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("创建测试配置文件失败: %v", err)
	}

	if err := LoadConfig(configPath); err == nil {
		t.Error("期望未知提供商类型导致验证失败")
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sub", "config.toml")

	if err := LoadConfig(configPath); err != nil {
		t.Fatalf("期望自动创建默认配置文件，实际失败: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("期望默认配置文件已写入: %v", err)
	}

	if Config.Provider.Active != "gemini" {
		t.Errorf("期望默认提供商为 'gemini'，实际为 '%s'", Config.Provider.Active)
	}
}

func TestProviderFingerprint(t *testing.T) {
	base := &AppConfig{}
	base.Provider.Active = "dify-chat"
	base.Dify.APIKey = "key-a"
	base.Dify.BaseURL = "https://api.dify.ai/v1"

	same := *base
	if base.ProviderFingerprint() != same.ProviderFingerprint() {
		t.Error("期望相同配置产生相同标识串")
	}

	changedKey := *base
	changedKey.Dify.APIKey = "key-b"
	if base.ProviderFingerprint() == changedKey.ProviderFingerprint() {
		t.Error("期望API密钥变化产生不同标识串")
	}

	changedKind := *base
	changedKind.Provider.Active = "dify-workflow"
	if base.ProviderFingerprint() == changedKind.ProviderFingerprint() {
		t.Error("期望提供商类型变化产生不同标识串")
	}

	// 与当前提供商无关的字段不应影响标识串
	changedOther := *base
	changedOther.OpenAI.APIKey = "irrelevant"
	if base.ProviderFingerprint() != changedOther.ProviderFingerprint() {
		t.Error("期望无关字段变化不影响标识串")
	}
}
