package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"snowball/internal/util"
)

// 纳入画像分析的最近对话条数
const maxHistoryEntries = 20

// 生成画像所需的最少对话条数
const minHistoryEntries = 3

// UserProfile AI 生成的用户成长档案
type UserProfile struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Advice  string   `json:"advice"`
}

// HistoryEntry 对话历史中的一条记录
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// JSONGenerator 能生成结构化JSON输出的提供商。
// Dify 类提供商不支持该能力。
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Generate 基于对话历史生成用户成长档案。
// 历史不足或提供商不支持结构化输出时返回 (nil, nil)。
func Generate(ctx context.Context, generator interface{}, history []HistoryEntry) (*UserProfile, error) {
	if len(history) < minHistoryEntries {
		return nil, nil
	}

	jsonGen, ok := generator.(JSONGenerator)
	if !ok {
		return nil, nil
	}

	prompt := buildProfilePrompt(history)
	resultText, err := jsonGen.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resultText = stripJSONFences(resultText)

	var profile UserProfile
	if err := json.Unmarshal([]byte(resultText), &profile); err != nil {
		util.Warnw("档案JSON解析失败", map[string]interface{}{
			"raw": resultText,
		})
		return nil, util.WrapError(util.ErrCodeProfileParseFailed, "档案生成结果不是有效的JSON", err)
	}

	return &profile, nil
}

// buildProfilePrompt 构造画像生成提示词，只取最近的对话
func buildProfilePrompt(history []HistoryEntry) string {
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}

	var lines []string
	for _, entry := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", entry.Sender, entry.Text))
	}
	recentChats := strings.Join(lines, "\n")

	return fmt.Sprintf(`基于以下对话历史，生成一个简单的用户画像 JSON。
包含:
- summary (一句话总结用户当前状态/情绪，30字以内)
- tags (3-5个关键词标签，如"焦虑", "喜爱画画", "发烧中")
- advice (一条给家属或患儿的简短建议，50字以内)

对话历史:
%s

请严格仅返回 JSON 格式，不要包含 markdown 格式化 (如 `+"```json"+` )。
格式: { "summary": "...", "tags": ["..."], "advice": "..." }`, recentChats)
}

// stripJSONFences 去掉模型偶尔附带的 markdown 代码围栏
func stripJSONFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
