package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"snowball/internal/config"
)

// geminiTestConfig 构造指向测试服务器的 Gemini 配置
func geminiTestConfig(baseURL string) *config.AppConfig {
	return &config.AppConfig{
		Provider: config.ProviderConfig{Active: "gemini", Timeout: 5},
		Gemini: config.GeminiConfig{
			APIKey:  "test-key",
			BaseURL: baseURL,
			Model:   "gemini-2.5-flash",
		},
	}
}

func geminiTextBody(text string) string {
	data, _ := json.Marshal(text)
	return `{"candidates": [{"content": {"role": "model", "parts": [{"text": ` + string(data) + `}]}}]}`
}

func TestGeminiSendKeepsHistory(t *testing.T) {
	var requests []geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		requests = append(requests, req)
		w.Write([]byte(geminiTextBody("回答" + string(rune('0'+len(requests))))))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(geminiTestConfig(server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	if _, err := provider.Send(context.Background(), "第一问"); err != nil {
		t.Fatalf("首次发送失败: %v", err)
	}
	if _, err := provider.Send(context.Background(), "第二问"); err != nil {
		t.Fatalf("二次发送失败: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("期望发出 2 次请求，实际为 %d", len(requests))
	}

	first := requests[0]
	if len(first.Contents) != 1 || first.Contents[0].Role != "user" {
		t.Errorf("期望首次请求只含一条用户消息，实际为 %v", first.Contents)
	}
	if first.SystemInstruction == nil || len(first.SystemInstruction.Parts) == 0 ||
		first.SystemInstruction.Parts[0].Text == "" {
		t.Error("期望请求携带非空系统指令")
	}

	second := requests[1]
	if len(second.Contents) != 3 {
		t.Fatalf("期望二次请求含 3 轮内容（历史user+model与新user），实际为 %d", len(second.Contents))
	}
	if second.Contents[0].Parts[0].Text != "第一问" {
		t.Errorf("期望历史首轮为 '第一问'，实际为 '%s'", second.Contents[0].Parts[0].Text)
	}
	if second.Contents[1].Role != "model" {
		t.Errorf("期望历史第二轮角色为 'model'，实际为 '%s'", second.Contents[1].Role)
	}
	if second.Contents[2].Parts[0].Text != "第二问" {
		t.Errorf("期望新一轮为 '第二问'，实际为 '%s'", second.Contents[2].Parts[0].Text)
	}
}

func TestGeminiSendEmptyCandidates(t *testing.T) {
	var requests []geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		requests = append(requests, req)
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(geminiTestConfig(server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "在吗")
	if err != nil {
		t.Fatalf("期望空候选不报错，实际错误: %v", err)
	}
	if reply.Text != "小雪宝正在思考..." {
		t.Errorf("期望占位文案为 '小雪宝正在思考...'，实际为 '%s'", reply.Text)
	}

	// 空回复不写入历史
	if _, err := provider.Send(context.Background(), "还在吗"); err != nil {
		t.Fatalf("二次发送失败: %v", err)
	}
	if len(requests[1].Contents) != 1 {
		t.Errorf("期望空回复后历史为空，二次请求应只含 1 轮，实际为 %d", len(requests[1].Contents))
	}
}

func TestGeminiTestConnection(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		w.Write([]byte(geminiTextBody("Hi there")))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(geminiTestConfig(server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	msg, err := provider.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("期望连接测试成功，实际错误: %v", err)
	}
	if msg != "Gemini 连接成功！" {
		t.Errorf("期望成功文案为 'Gemini 连接成功！'，实际为 '%s'", msg)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Parts[0].Text != "Hello" {
		t.Errorf("期望测试请求内容为 'Hello'，实际为 %v", captured.Contents)
	}
}

func TestGeminiResetSession(t *testing.T) {
	var requests []geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		requests = append(requests, req)
		w.Write([]byte(geminiTextBody("好的")))
	}))
	defer server.Close()

	provider, err := NewGeminiProvider(geminiTestConfig(server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	gemini := provider.(*GeminiProvider)
	if _, err := gemini.Send(context.Background(), "记住我"); err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	gemini.ResetSession()
	if _, err := gemini.Send(context.Background(), "我是谁"); err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	if len(requests[1].Contents) != 1 {
		t.Errorf("期望重置后历史清空，二次请求应只含 1 轮，实际为 %d", len(requests[1].Contents))
	}
}
