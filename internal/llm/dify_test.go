package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"snowball/internal/config"
	"snowball/internal/util"
)

// difyTestConfig 构造指向测试服务器的 Dify 配置
func difyTestConfig(active, baseURL string) *config.AppConfig {
	return &config.AppConfig{
		Provider: config.ProviderConfig{Active: active, Timeout: 5},
		Dify: config.DifyConfig{
			APIKey:  "app-test-key",
			BaseURL: baseURL,
		},
	}
}

func TestDifyChatConversationFlow(t *testing.T) {
	var requests []difyChatRequest
	var rawBodies []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-messages" {
			t.Errorf("期望请求路径为 '/chat-messages'，实际为 '%s'", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer app-test-key" {
			t.Errorf("期望携带 Bearer 认证头，实际为 '%s'", r.Header.Get("Authorization"))
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("读取请求体失败: %v", err)
		}
		var req difyChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		requests = append(requests, req)
		rawBodies = append(rawBodies, raw)
		w.Write([]byte(`{"conversation_id": "conv-123", "answer": "你好小朋友！"}`))
	}))
	defer server.Close()

	provider, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "你好")
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if reply.Text != "你好小朋友！" {
		t.Errorf("期望回复为 '你好小朋友！'，实际为 '%s'", reply.Text)
	}

	if _, err := provider.Send(context.Background(), "再问一句"); err != nil {
		t.Fatalf("二次发送失败: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("期望发出 2 次请求，实际为 %d", len(requests))
	}

	first := requests[0]
	if first.ConversationID != "" {
		t.Errorf("期望首次请求不带 conversation_id，实际为 '%s'", first.ConversationID)
	}
	if first.User != "snowball-user-default" {
		t.Errorf("期望首次用户标识为 'snowball-user-default'，实际为 '%s'", first.User)
	}
	if first.ResponseMode != "blocking" {
		t.Errorf("期望 response_mode 为 'blocking'，实际为 '%s'", first.ResponseMode)
	}
	if value, present := rawBodies[0]["auto_generate_name"]; !present || value != false {
		t.Errorf("期望请求体显式携带 auto_generate_name=false，实际为 %v (present=%v)", value, present)
	}

	second := requests[1]
	if second.ConversationID != "conv-123" {
		t.Errorf("期望二次请求携带 conversation_id 'conv-123'，实际为 '%s'", second.ConversationID)
	}
	if second.User != "snowball-user-conv-123" {
		t.Errorf("期望二次用户标识绑定会话，实际为 '%s'", second.User)
	}
}

func TestDifyChatSendAsThreadsUsers(t *testing.T) {
	var requests []difyChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req difyChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		requests = append(requests, req)
		// 按用户标识分配各自的会话ID
		fmt.Fprintf(w, `{"conversation_id": "conv-%s", "answer": "好"}`, req.User)
	}))
	defer server.Close()

	provider, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}
	dify := provider.(*DifyProvider)

	for _, user := range []string{"alice", "bob", "alice", "bob"} {
		if _, err := dify.SendAs(context.Background(), "你好", user); err != nil {
			t.Fatalf("用户 %s 发送失败: %v", user, err)
		}
	}

	if len(requests) != 4 {
		t.Fatalf("期望共 4 次请求，实际为 %d", len(requests))
	}

	// 用户标识原样透传到 user 字段
	if requests[0].User != "alice" || requests[1].User != "bob" {
		t.Errorf("期望用户标识透传，实际为 '%s' / '%s'", requests[0].User, requests[1].User)
	}

	// 首次请求不带会话，二次请求各自携带自己的会话ID
	if requests[0].ConversationID != "" || requests[1].ConversationID != "" {
		t.Errorf("期望各用户首次请求不带会话ID，实际为 '%s' / '%s'",
			requests[0].ConversationID, requests[1].ConversationID)
	}
	if requests[2].ConversationID != "conv-alice" {
		t.Errorf("期望 alice 二次请求携带自己的会话，实际为 '%s'", requests[2].ConversationID)
	}
	if requests[3].ConversationID != "conv-bob" {
		t.Errorf("期望 bob 二次请求携带自己的会话，实际为 '%s'", requests[3].ConversationID)
	}

	// 外部用户的会话不影响默认会话
	if _, err := dify.Send(context.Background(), "你好"); err != nil {
		t.Fatalf("默认发送失败: %v", err)
	}
	if len(requests) != 5 {
		t.Fatalf("期望共 5 次请求，实际为 %d", len(requests))
	}
	if requests[4].User != "snowball-user-default" || requests[4].ConversationID != "" {
		t.Errorf("期望默认会话独立，实际为 %+v", requests[4])
	}
}

func TestDifyChatImageFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"conversation_id": "c1",
			"answer": "给你画了一只猫",
			"files": [
				{"type": "image", "url": "https://dify.example/cat.png", "name": "cat.png"},
				{"type": "audio", "url": "https://dify.example/meow.mp3"}
			]
		}`))
	}))
	defer server.Close()

	provider, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "画只猫")
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	if len(reply.Images) != 1 || reply.Images[0].URL != "https://dify.example/cat.png" {
		t.Fatalf("期望收集到 1 张图片，实际为 %v", reply.Images)
	}
	expected := "给你画了一只猫\n![cat.png](https://dify.example/cat.png)"
	if reply.Text != expected {
		t.Errorf("期望图片以markdown标注追加:\n%s\n实际为:\n%s", expected, reply.Text)
	}
}

func TestDifyChatStaleConversationRetry(t *testing.T) {
	var requests []difyChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req difyChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		requests = append(requests, req)

		// 带着过期会话ID的请求返回会话不存在
		if req.ConversationID != "" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code": "conversation_not_exists", "message": "Conversation Not Exists."}`))
			return
		}
		w.Write([]byte(`{"conversation_id": "fresh-conv", "answer": "我们重新开始吧"}`))
	}))
	defer server.Close()

	provider, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	// 先建立会话，再人为标记为过期
	dify := provider.(*DifyProvider)
	if _, err := dify.Send(context.Background(), "你好"); err != nil {
		t.Fatalf("首次发送失败: %v", err)
	}
	dify.setConversation("", "expired-conv")

	reply, err := dify.Send(context.Background(), "还在吗")
	if err != nil {
		t.Fatalf("期望自动恢复成功，实际错误: %v", err)
	}
	if reply.Text != "我们重新开始吧" {
		t.Errorf("期望重试后正常回复，实际为 '%s'", reply.Text)
	}

	if len(requests) != 3 {
		t.Fatalf("期望共 3 次请求（首问+过期+重试），实际为 %d", len(requests))
	}
	if requests[1].ConversationID != "expired-conv" {
		t.Errorf("期望第二次请求带过期会话ID，实际为 '%s'", requests[1].ConversationID)
	}
	if requests[2].ConversationID != "" {
		t.Errorf("期望重试请求清空会话ID，实际为 '%s'", requests[2].ConversationID)
	}
}

func TestDifyChatStaleConversationRetriesOnlyOnce(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code": "conversation_not_exists", "message": "Conversation Not Exists."}`))
	}))
	defer server.Close()

	provider, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "你好")
	if err != nil {
		t.Fatalf("期望失败转为提示文本，实际错误: %v", err)
	}

	if count != 2 {
		t.Errorf("期望重试恰好一次（共 2 次请求），实际为 %d", count)
	}
	if !strings.HasPrefix(reply.Text, "Dify 连接失败: ") {
		t.Errorf("期望回复为连接失败提示，实际为 '%s'", reply.Text)
	}
}

func TestDifyChatAuthFailureText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "unauthorized"}`))
	}))
	defer server.Close()

	provider, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "你好")
	if err != nil {
		t.Fatalf("期望认证失败转为提示文本，实际错误: %v", err)
	}
	expected := "Dify 认证失败 (401)。请检查您的 API Key 类型是否为 [Chat App]。"
	if reply.Text != expected {
		t.Errorf("期望提示为 '%s'，实际为 '%s'", expected, reply.Text)
	}
}

func TestDifyWorkflowNotWorkflowAppText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": "not_workflow_app", "message": "Please check if your app mode matches the right API route."}`))
	}))
	defer server.Close()

	provider, err := NewDifyWorkflowProvider(difyTestConfig("dify-workflow", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "你好")
	if err != nil {
		t.Fatalf("期望模式错误转为提示文本，实际错误: %v", err)
	}
	expected := "配置错误：您的 Dify 应用不支持 Workflow API。请在个人中心将 Dify 模式切换为 [聊天助手 (Chat)] 模式。"
	if reply.Text != expected {
		t.Errorf("期望提示为 '%s'，实际为 '%s'", expected, reply.Text)
	}
}

func TestDifyWorkflowInputsAndOutputs(t *testing.T) {
	var captured difyWorkflowRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflows/run" {
			t.Errorf("期望请求路径为 '/workflows/run'，实际为 '%s'", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		w.Write([]byte(`{"data": {"outputs": {"text": "白血病是血液的疾病"}}}`))
	}))
	defer server.Close()

	provider, err := NewDifyWorkflowProvider(difyTestConfig("dify-workflow", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "什么是白血病")
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if reply.Text != "白血病是血液的疾病" {
		t.Errorf("期望取 text 输出变量，实际为 '%s'", reply.Text)
	}

	// 入参覆盖常见的开始节点变量名
	for _, key := range []string{"query", "text", "input", "question"} {
		if captured.Inputs[key] != "什么是白血病" {
			t.Errorf("期望输入变量 %s 为问题原文，实际为 '%s'", key, captured.Inputs[key])
		}
	}
}

func TestDifyWorkflowEmptyOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"outputs": {}}}`))
	}))
	defer server.Close()

	provider, err := NewDifyWorkflowProvider(difyTestConfig("dify-workflow", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "你好")
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if reply.Text != "Workflow 执行成功，但未返回任何 Output 变量。" {
		t.Errorf("期望空输出提示，实际为 '%s'", reply.Text)
	}
}

func TestDifyWorkflowImageOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"outputs": {
			"answer": "给你找到了图片",
			"files": [{"type": "image", "url": "https://dify.example/pic.png", "filename": "pic.png"}]
		}}}`))
	}))
	defer server.Close()

	provider, err := NewDifyWorkflowProvider(difyTestConfig("dify-workflow", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}

	reply, err := provider.Send(context.Background(), "找图")
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if len(reply.Images) != 1 || reply.Images[0].URL != "https://dify.example/pic.png" {
		t.Fatalf("期望收集到 1 张图片，实际为 %v", reply.Images)
	}
	if !strings.Contains(reply.Text, "![pic.png](https://dify.example/pic.png)") {
		t.Errorf("期望图片以markdown标注追加，实际为 '%s'", reply.Text)
	}
}

func TestWorkflowOutputText(t *testing.T) {
	testCases := []struct {
		name     string
		outputs  map[string]interface{}
		expected string
	}{
		{
			"text优先",
			map[string]interface{}{"text": "甲", "answer": "乙"},
			"甲",
		},
		{
			"空字符串跳过",
			map[string]interface{}{"text": "", "answer": "乙"},
			"乙",
		},
		{
			"假值跳过",
			map[string]interface{}{"result": false, "content": "丙"},
			"丙",
		},
		{
			"非字符串序列化",
			map[string]interface{}{"result": map[string]interface{}{"ok": true}},
			`{"ok":true}`,
		},
		{
			"唯一字符串输出兜底",
			map[string]interface{}{"custom_var": "丁"},
			"丁",
		},
		{
			"多个未知输出不猜",
			map[string]interface{}{"a": "甲", "b": "乙"},
			"",
		},
		{
			"空输出",
			map[string]interface{}{},
			"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := workflowOutputText(tc.outputs)
			if result != tc.expected {
				t.Errorf("期望输出文本为 '%s'，实际为 '%s'", tc.expected, result)
			}
		})
	}
}

func TestDifyTestConnectionHints(t *testing.T) {
	testCases := []struct {
		name     string
		workflow bool
		status   int
		body     string
		expected string
	}{
		{
			"鉴权失败",
			false, 401, `{"message": "unauthorized"}`,
			"鉴权失败(401)。请检查密钥与应用类型(Chat)是否匹配。",
		},
		{
			"模式不匹配",
			true, 400, `{"code": "not_workflow_app", "message": "mode mismatch"}`,
			"模式不匹配(400): 您的应用不是 Workflow 类型。请切换为 [聊天助手 (Chat)] 模式。",
		},
		{
			"接口未找到",
			false, 404, `{"message": "not found"}`,
			"接口未找到(404)。请检查 Base URL 或应用类型是否正确。",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			var provider Provider
			var err error
			if tc.workflow {
				provider, err = NewDifyWorkflowProvider(difyTestConfig("dify-workflow", server.URL))
			} else {
				provider, err = NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
			}
			if err != nil {
				t.Fatalf("创建提供商失败: %v", err)
			}

			_, err = provider.TestConnection(context.Background())
			if err == nil {
				t.Fatal("期望连接测试失败，实际成功")
			}
			appErr, ok := err.(*util.AppError)
			if !ok {
				t.Fatalf("期望错误类型为 *util.AppError，实际为 %T", err)
			}
			if appErr.Message != tc.expected {
				t.Errorf("期望提示为 '%s'，实际为 '%s'", tc.expected, appErr.Message)
			}
		})
	}
}

func TestDifyTestConnectionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": "pong"}`))
	}))
	defer server.Close()

	chat, err := NewDifyChatProvider(difyTestConfig("dify-chat", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}
	msg, err := chat.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("期望连接测试成功，实际错误: %v", err)
	}
	if msg != "Dify Chat 连接成功！" {
		t.Errorf("期望成功文案为 'Dify Chat 连接成功！'，实际为 '%s'", msg)
	}

	workflow, err := NewDifyWorkflowProvider(difyTestConfig("dify-workflow", server.URL))
	if err != nil {
		t.Fatalf("创建提供商失败: %v", err)
	}
	msg, err = workflow.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("期望连接测试成功，实际错误: %v", err)
	}
	if msg != "Dify Workflow 连接成功！" {
		t.Errorf("期望成功文案为 'Dify Workflow 连接成功！'，实际为 '%s'", msg)
	}
}

func TestDifyMissingConfig(t *testing.T) {
	cfg := &config.AppConfig{Provider: config.ProviderConfig{Active: "dify-chat"}}

	_, err := NewDifyChatProvider(cfg)
	if err == nil {
		t.Fatal("期望缺少配置时报错，实际成功")
	}
	if !util.IsErrorCode(err, util.ErrCodeAPIKeyMissing) {
		t.Errorf("期望错误码为 %s，实际为 %v", util.ErrCodeAPIKeyMissing, err)
	}
}
