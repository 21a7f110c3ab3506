package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 上游错误体里常见的占位垃圾值，绝不能透传给用户
const invalidObjectLiteral = "[object Object]"

// UpstreamError 上游服务返回非 2xx 时的归一化错误。
// Message 已经过形状优先级提取，保证是可展示的纯文本。
type UpstreamError struct {
	StatusCode int    // HTTP 状态码
	Code       string // 错误体中的业务错误码（如 not_workflow_app），可能为空
	Message    string // 提取后的纯文本错误消息
	Body       []byte // 原始响应体，供日志使用
}

// Error 实现 error 接口
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// NewUpstreamError 从响应状态码和原始错误体构造归一化错误
func NewUpstreamError(statusCode int, body []byte) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Code:       extractErrorCode(body),
		Message:    ExtractErrorMessage(body),
		Body:       body,
	}
}

// ExtractErrorMessage 从上游错误体中提取人类可读的错误消息。
// 按形状优先级依次尝试，对任何输入都不会panic，也绝不会返回
// "[object Object]" 字面量。
//
// 优先级：
//  1. message 为非空字符串
//  2. message 为对象 → 紧凑JSON序列化
//  3. msg 为非空字符串
//  4. error 为字符串 / error.message 为字符串 / error 为对象 → 序列化
//  5. code 与 message 同时存在 → "<code>: <message>"
//  6. 非空对象 → 整体序列化
//  7. 非JSON文本 → 原文（去除首尾空白）
//
// 空输入或提取结果为空 → "Unknown Error"。
func ExtractErrorMessage(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "Unknown Error"
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload != nil {
		if msg := messageFromPayload(payload); msg != "" {
			return guardMessage(msg)
		}
	}

	return guardMessage(text)
}

// messageFromPayload 按优先级从已解码的错误对象中提取消息，找不到返回空串
func messageFromPayload(payload map[string]interface{}) string {
	// 1/2. message 字段，字符串直接返回，对象序列化
	if m, ok := payload["message"]; ok {
		switch v := m.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			return safeStringify(v)
		}
	}

	// 3. msg 字段
	if v, ok := payload["msg"].(string); ok && v != "" {
		return v
	}

	// 4. error 字段
	if e, ok := payload["error"]; ok && e != nil {
		switch v := e.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
			return safeStringify(v)
		default:
			return safeStringify(v)
		}
	}

	// 5. code 与 message 并存（message 为数字等非字符串值时，Dify 常见格式）
	if code := codeString(payload["code"]); code != "" {
		if m, ok := payload["message"]; ok && m != nil {
			if s, isStr := m.(string); !isStr || s != "" {
				return code + ": " + safeStringify(m)
			}
		}
	}

	// 6. 整体序列化非空对象
	if len(payload) > 0 {
		return safeStringify(payload)
	}

	return ""
}

// extractErrorCode 提取错误体中的业务错误码，字符串或数字均可
func extractErrorCode(raw []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return codeString(payload["code"])
}

// codeString 将任意类型的 code 值转为字符串表示
func codeString(v interface{}) string {
	switch code := v.(type) {
	case string:
		return code
	case float64:
		if code == float64(int64(code)) {
			return fmt.Sprintf("%d", int64(code))
		}
		return fmt.Sprintf("%v", code)
	default:
		return ""
	}
}

// safeStringify 紧凑序列化任意值，失败时退回占位消息
func safeStringify(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// guardMessage 拦截 "[object Object]" 垃圾值并兜底空消息
func guardMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == invalidObjectLiteral {
		return "Unknown Error (Invalid Response Format)"
	}
	if msg == "" {
		return "Unknown Error"
	}
	return msg
}
