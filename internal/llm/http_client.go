package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"snowball/internal/util"
)

// HTTPClient HTTP 客户端接口
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIClient 上游模型服务专用 HTTP 客户端
type APIClient struct {
	client  HTTPClient
	baseURL string
	headers map[string]string
}

// NewAPIClient 创建新的上游 HTTP 客户端
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		headers: make(map[string]string),
	}
}

// SetHeader 设置请求头
func (c *APIClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// Post 发送 POST 请求
func (c *APIClient) Post(ctx context.Context, endpoint string, payload interface{}) (*http.Response, error) {
	url := c.baseURL
	if endpoint != "" {
		url = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	}

	var body io.Reader
	var jsonData []byte
	var err error

	if payload != nil {
		jsonData, err = json.Marshal(payload)
		if err != nil {
			return nil, util.WrapError(util.ErrCodeInvalidParam, "failed to marshal request payload", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, util.WrapError(util.ErrCodeInvalidParam, "failed to create HTTP request", err)
	}

	// 设置默认请求头
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "snowball/1.0")

	// 设置自定义请求头
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	// 记录脱敏与限长后的请求详情
	headersMap := make(map[string]string)
	for name, values := range req.Header {
		joined := strings.Join(values, ", ")
		switch strings.ToLower(name) {
		case "authorization":
			if strings.HasPrefix(joined, "Bearer ") {
				headersMap[name] = "Bearer ***"
			} else if joined != "" {
				headersMap[name] = "[REDACTED]"
			}
		case "x-goog-api-key", "cookie", "set-cookie":
			if joined != "" {
				headersMap[name] = "[REDACTED]"
			}
		default:
			headersMap[name] = joined
		}
	}
	var bodyPreview string
	if len(jsonData) > 0 {
		const maxLogBody = 1024
		if len(jsonData) > maxLogBody {
			bodyPreview = string(jsonData[:maxLogBody]) + "...(truncated)"
		} else {
			bodyPreview = string(jsonData)
		}
	}
	util.Debugw("发送 HTTP POST 请求", map[string]interface{}{
		"url":          url,
		"headers":      headersMap,
		"body_preview": bodyPreview,
		"body_len":     len(jsonData),
	})

	resp, err := c.client.Do(req)
	if err != nil {
		util.Errorw("HTTP 请求失败", map[string]interface{}{"error": err, "url": url})
		return nil, util.WrapError(util.ErrCodeNetworkFailed, "HTTP request failed", err)
	}

	return resp, nil
}

// PostJSON 发送 JSON POST 请求并解析响应。
// 非 2xx 响应返回 *UpstreamError，其 Message 已过错误归一化。
func (c *APIClient) PostJSON(ctx context.Context, endpoint string, payload interface{}, result interface{}) error {
	resp, err := c.Post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.handleHTTPError(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return util.WrapError(util.ErrCodeInvalidResponse, "failed to decode response", err)
		}
	}

	return nil
}

// handleHTTPError 将非 2xx 响应转为归一化的上游错误
func (c *APIClient) handleHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		body = nil
	}

	util.Warnw("HTTP 错误响应", map[string]interface{}{
		"status": resp.Status,
		"body":   string(body),
		"url":    resp.Request.URL.String(),
	})

	return NewUpstreamError(resp.StatusCode, body)
}

// RetryableAPIClient 支持重试的上游 HTTP 客户端。
// 只重试未收到响应的纯网络失败，上游明确返回的错误不重试，
// 保证错误消息的确定性。
type RetryableAPIClient struct {
	*APIClient
	maxRetries int
	retryDelay time.Duration
}

// NewRetryableAPIClient 创建支持重试的上游 HTTP 客户端
func NewRetryableAPIClient(baseURL string, timeout time.Duration, maxRetries int, retryDelay time.Duration) *RetryableAPIClient {
	return &RetryableAPIClient{
		APIClient:  NewAPIClient(baseURL, timeout),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// PostJSONWithRetry 带重试的 JSON POST 请求
func (c *RetryableAPIClient) PostJSONWithRetry(ctx context.Context, endpoint string, payload interface{}, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := c.retryDelay * time.Duration(1<<(attempt-1))
			util.Debugw("请求失败，正在重试...", map[string]interface{}{
				"attempt":  attempt,
				"backoff":  backoff.String(),
				"last_err": lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return util.WrapError(util.ErrCodeContextCanceled, "request context canceled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := c.PostJSON(ctx, endpoint, payload, result)
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.shouldRetry(err) {
			break
		}
	}

	return lastErr
}

// shouldRetry 判断是否应该重试
func (c *RetryableAPIClient) shouldRetry(err error) bool {
	return util.IsErrorCode(err, util.ErrCodeNetworkFailed)
}
