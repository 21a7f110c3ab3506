package util

import (
	"fmt"
	"runtime"
	"strings"
)

// 错误代码常量
const (
	// 系统级错误
	ErrCodeInternalErr          = "INTERNAL_ERROR"        // 内部错误
	ErrCodeInitializationFailed = "INITIALIZATION_FAILED" // 初始化失败
	ErrCodeInvalidParam         = "INVALID_PARAM"         // 无效参数

	// 配置错误
	ErrCodeConfigNotFound    = "CONFIG_NOT_FOUND"    // 配置文件未找到
	ErrCodeConfigInvalid     = "CONFIG_INVALID"      // 配置文件无效
	ErrCodeConfigLoadFailed  = "CONFIG_LOAD_FAILED"  // 配置加载失败
	ErrCodeConfigParseFailed = "CONFIG_PARSE_FAILED" // 配置解析失败

	// 网络错误
	ErrCodeNetworkFailed      = "NETWORK_FAILED"      // 网络请求失败
	ErrCodeAPIRequestFailed   = "API_REQUEST_FAILED"  // API请求失败
	ErrCodeTimeout            = "TIMEOUT"             // 请求超时
	ErrCodeRateLimited        = "RATE_LIMITED"        // 请求频率限制
	ErrCodeForbidden          = "FORBIDDEN"           // 禁止访问
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 服务不可用
	ErrCodeContextCanceled    = "CONTEXT_CANCELED"    // 上下文取消

	// 提供商错误
	ErrCodeProviderNotSupported   = "PROVIDER_NOT_SUPPORTED"   // 提供商类型不支持
	ErrCodeProviderCreationFailed = "PROVIDER_CREATION_FAILED" // 提供商创建失败
	ErrCodeAPIKeyMissing          = "API_KEY_MISSING"          // API密钥缺失
	ErrCodeAuthFailed             = "AUTH_FAILED"              // 认证失败
	ErrCodeInvalidConfig          = "INVALID_CONFIG"           // 无效配置
	ErrCodeInvalidResponse        = "INVALID_RESPONSE"         // 无效响应
	ErrCodeAppTypeMismatch        = "APP_TYPE_MISMATCH"        // Dify应用类型不匹配
	ErrCodeConversationExpired    = "CONVERSATION_EXPIRED"     // 会话已失效

	// MCP错误
	ErrCodeMCPConnectionFailed = "MCP_CONNECTION_FAILED" // MCP连接失败
	ErrCodeMCPToolCallFailed   = "MCP_TOOL_CALL_FAILED"  // MCP工具调用失败

	// 通话错误
	ErrCodeCallNotSupported = "CALL_NOT_SUPPORTED" // 当前提供商不支持通话
	ErrCodeCallFailed       = "CALL_FAILED"        // 通话建立失败

	// 档案错误
	ErrCodeProfileParseFailed = "PROFILE_PARSE_FAILED" // 成长档案解析失败
	ErrCodeProfileStoreFailed = "PROFILE_STORE_FAILED" // 成长档案存储失败
)

// AppError 应用错误结构
type AppError struct {
	Code    string `json:"code"`              // 错误代码
	Message string `json:"message"`           // 错误消息
	Details string `json:"details,omitempty"` // 错误详情
	Cause   error  `json:"-"`                 // 原始错误
	Stack   string `json:"stack,omitempty"`   // 错误堆栈
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 实现错误比较接口
func (e *AppError) Is(target error) bool {
	if other, ok := target.(*AppError); ok {
		return e.Code == other.Code
	}
	return false
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithStack 添加堆栈信息
func (e *AppError) WithStack() *AppError {
	e.Stack = getStackTrace(3) // 跳过3层调用栈
	return e
}

// NewError 创建新的应用错误
func NewError(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithDetails 创建带详情的应用错误
func NewErrorWithDetails(code, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapError 包装现有错误
func WrapError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapErrorWithDetails 包装现有错误并附加详情
func WrapErrorWithDetails(code, message string, cause error, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// getStackTrace 获取调用堆栈
func getStackTrace(skip int) string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack strings.Builder
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		// 跳过runtime相关的调用栈
		if strings.Contains(frame.File, "runtime/") {
			continue
		}
		stack.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
	}
	return stack.String()
}

// IsErrorCode 检查错误是否为指定类型
func IsErrorCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetErrorCode 获取错误代码
func GetErrorCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeInternalErr
}

// GetErrorDetails 获取错误详情
func GetErrorDetails(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Details
	}
	return ""
}

// HandleError 记录错误日志，nil 安全
func HandleError(err error) {
	if err == nil {
		return
	}
	LogError(err, "error")
}
