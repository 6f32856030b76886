package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// LLMError 大模型调用错误
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
	Err     error  // 底层错误
}

// Error 实现error接口
func (e LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm error (code=%d): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e LLMError) Unwrap() error {
	return e.Err
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyPrompt    = 1007 // 提示词为空
	ErrCodeContentFilter  = 1008 // 内容安全过滤
	ErrCodeEmptyResponse  = 1009 // 模型未返回内容
	ErrCodeContextTooLong = 1010 // 上下文过长
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgContentFilter  = "content filtered due to safety concerns"
	ErrMsgEmptyResponse  = "empty response from model"
	ErrMsgContextTooLong = "context length exceeds model's maximum"
)

// NewLLMError 创建大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装底层错误，已是LLMError时原样返回
func WrapError(code int, message string, err error) error {
	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return err
	}
	return LLMError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	var llmErr LLMError
	if !errors.As(err, &llmErr) {
		return false
	}
	switch llmErr.Code {
	case ErrCodeNetworkError, ErrCodeRateLimited, ErrCodeServerError:
		return true
	}
	return false
}

// codeForStatus 根据HTTP状态码选择错误码
func codeForStatus(status int) int {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeInvalidAPIKey
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status >= 500:
		return ErrCodeServerError
	default:
		return ErrCodeInvalidRequest
	}
}
