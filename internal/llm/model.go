package llm

import "time"

// MessageRole 消息角色
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// 通义千问模型
const (
	ModelQwenTurbo = "qwen-turbo"
	ModelQwenPlus  = "qwen-plus"
	ModelQwenMax   = "qwen-max"
	ModelQwenLong  = "qwen-long"
)

// tongyiRequest 通义千问请求结构
type tongyiRequest struct {
	Model      string            `json:"model"`
	Input      tongyiInput       `json:"input"`
	Parameters *tongyiParameters `json:"parameters,omitempty"`
}

type tongyiInput struct {
	Messages []Message `json:"messages"`
}

type tongyiParameters struct {
	Temperature  *float32 `json:"temperature,omitempty"`
	TopP         *float32 `json:"top_p,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	ResultFormat string   `json:"result_format,omitempty"` // message或text
}

// tongyiResponse 通义千问响应结构
type tongyiResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`    // 错误码(如果有)
	Message   string `json:"message"` // 错误消息(如果有)
	Output    struct {
		Text    *string `json:"text"` // result_format为text时
		Choices []struct {
			FinishReason string  `json:"finish_reason"`
			Message      Message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}
