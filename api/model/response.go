package model

import (
	"time"

	"github.com/fyerfyer/arch-QA-system/internal/models"
	"github.com/fyerfyer/arch-QA-system/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Details string      `json:"details,omitempty"`  // 详细错误信息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// SessionResponse 会话信息
type SessionResponse struct {
	SessionID string    `json:"session_id"`       // 会话ID
	Documents int       `json:"documents"`        // 文档数
	Chunks    int       `json:"chunks"`           // 分块数
	Failures  int       `json:"failures"`         // 采集失败数
	Errors    []string  `json:"errors,omitempty"` // 失败明细
	Turns     int       `json:"turns"`            // 已进行的问答轮数
	CreatedAt time.Time `json:"created_at"`       // 创建时间
}

// NewSessionResponse 由会话构造响应
func NewSessionResponse(s *services.Session) SessionResponse {
	return SessionResponse{
		SessionID: s.ID,
		Documents: s.Documents,
		Chunks:    s.Chunks,
		Failures:  s.Failures,
		Errors:    s.FailureDetails,
		Turns:     len(s.History),
		CreatedAt: s.CreatedAt,
	}
}

// AskResponse 问答响应
type AskResponse struct {
	SessionID  string             `json:"session_id"`        // 会话ID
	Question   string             `json:"question"`          // 用户问题
	Answer     string             `json:"answer"`            // 模型回答
	Diagram    string             `json:"diagram,omitempty"` // Mermaid架构图
	HasDiagram bool               `json:"has_diagram"`       // 是否有架构图
	Sources    []models.SourceRef `json:"sources"`           // 检索到的来源
	Cached     bool               `json:"cached"`            // 是否命中缓存
}

// NewAskResponse 由回答构造响应
func NewAskResponse(sessionID string, a *services.Answer) AskResponse {
	sources := a.Sources
	if sources == nil {
		sources = []models.SourceRef{}
	}
	return AskResponse{
		SessionID:  sessionID,
		Question:   a.Question,
		Answer:     a.Answer,
		Diagram:    a.Diagram,
		HasDiagram: a.HasDiagram,
		Sources:    sources,
		Cached:     a.Cached,
	}
}

// HistoryRecord 持久化的问答记录
type HistoryRecord struct {
	Question  string             `json:"question"`
	Answer    string             `json:"answer"`
	Diagram   string             `json:"diagram,omitempty"`
	Sources   []models.SourceRef `json:"sources"`
	CreatedAt time.Time          `json:"created_at"`
}

// HistoryResponse 会话历史响应
type HistoryResponse struct {
	SessionID  string             `json:"session_id"` // 会话ID
	Turns      []services.Turn    `json:"turns"`      // 本进程内的问答
	Persisted  []HistoryRecord    `json:"persisted"`  // 数据库中的问答
	Pagination PaginationResponse `json:"pagination"` // 持久化记录的分页信息
}

// PaginationResponse 分页响应信息
type PaginationResponse struct {
	Total    int64 `json:"total"`     // 总记录数
	Page     int   `json:"page"`      // 当前页码
	PageSize int   `json:"page_size"` // 每页大小
}

// DeleteResponse 删除会话响应
type DeleteResponse struct {
	Success   bool   `json:"success"`    // 是否成功
	SessionID string `json:"session_id"` // 会话ID
}
