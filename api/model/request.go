package model

import (
	"github.com/fyerfyer/arch-QA-system/internal/ingest"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 返回分页偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// SourceRequest 单个来源描述
type SourceRequest struct {
	Type       string   `json:"type" binding:"required,source_type"`       // local, github, web, pdf
	Path       string   `json:"path" binding:"omitempty"`                  // 本地文件或目录
	URL        string   `json:"url" binding:"omitempty,url"`               // 网页或PDF地址
	Repo       string   `json:"repo" binding:"omitempty"`                  // GitHub仓库
	Ref        string   `json:"ref" binding:"omitempty"`                   // 分支、标签或提交
	Extensions []string `json:"extensions" binding:"omitempty,dive,min=1"` // 采集的扩展名
}

// ToSource 转换为采集来源
func (r SourceRequest) ToSource() ingest.Source {
	return ingest.Source{
		Type:       ingest.SourceType(r.Type),
		Path:       r.Path,
		URL:        r.URL,
		Repo:       r.Repo,
		Ref:        r.Ref,
		Extensions: r.Extensions,
	}
}

// CreateSessionRequest 建立会话请求
type CreateSessionRequest struct {
	Sources []SourceRequest `json:"sources" binding:"required,min=1,dive"` // 来源列表
}

// ToSources 转换为采集来源列表
func (r CreateSessionRequest) ToSources() []ingest.Source {
	sources := make([]ingest.Source, len(r.Sources))
	for i, s := range r.Sources {
		sources[i] = s.ToSource()
	}
	return sources
}

// SessionURI 路径中的会话ID
type SessionURI struct {
	ID string `uri:"id" binding:"required"` // 会话ID
}

// AskRequest 提问请求
type AskRequest struct {
	Question string `json:"question" binding:"required"` // 问题内容
}

// HistoryRequest 历史查询请求
type HistoryRequest struct {
	PaginationRequest
}
