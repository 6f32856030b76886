package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// SourceType 文档来源类型
type SourceType string

const (
	SourceLocal  SourceType = "local"  // 本地目录或文件
	SourceGitHub SourceType = "github" // GitHub仓库
	SourceWeb    SourceType = "web"    // 网页文章
	SourcePDF    SourceType = "pdf"    // 本地或远程PDF
)

var (
	// ErrScratchDirRequired 远程下载需要调用方提供临时目录
	ErrScratchDirRequired = errors.New("scratch directory is required")
	// ErrUnknownSourceType 没有对应类型的加载器
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrInvalidSource 来源描述缺少必要字段
	ErrInvalidSource = errors.New("invalid source")
	// ErrFileTooLarge 下载内容超过大小上限
	ErrFileTooLarge = errors.New("file too large")
)

// Source 来源描述
type Source struct {
	Type       SourceType `json:"type"`
	Path       string     `json:"path,omitempty"`       // local/pdf：文件或目录路径
	URL        string     `json:"url,omitempty"`        // web/pdf：地址
	Repo       string     `json:"repo,omitempty"`       // github：owner/repo 或仓库地址
	Ref        string     `json:"ref,omitempty"`        // github：分支、标签或提交，默认为默认分支
	Extensions []string   `json:"extensions,omitempty"` // 采集的扩展名，为空时使用默认值
}

// String 返回来源的可读描述
func (s Source) String() string {
	switch {
	case s.Repo != "":
		if s.Ref != "" {
			return fmt.Sprintf("%s:%s@%s", s.Type, s.Repo, s.Ref)
		}
		return fmt.Sprintf("%s:%s", s.Type, s.Repo)
	case s.URL != "":
		return fmt.Sprintf("%s:%s", s.Type, s.URL)
	default:
		return fmt.Sprintf("%s:%s", s.Type, s.Path)
	}
}

// Loader 从来源产生文档序列
// 单个文件失败时返回已加载的文档，错误为 *ItemError 的 multierr 组合
type Loader interface {
	Load(ctx context.Context, src Source) ([]document.Document, error)
}

// ItemError 单个来源或文件加载失败
type ItemError struct {
	Source string `json:"source"`
	Item   string `json:"item,omitempty"`
	Err    error  `json:"-"`
}

// Error 实现error接口
func (e *ItemError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Item, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap 返回底层错误
func (e *ItemError) Unwrap() error {
	return e.Err
}

func itemError(src Source, item string, err error) *ItemError {
	return &ItemError{Source: src.String(), Item: item, Err: err}
}
