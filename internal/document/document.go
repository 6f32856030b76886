package document

import (
	"errors"
	"path/filepath"
	"strings"
)

// 元数据键
const (
	MetaSource   = "source"   // 文档来源：文件路径、URL或仓库相对路径
	MetaTitle    = "title"    // 文档标题（可选）
	MetaLanguage = "language" // 语言提示
	MetaType     = "type"     // 来源类型：local, github, web, pdf
)

var (
	// ErrEmptyContent 文档内容为空
	ErrEmptyContent = errors.New("document content is empty")
	// ErrMissingSource 元数据缺少source
	ErrMissingSource = errors.New("document metadata must include source")
)

// Language 语言提示，决定分块时使用的分隔符
type Language string

const (
	LangUnknown    Language = ""
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangMarkdown   Language = "markdown"
	LangText       Language = "text"
)

// IsCode 是否为源代码语言
func (l Language) IsCode() bool {
	switch l {
	case LangGo, LangPython, LangJavaScript, LangTypeScript, LangJava:
		return true
	}
	return false
}

// LanguageFromPath 根据文件扩展名推断语言
func LanguageFromPath(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo
	case ".py":
		return LangPython
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript
	case ".ts", ".tsx":
		return LangTypeScript
	case ".java":
		return LangJava
	case ".md", ".markdown":
		return LangMarkdown
	case ".txt", ".pdf", ".html", ".htm":
		return LangText
	default:
		return LangUnknown
	}
}

// Document 采集得到的统一文档记录，创建后不应再修改
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Language Language          `json:"language,omitempty"`
}

// NewDocument 创建文档，内容不能为空且元数据必须包含source
func NewDocument(content string, metadata map[string]string, lang Language) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return Document{}, ErrEmptyContent
	}
	if metadata[MetaSource] == "" {
		return Document{}, ErrMissingSource
	}

	meta := copyMetadata(metadata)
	if lang != LangUnknown {
		meta[MetaLanguage] = string(lang)
	}
	return Document{Content: content, Metadata: meta, Language: lang}, nil
}

// Source 返回文档来源
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Title 返回文档标题，没有时为空
func (d Document) Title() string {
	return d.Metadata[MetaTitle]
}

func copyMetadata(metadata map[string]string) map[string]string {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	return meta
}

// Chunk 文档分块，继承父文档的元数据
type Chunk struct {
	Document
	Index   int `json:"index"`   // 在父文档中的顺序
	Overlap int `json:"overlap"` // 开头与上一块重叠的字节数
}

// NonOverlap 返回本块新增的文本（去掉开头的重叠部分）
func (c Chunk) NonOverlap() string {
	return c.Content[c.Overlap:]
}
