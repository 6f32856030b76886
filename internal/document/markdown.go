package document

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 保留原始Markdown以便按标题分块，同时提取第一个标题作为文档标题
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath, source string) (Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read markdown file: %w", err)
	}

	meta := map[string]string{MetaSource: source}
	if title := MarkdownTitle(content); title != "" {
		meta[MetaTitle] = title
	}
	return NewDocument(string(content), meta, LangMarkdown)
}

// MarkdownTitle 返回文档中级别最高的第一个标题文本
func MarkdownTitle(content []byte) string {
	mdParser := parser.NewWithExtensions(parser.CommonExtensions)
	root := mdParser.Parse(content)

	var (
		title string
		level = 7
	)
	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		heading, ok := node.(*ast.Heading)
		if !ok || !entering {
			return ast.GoToNext
		}
		if heading.Level < level {
			level = heading.Level
			title = headingText(heading)
		}
		return ast.SkipChildren
	})
	return title
}

// headingText 拼接标题下的所有叶子文本
func headingText(node ast.Node) string {
	var buf bytes.Buffer
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := n.AsLeaf(); leaf != nil {
			buf.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(buf.String())
}
