package document

import (
	"fmt"
	"os"
)

// PlainTextParser 纯文本与源代码解析器，内容原样保留
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 读取文件内容，语言由扩展名决定
func (p *PlainTextParser) Parse(filePath, source string) (Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read text file: %w", err)
	}

	return NewDocument(string(content), map[string]string{MetaSource: source}, LanguageFromPath(filePath))
}
