package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

const maxPageSize = 10 << 20

// WebLoader 抓取网页并提取正文
type WebLoader struct {
	client *http.Client
}

// NewWebLoader 创建网页加载器
func NewWebLoader(client *http.Client) *WebLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebLoader{client: client}
}

// Load 抓取src.URL，文档来源为URL，标题取自<title>
func (l *WebLoader) Load(ctx context.Context, src Source) ([]document.Document, error) {
	if src.URL == "" {
		return nil, itemError(src, "", fmt.Errorf("%w: url is empty", ErrInvalidSource))
	}

	body, err := fetch(ctx, l.client, src.URL)
	if err != nil {
		return nil, itemError(src, src.URL, err)
	}
	defer body.Close()

	root, err := html.Parse(io.LimitReader(body, maxPageSize))
	if err != nil {
		return nil, itemError(src, src.URL, fmt.Errorf("parse html: %w", err))
	}

	meta := map[string]string{
		document.MetaSource: src.URL,
		document.MetaType:   string(SourceWeb),
	}
	if title := findTitle(root); title != "" {
		meta[document.MetaTitle] = title
	}

	doc, err := document.NewDocument(ExtractText(root), meta, document.LangText)
	if err != nil {
		return nil, itemError(src, src.URL, err)
	}
	return []document.Document{doc}, nil
}

// fetch 发送GET请求，非200状态视为失败
func fetch(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "arch-qa-system/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// 不含正文的元素
var skippedElements = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true,
	"footer": true, "noscript": true, "template": true, "head": true,
}

// 单独成段的块级元素
var blockElements = map[string]bool{
	"p": true, "li": true, "pre": true, "blockquote": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"dt": true, "dd": true, "figcaption": true,
}

// ExtractText 提取页面正文，每个块级元素一段，段之间空一行
func ExtractText(root *html.Node) string {
	var (
		blocks  []string
		pending strings.Builder
	)
	flush := func() {
		if t := collapseSpace(pending.String()); t != "" {
			blocks = append(blocks, t)
		}
		pending.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			pending.WriteString(n.Data)
			pending.WriteByte(' ')
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				flush()
				text := textContent(n)
				if n.Data != "pre" {
					text = collapseSpace(text)
				} else {
					text = strings.Trim(text, "\n")
				}
				if strings.TrimSpace(text) != "" {
					blocks = append(blocks, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	flush()

	return strings.Join(blocks, "\n\n")
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return collapseSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
