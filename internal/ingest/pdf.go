package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// PDFLoader 加载本地或远程PDF
type PDFLoader struct {
	client     *http.Client
	scratchDir string
	maxSize    int64
}

// NewPDFLoader 创建PDF加载器，远程PDF下载到scratchDir下
// maxSize限制下载大小，<=0表示不限制
func NewPDFLoader(client *http.Client, scratchDir string, maxSize int64) *PDFLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &PDFLoader{client: client, scratchDir: scratchDir, maxSize: maxSize}
}

// Load 解析src.Path或下载src.URL后解析
func (l *PDFLoader) Load(ctx context.Context, src Source) ([]document.Document, error) {
	switch {
	case src.Path != "":
		doc, err := parsePDF(src.Path, src.Path)
		if err != nil {
			return nil, itemError(src, src.Path, err)
		}
		return []document.Document{doc}, nil
	case src.URL != "":
		doc, err := l.loadRemote(ctx, src.URL)
		if err != nil {
			return nil, itemError(src, src.URL, err)
		}
		return []document.Document{doc}, nil
	default:
		return nil, itemError(src, "", fmt.Errorf("%w: pdf source needs path or url", ErrInvalidSource))
	}
}

func (l *PDFLoader) loadRemote(ctx context.Context, rawURL string) (document.Document, error) {
	if l.scratchDir == "" {
		return document.Document{}, ErrScratchDirRequired
	}
	if err := os.MkdirAll(l.scratchDir, 0755); err != nil {
		return document.Document{}, err
	}
	dir, err := os.MkdirTemp(l.scratchDir, "pdf-*")
	if err != nil {
		return document.Document{}, err
	}
	defer os.RemoveAll(dir)

	body, err := fetch(ctx, l.client, rawURL)
	if err != nil {
		return document.Document{}, err
	}
	defer body.Close()

	path := filepath.Join(dir, "document.pdf")
	f, err := os.Create(path)
	if err != nil {
		return document.Document{}, err
	}
	var src io.Reader = body
	if l.maxSize > 0 {
		src = io.LimitReader(body, l.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		return document.Document{}, err
	}
	if l.maxSize > 0 && n > l.maxSize {
		f.Close()
		return document.Document{}, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, l.maxSize)
	}
	if err := f.Close(); err != nil {
		return document.Document{}, err
	}
	return parsePDF(path, rawURL)
}

func parsePDF(path, source string) (document.Document, error) {
	doc, err := document.NewPDFParser().Parse(path, source)
	if err != nil {
		return document.Document{}, err
	}
	doc.Metadata[document.MetaType] = string(SourcePDF)
	return doc, nil
}
