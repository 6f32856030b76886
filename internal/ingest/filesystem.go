package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// 遍历时跳过的目录
var skippedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	".idea":        true,
}

// FileSystemLoader 从本地目录或文件加载文档
type FileSystemLoader struct {
	extensions  []string
	maxFileSize int64
	logger      *logrus.Logger
}

// NewFileSystemLoader 创建本地文件加载器
func NewFileSystemLoader(extensions []string, maxFileSize int64, logger *logrus.Logger) *FileSystemLoader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &FileSystemLoader{
		extensions:  extensions,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Load 加载src.Path指向的目录或文件，文档来源为文件路径
func (l *FileSystemLoader) Load(ctx context.Context, src Source) ([]document.Document, error) {
	if src.Path == "" {
		return nil, itemError(src, "", fmt.Errorf("%w: path is empty", ErrInvalidSource))
	}
	return l.walk(ctx, src, src.Path, func(path, _ string) string {
		return path
	})
}

// walk 遍历root下符合条件的文件，label根据完整路径和相对路径生成文档来源
func (l *FileSystemLoader) walk(ctx context.Context, src Source, root string, label func(path, rel string) string) ([]document.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, itemError(src, root, err)
	}

	exts := l.extensions
	if len(src.Extensions) > 0 {
		exts = src.Extensions
	}

	var (
		docs []document.Document
		errs error
	)

	// 单个文件直接解析，不按扩展名过滤
	if !info.IsDir() {
		doc, err := l.parse(root, label(root, filepath.Base(root)), src.Type)
		if err != nil {
			return nil, itemError(src, root, err)
		}
		return []document.Document{doc}, nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			errs = multierr.Append(errs, itemError(src, path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasExtension(path, exts) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			errs = multierr.Append(errs, itemError(src, path, err))
			return nil
		}
		if l.maxFileSize > 0 && fi.Size() > l.maxFileSize {
			l.logger.WithFields(logrus.Fields{
				"path": path,
				"size": fi.Size(),
			}).Debug("Skipping oversized file")
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		doc, err := l.parse(path, label(path, filepath.ToSlash(rel)), src.Type)
		if errors.Is(err, document.ErrEmptyContent) {
			return nil
		}
		if err != nil {
			errs = multierr.Append(errs, itemError(src, path, err))
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if walkErr != nil {
		errs = multierr.Append(errs, itemError(src, root, walkErr))
	}

	l.logger.WithFields(logrus.Fields{
		"root":      root,
		"documents": len(docs),
	}).Debug("Directory walked")
	return docs, errs
}

func (l *FileSystemLoader) parse(path, source string, t SourceType) (document.Document, error) {
	parser, err := document.ParserFor(path)
	if err != nil {
		return document.Document{}, err
	}
	doc, err := parser.Parse(path, source)
	if err != nil {
		return document.Document{}, err
	}
	doc.Metadata[document.MetaType] = string(t)
	return doc, nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
