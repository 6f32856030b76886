package ingest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// DefaultExtensions 默认采集的文件扩展名
var DefaultExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".md", ".txt", ".pdf",
}

// Config 采集配置
type Config struct {
	ScratchDir        string        // 远程下载使用的临时目录，由调用方持有
	GitHubToken       string        // GitHub令牌，可选
	GitHubBaseURL     string        // GitHub API地址，为空时使用公共API
	HTTPTimeout       time.Duration // 下载超时
	MaxFileSize       int64         // 单文件大小上限（字节）
	Extensions        []string      // 默认扩展名
	RequestsPerSecond float64       // GitHub API请求速率
}

// Option 采集配置选项
type Option func(*Registry)

// WithScratchDir 设置临时目录
func WithScratchDir(dir string) Option {
	return func(r *Registry) {
		r.config.ScratchDir = dir
	}
}

// WithGitHubToken 设置GitHub令牌
func WithGitHubToken(token string) Option {
	return func(r *Registry) {
		r.config.GitHubToken = token
	}
}

// WithGitHubBaseURL 设置GitHub API地址
func WithGitHubBaseURL(url string) Option {
	return func(r *Registry) {
		r.config.GitHubBaseURL = url
	}
}

// WithHTTPTimeout 设置下载超时
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.config.HTTPTimeout = timeout
	}
}

// WithMaxFileSize 设置单文件大小上限
func WithMaxFileSize(size int64) Option {
	return func(r *Registry) {
		r.config.MaxFileSize = size
	}
}

// WithExtensions 设置默认扩展名
func WithExtensions(exts []string) Option {
	return func(r *Registry) {
		if len(exts) > 0 {
			r.config.Extensions = exts
		}
	}
}

// WithLoader 为来源类型指定加载器，覆盖默认实现
func WithLoader(t SourceType, loader Loader) Option {
	return func(r *Registry) {
		r.loaders[t] = loader
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Result 批量加载结果
type Result struct {
	Documents []document.Document `json:"documents"`
	Failures  []*ItemError        `json:"failures"`
}

// Registry 按来源类型分发的加载器集合
type Registry struct {
	config  Config
	loaders map[SourceType]Loader
	logger  *logrus.Logger
}

// NewRegistry 创建加载器集合，未指定的类型使用默认加载器
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		config: Config{
			HTTPTimeout:       60 * time.Second,
			MaxFileSize:       1 << 20,
			Extensions:        DefaultExtensions,
			RequestsPerSecond: 5,
		},
		loaders: make(map[SourceType]Loader),
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	httpClient := &http.Client{Timeout: r.config.HTTPTimeout}
	fs := NewFileSystemLoader(r.config.Extensions, r.config.MaxFileSize, r.logger)
	defaults := map[SourceType]Loader{
		SourceLocal:  fs,
		SourceGitHub: NewGitHubLoader(r.config, fs),
		SourceWeb:    NewWebLoader(httpClient),
		SourcePDF:    NewPDFLoader(httpClient, r.config.ScratchDir, r.config.MaxFileSize),
	}
	for t, loader := range defaults {
		if _, ok := r.loaders[t]; !ok {
			r.loaders[t] = loader
		}
	}
	return r
}

// Load 依次加载全部来源，单个来源或文件失败只记录不中断
func (r *Registry) Load(ctx context.Context, sources []Source) Result {
	var result Result
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, itemError(src, "", err))
			continue
		}

		loader, ok := r.loaders[src.Type]
		if !ok {
			result.Failures = append(result.Failures, itemError(src, "", ErrUnknownSourceType))
			r.logger.WithField("source", src.String()).Warn("No loader for source type")
			continue
		}

		start := time.Now()
		docs, err := loader.Load(ctx, src)
		result.Documents = append(result.Documents, docs...)

		for _, e := range multierr.Errors(err) {
			var itemErr *ItemError
			if !errors.As(e, &itemErr) {
				itemErr = itemError(src, "", e)
			}
			result.Failures = append(result.Failures, itemErr)
			r.logger.WithFields(logrus.Fields{
				"source": itemErr.Source,
				"item":   itemErr.Item,
			}).WithError(itemErr.Err).Warn("Failed to load item")
		}

		r.logger.WithFields(logrus.Fields{
			"source":    src.String(),
			"documents": len(docs),
			"elapsed":   time.Since(start).String(),
		}).Info("Source loaded")
	}
	return result
}

// FailureError 把失败列表合并为一个错误，没有失败时为nil
func (res Result) FailureError() error {
	var err error
	for _, f := range res.Failures {
		err = multierr.Append(err, f)
	}
	return err
}
