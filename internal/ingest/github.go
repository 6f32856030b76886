package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

const maxArchiveRedirects = 3

// GitHubLoader 下载GitHub仓库归档并按本地目录加载
// 每次加载在调用方提供的临时目录下新建唯一子目录，返回前删除
type GitHubLoader struct {
	client      *gh.Client
	limiter     *rate.Limiter
	fs          *FileSystemLoader
	scratchDir  string
	maxFileSize int64
	initErr     error
}

// NewGitHubLoader 创建GitHub加载器，令牌为空时匿名访问
func NewGitHubLoader(cfg Config, fs *FileSystemLoader) *GitHubLoader {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.GitHubToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = cfg.HTTPTimeout
	}

	client := gh.NewClient(httpClient)
	var initErr error
	if cfg.GitHubBaseURL != "" {
		base := cfg.GitHubBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		client.BaseURL, initErr = url.Parse(base)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &GitHubLoader{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		fs:          fs,
		scratchDir:  cfg.ScratchDir,
		maxFileSize: cfg.MaxFileSize,
		initErr:     initErr,
	}
}

// Load 下载仓库并加载其中的文件，文档来源为 owner/repo/<path>
func (l *GitHubLoader) Load(ctx context.Context, src Source) ([]document.Document, error) {
	if l.initErr != nil {
		return nil, itemError(src, "", l.initErr)
	}
	if l.scratchDir == "" {
		return nil, itemError(src, "", ErrScratchDirRequired)
	}
	owner, repo, err := ParseRepo(src.Repo)
	if err != nil {
		return nil, itemError(src, "", err)
	}

	ref := src.Ref
	if ref == "" {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, itemError(src, "", err)
		}
		repository, _, err := l.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, itemError(src, "", fmt.Errorf("get repository: %w", err))
		}
		ref = repository.GetDefaultBranch()
	}

	if err := os.MkdirAll(l.scratchDir, 0755); err != nil {
		return nil, itemError(src, "", err)
	}
	dir, err := os.MkdirTemp(l.scratchDir, "repo-*")
	if err != nil {
		return nil, itemError(src, "", err)
	}
	defer os.RemoveAll(dir)

	if err := l.download(ctx, owner, repo, ref, dir); err != nil {
		return nil, itemError(src, "", err)
	}

	prefix := owner + "/" + repo + "/"
	return l.fs.walk(ctx, src, dir, func(_, rel string) string {
		return prefix + rel
	})
}

// download 获取归档链接并解压到dir
func (l *GitHubLoader) download(ctx context.Context, owner, repo, ref, dir string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	link, _, err := l.client.Repositories.GetArchiveLink(ctx, owner, repo, gh.Tarball,
		&gh.RepositoryContentGetOptions{Ref: ref}, maxArchiveRedirects)
	if err != nil {
		return fmt.Errorf("get archive link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.String(), nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Client().Do(req)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download archive: unexpected status %s", resp.Status)
	}
	return extractTarGz(resp.Body, dir, l.maxFileSize)
}

// ParseRepo 解析 owner/repo 或 https://github.com/owner/repo(.git)
func ParseRepo(s string) (owner, repo string, err error) {
	s = strings.TrimSpace(s)
	if u, parseErr := url.Parse(s); parseErr == nil && u.Host != "" {
		s = u.Path
	}
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: repository must be owner/repo, got %q", ErrInvalidSource, s)
	}
	return parts[0], parts[1], nil
}
