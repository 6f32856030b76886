package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/fyerfyer/arch-QA-system/api"
	"github.com/fyerfyer/arch-QA-system/api/handler"
	"github.com/fyerfyer/arch-QA-system/api/middleware"
	qaconfig "github.com/fyerfyer/arch-QA-system/config"
	"github.com/fyerfyer/arch-QA-system/internal/cache"
	"github.com/fyerfyer/arch-QA-system/internal/database"
	"github.com/fyerfyer/arch-QA-system/internal/embedding"
	"github.com/fyerfyer/arch-QA-system/internal/ingest"
	"github.com/fyerfyer/arch-QA-system/internal/llm"
	"github.com/fyerfyer/arch-QA-system/internal/pipeline"
	"github.com/fyerfyer/arch-QA-system/internal/repository"
	"github.com/fyerfyer/arch-QA-system/internal/retrieval"
	"github.com/fyerfyer/arch-QA-system/internal/services"
	"github.com/fyerfyer/arch-QA-system/internal/vectordb"
)

// 命令行选项
type options struct {
	ConfigFile   string        // 配置文件路径
	EnvFile      string        // .env 文件路径
	Port         int           // 服务端口，0表示使用配置文件
	Mode         string        // gin运行模式
	LogLevel     string        // 日志级别
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
	Sources      sourceFlags   // 一次性模式的来源
	Question     string        // 一次性模式的问题
	NoDiagram    bool          // 不生成架构图
}

func main() {
	opts := parseFlags()

	// .env 不存在时忽略
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Failed to load %s: %v", opts.EnvFile, err)
	}

	cfg, err := qaconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, opts)

	logger := setupLogger(cfg.Log)
	oneShot := len(opts.Sources) > 0 || opts.Question != ""
	if oneShot {
		// 一次性模式的标准输出只留给回答
		logger.SetOutput(logOutput(cfg.Log, io.Discard))
	}
	logger.Info("Starting Architecture QA System...")

	scratchDir, cleanup, err := setupScratchDir(cfg.Ingest.ScratchDir)
	if err != nil {
		logger.Fatalf("Failed to prepare scratch directory: %v", err)
	}
	defer cleanup()

	cacheService, err := setupCache(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	embeddingClient, err := setupEmbedding(cfg.Embed, cacheService, cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	llmClient, err := setupLLM(cfg.LLM)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	var db *gorm.DB
	if cfg.Database.Enable && !oneShot {
		db, err = database.Open(&database.Config{
			Type:         cfg.Database.Type,
			DSN:          cfg.Database.DSN,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			MaxLifetime:  time.Hour,
		}, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close(db)
	}

	service, err := setupService(cfg, scratchDir, embeddingClient, llmClient, cacheService, db, opts.NoDiagram, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize service: %v", err)
	}

	if oneShot {
		if err := runOnce(service, opts.Sources, opts.Question, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	gin.SetMode(cfg.Server.Mode)
	r := api.SetupRouter(handler.NewSessionHandler(service, services.NewSessionStore()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() options {
	var opts options

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Config file path")
	flag.StringVar(&opts.EnvFile, "env", ".env", "Env file path")
	flag.IntVar(&opts.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&opts.Mode, "mode", "", "Run mode (debug/release)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug/info/warn/error)")
	flag.DurationVar(&opts.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&opts.WriteTimeout, "write-timeout", 5*time.Minute, "Write timeout")
	flag.Var(&opts.Sources, "source", "Source to index, repeatable: local:<path>, github:<owner/repo[@ref]>, web:<url>, pdf:<path|url>")
	flag.StringVar(&opts.Question, "ask", "", "Question to answer once and exit")
	flag.BoolVar(&opts.NoDiagram, "no-diagram", false, "Skip the architecture diagram")

	flag.Parse()
	return opts
}

// applyFlags 用命令行参数覆盖配置
func applyFlags(cfg *qaconfig.Config, opts options) {
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Mode != "" {
		cfg.Server.Mode = opts.Mode
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
}

// setupLogger 设置日志系统，配置了文件时按大小滚动
func setupLogger(cfg qaconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()
	middleware.SetLevel(cfg.Level)
	logger.SetOutput(logOutput(cfg, os.Stdout))
	return logger
}

// logOutput 返回日志输出，未配置文件时使用fallback
func logOutput(cfg qaconfig.LogConfig, fallback io.Writer) io.Writer {
	if cfg.File == "" {
		return fallback
	}
	rolling := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
	if fallback == io.Discard {
		return rolling
	}
	return io.MultiWriter(fallback, rolling)
}

// setupScratchDir 准备远程来源的临时目录，未配置时创建并在退出时删除
func setupScratchDir(dir string) (string, func(), error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", nil, err
		}
		return dir, func() {}, nil
	}
	tmp, err := os.MkdirTemp("", "archqa-*")
	if err != nil {
		return "", nil, err
	}
	return tmp, func() { os.RemoveAll(tmp) }, nil
}

// setupCache 设置缓存服务，未启用时返回nil
func setupCache(cfg qaconfig.CacheConfig) (cache.Cache, error) {
	if !cfg.Enable {
		return nil, nil
	}
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	cacheConfig.RedisAddr = cfg.Address
	cacheConfig.RedisPassword = cfg.Password
	cacheConfig.RedisDB = cfg.DB
	if cfg.TTL > 0 {
		cacheConfig.DefaultTTL = time.Duration(cfg.TTL) * time.Second
	}
	return cache.NewCache(cacheConfig)
}

// setupEmbedding 设置嵌入模型客户端，启用缓存时包装为缓存客户端
func setupEmbedding(cfg qaconfig.EmbedConfig, c cache.Cache, cacheCfg qaconfig.CacheConfig) (embedding.Client, error) {
	client, err := embedding.NewClient(cfg.Provider,
		embedding.WithAPIKey(cfg.APIKey),
		embedding.WithBaseURL(cfg.Endpoint),
		embedding.WithModel(cfg.Model),
		embedding.WithDimensions(cfg.Dimensions),
		embedding.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return client, nil
	}
	return embedding.NewCachedClient(client, c, time.Duration(cacheCfg.TTL)*time.Second), nil
}

// setupLLM 设置大语言模型客户端
func setupLLM(cfg qaconfig.LLMConfig) (llm.Client, error) {
	return llm.NewClient(cfg.Provider,
		llm.WithAPIKey(cfg.APIKey),
		llm.WithBaseURL(cfg.Endpoint),
		llm.WithModel(cfg.Model),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	)
}

// setupService 组装会话服务
func setupService(
	cfg *qaconfig.Config,
	scratchDir string,
	embedder embedding.Client,
	llmClient llm.Client,
	c cache.Cache,
	db *gorm.DB,
	noDiagram bool,
	logger *logrus.Logger,
) (*services.ExplorerService, error) {
	ingestOpts := []ingest.Option{
		ingest.WithScratchDir(scratchDir),
		ingest.WithGitHubToken(cfg.Ingest.GitHubToken),
		ingest.WithLogger(logger),
	}
	if cfg.Ingest.HTTPTimeout > 0 {
		ingestOpts = append(ingestOpts, ingest.WithHTTPTimeout(cfg.Ingest.HTTPTimeout))
	}
	if cfg.Ingest.MaxFileSize > 0 {
		ingestOpts = append(ingestOpts, ingest.WithMaxFileSize(cfg.Ingest.MaxFileSize))
	}
	if len(cfg.Ingest.Extensions) > 0 {
		ingestOpts = append(ingestOpts, ingest.WithExtensions(cfg.Ingest.Extensions))
	}

	store := retrieval.NewVectorStore(embedder,
		retrieval.WithRepositoryConfig(vectordb.Config{
			Type:         cfg.VectorDB.Type,
			DistanceType: vectordb.DistanceType(cfg.VectorDB.Distance),
		}),
		retrieval.WithBatchSize(cfg.Embed.BatchSize),
		retrieval.WithWorkers(cfg.Embed.Workers),
		retrieval.WithLogger(logger),
	)

	serviceOpts := []services.ExplorerOption{
		services.WithLogger(logger),
		services.WithChunking(cfg.Document.ChunkSize, cfg.Document.ChunkOverlap),
		services.WithTopK(cfg.Search.TopK),
	}
	if c != nil {
		serviceOpts = append(serviceOpts, services.WithAnswerCache(c, time.Duration(cfg.Cache.TTL)*time.Second))
	}
	if db != nil {
		serviceOpts = append(serviceOpts, services.WithHistoryRepository(repository.NewHistoryRepository(db)))
	}
	if noDiagram {
		serviceOpts = append(serviceOpts, services.WithGenerateOptions(pipeline.WithoutDiagram()))
	}

	return services.NewExplorerService(ingest.NewRegistry(ingestOpts...), store, llmClient, serviceOpts...)
}
