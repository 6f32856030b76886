package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/embedding"
	"github.com/fyerfyer/arch-QA-system/internal/vectordb"
)

// ErrNoDocuments 没有可用于建立索引的分块
var ErrNoDocuments = errors.New("no documents to index")

// VectorStore 负责把分块嵌入并写入向量仓库
type VectorStore struct {
	embedder  embedding.Client
	repoCfg   vectordb.Config
	batchSize int
	workers   int
	logger    *logrus.Logger
}

// StoreOption 向量存储配置选项
type StoreOption func(*VectorStore)

// WithRepositoryConfig 设置向量仓库类型与相似度度量，维度由首个向量决定
func WithRepositoryConfig(cfg vectordb.Config) StoreOption {
	return func(s *VectorStore) {
		s.repoCfg = cfg
	}
}

// WithBatchSize 设置每次嵌入请求的文本数
func WithBatchSize(size int) StoreOption {
	return func(s *VectorStore) {
		s.batchSize = size
	}
}

// WithWorkers 设置并发嵌入请求数
func WithWorkers(workers int) StoreOption {
	return func(s *VectorStore) {
		s.workers = workers
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) StoreOption {
	return func(s *VectorStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewVectorStore 创建向量存储
func NewVectorStore(embedder embedding.Client, opts ...StoreOption) *VectorStore {
	s := &VectorStore{
		embedder:  embedder,
		repoCfg:   vectordb.Config{Type: "memory", DistanceType: vectordb.Cosine},
		batchSize: 16,
		workers:   4,
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build 嵌入全部分块并建立索引
// 构建是一次性的批处理，返回的索引之后只读
func (s *VectorStore) Build(ctx context.Context, chunks []document.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}

	start := time.Now()
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	processor := embedding.NewBatchProcessor(s.embedder, s.batchSize, s.workers)
	vectors, err := processor.Process(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))
	}

	dim := len(vectors[0])
	records := make([]vectordb.Record, len(chunks))
	now := time.Now()
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("chunk %d: %w: expected %d, got %d", i, vectordb.ErrInvalidDimension, dim, len(vec))
		}
		records[i] = vectordb.Record{
			ID:        uuid.New().String(),
			Vector:    vec,
			Chunk:     chunks[i],
			CreatedAt: now,
		}
	}

	cfg := s.repoCfg
	cfg.Dimension = dim
	repo, err := vectordb.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector repository: %w", err)
	}
	if err := repo.AddBatch(records); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to add records: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"chunks":    len(chunks),
		"dimension": dim,
		"embedder":  s.embedder.Name(),
		"elapsed":   time.Since(start).String(),
	}).Info("Vector index built")

	return &Index{repo: repo, embedder: s.embedder, size: len(records)}, nil
}
