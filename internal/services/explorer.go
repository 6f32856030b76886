package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gorm.io/datatypes"

	"github.com/fyerfyer/arch-QA-system/internal/cache"
	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/ingest"
	"github.com/fyerfyer/arch-QA-system/internal/llm"
	"github.com/fyerfyer/arch-QA-system/internal/models"
	"github.com/fyerfyer/arch-QA-system/internal/pipeline"
	"github.com/fyerfyer/arch-QA-system/internal/repository"
	"github.com/fyerfyer/arch-QA-system/internal/retrieval"
)

var (
	// ErrNoSources 没有提供任何来源
	ErrNoSources = errors.New("at least one source is required")
	// ErrEmptyQuestion 问题为空
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrSessionNotReady 会话没有可用的索引
	ErrSessionNotReady = errors.New("session has no index")
)

// SourceLoader 批量加载来源
type SourceLoader interface {
	Load(ctx context.Context, sources []ingest.Source) ingest.Result
}

// Answer 一次提问的结果
type Answer struct {
	Question   string             `json:"question"`
	Answer     string             `json:"answer"`
	Diagram    string             `json:"diagram,omitempty"`
	HasDiagram bool               `json:"has_diagram"`
	Sources    []models.SourceRef `json:"sources"`
	Cached     bool               `json:"cached"`
}

// ExplorerService 负责建立会话索引并回答问题
type ExplorerService struct {
	loader       SourceLoader
	store        *retrieval.VectorStore
	llm          llm.Client
	cache        cache.Cache
	cacheTTL     time.Duration
	history      repository.HistoryRepository
	chunkSize    int
	chunkOverlap int
	topK         int
	generateOpts []pipeline.GenerateOption
	logger       *logrus.Logger
}

// ExplorerOption 服务配置选项
type ExplorerOption func(*ExplorerService)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ExplorerOption {
	return func(s *ExplorerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAnswerCache 设置回答缓存
func WithAnswerCache(c cache.Cache, ttl time.Duration) ExplorerOption {
	return func(s *ExplorerService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithHistoryRepository 设置问答历史仓储
func WithHistoryRepository(repo repository.HistoryRepository) ExplorerOption {
	return func(s *ExplorerService) {
		s.history = repo
	}
}

// WithChunking 设置分块大小和重叠
func WithChunking(size, overlap int) ExplorerOption {
	return func(s *ExplorerService) {
		s.chunkSize = size
		s.chunkOverlap = overlap
	}
}

// WithTopK 设置每个问题检索的片段数
func WithTopK(k int) ExplorerOption {
	return func(s *ExplorerService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithGenerateOptions 设置生成阶段选项
func WithGenerateOptions(opts ...pipeline.GenerateOption) ExplorerOption {
	return func(s *ExplorerService) {
		s.generateOpts = append(s.generateOpts, opts...)
	}
}

// NewExplorerService 创建服务实例，分块配置非法时返回 document.ErrInvalidChunkConfig
func NewExplorerService(loader SourceLoader, store *retrieval.VectorStore, client llm.Client, opts ...ExplorerOption) (*ExplorerService, error) {
	defaults := document.DefaultSplitterConfig()
	s := &ExplorerService{
		loader:       loader,
		store:        store,
		llm:          client,
		cacheTTL:     time.Hour,
		chunkSize:    defaults.ChunkSize,
		chunkOverlap: defaults.ChunkOverlap,
		topK:         4,
		logger:       logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	chunking := document.SplitterConfig{ChunkSize: s.chunkSize, ChunkOverlap: s.chunkOverlap}
	if err := chunking.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// BuildSession 采集来源、分块并建立索引
// 部分来源失败时仍然建立会话，失败明细记录在会话中
func (s *ExplorerService) BuildSession(ctx context.Context, sources []ingest.Source) (*Session, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()
	result := s.loader.Load(ctx, sources)
	details := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		details = append(details, f.Error())
	}

	if len(result.Documents) == 0 {
		if err := result.FailureError(); err != nil {
			return nil, fmt.Errorf("%w: %v", retrieval.ErrNoDocuments, err)
		}
		return nil, retrieval.ErrNoDocuments
	}

	chunks, err := document.Split(result.Documents, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}

	index, err := s.store.Build(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	session := &Session{
		ID:             uuid.New().String(),
		Index:          index,
		Sources:        sources,
		Documents:      len(result.Documents),
		Chunks:         len(chunks),
		Failures:       len(result.Failures),
		FailureDetails: details,
		CreatedAt:      time.Now(),
	}

	if s.history != nil {
		raw, _ := json.Marshal(sources)
		err := s.history.WithContext(ctx).SaveSession(&models.ExplorerSession{
			ID:        session.ID,
			Sources:   datatypes.JSON(raw),
			Documents: session.Documents,
			Chunks:    session.Chunks,
			Failures:  session.Failures,
			CreatedAt: session.CreatedAt,
		})
		if err != nil {
			s.logger.WithField("session_id", session.ID).WithError(err).Warn("Failed to persist session")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"documents":  session.Documents,
		"chunks":     session.Chunks,
		"failures":   session.Failures,
		"elapsed":    time.Since(start).String(),
	}).Info("Session built")
	return session, nil
}

// Ask 在会话索引上回答问题，返回结果和追加了本轮问答的新会话
func (s *ExplorerService) Ask(ctx context.Context, session *Session, question string) (*Answer, *Session, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, session, ErrEmptyQuestion
	}
	if session == nil || session.Index == nil {
		return nil, session, ErrSessionNotReady
	}

	cacheKey := cache.GenerateCacheKey("answer", cache.HashKey(session.ID, question))
	answer, err := s.cachedAnswer(ctx, cacheKey)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read answer cache")
	}

	if answer == nil {
		orchestrator := pipeline.New(
			retrieval.NewRetriever(session.Index, s.topK),
			s.llm,
			pipeline.WithGenerateOptions(s.generateOpts...),
			pipeline.WithLogger(s.logger),
		)
		state, err := orchestrator.Run(ctx, question)
		if err != nil {
			return nil, session, err
		}

		diagram, ok := state.Diagram()
		answer = &Answer{
			Question:   question,
			Answer:     state.Answer(),
			Diagram:    diagram,
			HasDiagram: ok,
			Sources:    sourceRefs(state.Docs()),
		}
		// 没有检索到文档时不缓存，索引可能已被关闭
		if s.cache != nil && len(state.Docs()) > 0 {
			if err := cache.SetJSON(ctx, s.cache, cacheKey, answer, s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("Failed to write answer cache")
			}
		}
	}

	turn := Turn{
		Question: question,
		Answer:   answer.Answer,
		Diagram:  answer.Diagram,
		Sources:  answer.Sources,
		AskedAt:  time.Now(),
	}
	s.persistTurn(ctx, session.ID, turn)

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"sources":    len(answer.Sources),
		"diagram":    answer.HasDiagram,
		"cached":     answer.Cached,
	}).Info("Question answered")
	return answer, session.withTurn(turn), nil
}

// cachedAnswer 读取缓存的回答，未命中时返回nil
func (s *ExplorerService) cachedAnswer(ctx context.Context, key string) (*Answer, error) {
	if s.cache == nil {
		return nil, nil
	}
	var answer Answer
	found, err := cache.GetJSON(ctx, s.cache, key, &answer)
	if err != nil || !found {
		return nil, err
	}
	answer.Cached = true
	return &answer, nil
}

// persistTurn 保存问答记录，失败只记录日志
func (s *ExplorerService) persistTurn(ctx context.Context, sessionID string, turn Turn) {
	if s.history == nil {
		return
	}
	raw, _ := json.Marshal(turn.Sources)
	err := s.history.WithContext(ctx).CreateRecord(&models.QARecord{
		SessionID: sessionID,
		Question:  turn.Question,
		Answer:    turn.Answer,
		Diagram:   turn.Diagram,
		Sources:   datatypes.JSON(raw),
		CreatedAt: turn.AskedAt,
	})
	if err != nil {
		s.logger.WithField("session_id", sessionID).WithError(err).Warn("Failed to persist question")
	}
}

// History 返回持久化的问答记录，未配置仓储时为空
func (s *ExplorerService) History(ctx context.Context, sessionID string, offset, limit int) ([]*models.QARecord, int64, error) {
	if s.history == nil {
		return nil, 0, nil
	}
	return s.history.WithContext(ctx).ListRecords(sessionID, offset, limit)
}

// CloseSession 释放会话索引并删除持久化的记录
func (s *ExplorerService) CloseSession(ctx context.Context, session *Session) error {
	if session == nil {
		return nil
	}
	var err error
	if closeErr := session.Index.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close index: %w", closeErr))
	}
	if s.history != nil {
		if delErr := s.history.WithContext(ctx).DeleteSession(session.ID); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to delete history: %w", delErr))
		}
	}
	return err
}

// sourceRefs 提取文档来源，同一来源只保留一次
func sourceRefs(docs []document.Document) []models.SourceRef {
	refs := make([]models.SourceRef, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		src := doc.Source()
		if seen[src] {
			continue
		}
		seen[src] = true
		refs = append(refs, models.SourceRef{Source: src, Title: doc.Title()})
	}
	return refs
}
