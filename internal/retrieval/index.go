package retrieval

import (
	"context"
	"fmt"

	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/embedding"
	"github.com/fyerfyer/arch-QA-system/internal/vectordb"
)

// Hit 检索命中的文档及其得分
type Hit struct {
	Document document.Document `json:"document"`
	Score    float32           `json:"score"`
}

// Index 已建立的向量索引，可被多个会话并发读取
type Index struct {
	repo     vectordb.Repository
	embedder embedding.Client
	size     int
}

// Size 返回索引中的分块数，nil索引为0
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// Query 返回与text最相似的至多k个文档，按得分从高到低排列
func (idx *Index) Query(ctx context.Context, text string, k int) ([]document.Document, error) {
	hits, err := idx.QueryWithScores(ctx, text, k)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Document
	}
	return docs, nil
}

// QueryWithScores 与Query相同，同时返回得分
// 空索引或k<=0时返回空结果而不是错误
func (idx *Index) QueryWithScores(ctx context.Context, text string, k int) ([]Hit, error) {
	if idx.Size() == 0 || k <= 0 {
		return []Hit{}, nil
	}

	vector, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := idx.repo.Search(vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Document: r.Record.Chunk.Document, Score: r.Score}
	}
	return hits, nil
}

// Close 释放向量仓库
func (idx *Index) Close() error {
	if idx == nil || idx.repo == nil {
		return nil
	}
	return idx.repo.Close()
}
