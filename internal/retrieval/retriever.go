package retrieval

import (
	"context"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// Retriever 问题到相关文档的查询接口
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]document.Document, error)
}

// IndexRetriever 基于向量索引的检索器
type IndexRetriever struct {
	index *Index
	k     int
}

// NewRetriever 创建每次返回至多k个文档的检索器
func NewRetriever(index *Index, k int) *IndexRetriever {
	return &IndexRetriever{index: index, k: k}
}

// Retrieve 检索与问题最相关的文档
func (r *IndexRetriever) Retrieve(ctx context.Context, question string) ([]document.Document, error) {
	return r.index.Query(ctx, question, r.k)
}
