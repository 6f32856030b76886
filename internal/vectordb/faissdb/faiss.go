// Package faissdb 基于Faiss平坦索引的向量仓库，导入即注册为 "faiss"
package faissdb

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataIntelligenceCrew/go-faiss"

	"github.com/fyerfyer/arch-QA-system/internal/vectordb"
)

// Repository Faiss向量仓库
// 记录按插入顺序保存，下标即Faiss中的位置
type Repository struct {
	mu        sync.RWMutex
	index     faiss.Index
	records   []vectordb.Record
	dimension int
	distType  vectordb.DistanceType
}

// NewRepository 创建Faiss向量仓库，必须指定维度
func NewRepository(config vectordb.Config) (vectordb.Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType == "" {
		distType = vectordb.Cosine
	}
	if distType != vectordb.Cosine && distType != vectordb.DotProduct {
		return nil, fmt.Errorf("unsupported distance type: %s", distType)
	}

	// 余弦相似度通过归一化向量上的内积实现
	index, err := faiss.NewIndexFlat(config.Dimension, faiss.MetricInnerProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %w", err)
	}

	return &Repository{
		index:     index,
		dimension: config.Dimension,
		distType:  distType,
	}, nil
}

// AddBatch 批量添加记录
func (r *Repository) AddBatch(records []vectordb.Record) error {
	if len(records) == 0 {
		return nil
	}

	flat := make([]float32, 0, len(records)*r.dimension)
	prepared := make([]vectordb.Record, 0, len(records))
	for _, rec := range records {
		if err := vectordb.ValidateVector(rec.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for record %s: %w", rec.ID, err)
		}
		vec := rec.Vector
		if r.distType == vectordb.Cosine {
			vec = vectordb.NormalizeVector(vec)
		}
		rec.Vector = vec
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		flat = append(flat, vec...)
		prepared = append(prepared, rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.index.Add(flat); err != nil {
		return fmt.Errorf("failed to add vectors to index: %w", err)
	}
	start := len(r.records)
	for i := range prepared {
		prepared[i].Seq = start + i
	}
	r.records = append(r.records, prepared...)
	return nil
}

// Search 相似度搜索
// 平坦索引本身就要扫描全部向量，这里取回全部结果再按统一规则排序截断
func (r *Repository) Search(vector []float32, k int) ([]vectordb.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.records)
	if k <= 0 || total == 0 {
		return []vectordb.SearchResult{}, nil
	}
	if err := vectordb.ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == vectordb.Cosine {
		vector = vectordb.NormalizeVector(vector)
	}

	scores, labels, err := r.index.Search(vector, int64(total))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]vectordb.SearchResult, 0, len(labels))
	for i, label := range labels {
		if label < 0 || int(label) >= total {
			continue
		}
		results = append(results, vectordb.SearchResult{
			Record: r.records[label],
			Score:  scores[i],
		})
	}

	vectordb.SortSearchResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count 获取记录总数
func (r *Repository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// GetDimension 返回向量维度
func (r *Repository) GetDimension() int {
	return r.dimension
}

// Close 释放Faiss索引
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
		r.index = nil
	}
	r.records = nil
	return nil
}

func init() {
	vectordb.RegisterRepository("faiss", NewRepository)
}
