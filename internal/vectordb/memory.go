package vectordb

import (
	"fmt"
	"sync"
	"time"
)

// MemoryRepository 内存向量仓库，按插入顺序保存记录并暴力计算相似度
type MemoryRepository struct {
	mu        sync.RWMutex
	records   []Record
	dimension int
	distType  DistanceType
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension < 0 {
		return nil, fmt.Errorf("vector dimension must not be negative")
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}
	if distType != Cosine && distType != DotProduct {
		return nil, fmt.Errorf("unsupported distance type: %s", distType)
	}

	return &MemoryRepository{
		dimension: config.Dimension,
		distType:  distType,
	}, nil
}

// AddBatch 批量添加记录，任一记录无效时整批不写入
func (r *MemoryRepository) AddBatch(records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := r.dimension
	if dim == 0 && len(records) > 0 {
		dim = len(records[0].Vector)
	}

	prepared := make([]Record, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record %d has no ID", i)
		}
		if err := ValidateVector(rec.Vector, dim); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}

		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		if r.distType == Cosine {
			vec = NormalizeVector(vec)
		}
		rec.Vector = vec
		rec.Seq = len(r.records) + i
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		prepared = append(prepared, rec)
	}

	r.dimension = dim
	r.records = append(r.records, prepared...)
	return nil
}

// Search 对所有记录打分并返回前k条
func (r *MemoryRepository) Search(vector []float32, k int) ([]SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if k <= 0 || len(r.records) == 0 {
		return []SearchResult{}, nil
	}
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	query := vector
	if r.distType == Cosine {
		query = NormalizeVector(vector)
	}

	results := make([]SearchResult, 0, len(r.records))
	for _, rec := range r.records {
		// 存储的向量已归一化，余弦相似度退化为点积
		results = append(results, SearchResult{Record: rec, Score: dotProduct(query, rec.Vector)})
	}

	SortSearchResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count 获取记录总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// GetDimension 返回向量维度
func (r *MemoryRepository) GetDimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

// Close 清空记录
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	return nil
}

func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
