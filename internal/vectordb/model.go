package vectordb

import (
	"errors"
	"time"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// 常用错误定义
var (
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Record 向量记录，保存分块及其向量
type Record struct {
	ID        string         // 唯一标识符
	Seq       int            // 插入顺序，由仓库分配
	Vector    []float32      // 向量表示
	Chunk     document.Chunk // 原始分块
	CreatedAt time.Time      // 创建时间
}

// DistanceType 相似度计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
)

// SearchResult 搜索结果
type SearchResult struct {
	Record Record  // 命中的记录
	Score  float32 // 相似度得分，越大越相似
}

// Repository 向量仓库接口
// 构建阶段只写，构建完成后只读
type Repository interface {
	// AddBatch 按顺序批量添加记录
	AddBatch(records []Record) error

	// Search 返回得分最高的k条记录，得分相同时先插入的在前
	Search(vector []float32, k int) ([]SearchResult, error)

	// Count 获取记录总数
	Count() (int, error)

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 释放资源
	Close() error
}

// Config 向量仓库配置
type Config struct {
	Type         string       // 仓库类型，如 "memory", "faiss"
	Dimension    int          // 向量维度
	DistanceType DistanceType // 相似度计算类型
}

// Factory 向量仓库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量仓库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量仓库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量仓库实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用内存实现
		factory = NewMemoryRepository
	}
	return factory(config)
}
