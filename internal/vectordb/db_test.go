package vectordb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/arch-QA-system/internal/document"
)

// createTestRecord 创建用于测试的记录
func createTestRecord(id string, vector []float32) Record {
	return Record{
		ID:     id,
		Vector: vector,
		Chunk: document.Chunk{Document: document.Document{
			Content:  "这是测试分块 " + id,
			Metadata: map[string]string{document.MetaSource: id},
		}},
	}
}

func newMemoryRepo(t *testing.T, distType DistanceType) Repository {
	repo, err := NewRepository(Config{Type: "memory", DistanceType: distType})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// TestMemoryRepositorySearch 测试内存仓库的排序与截断
func TestMemoryRepositorySearch(t *testing.T) {
	repo := newMemoryRepo(t, Cosine)

	require.NoError(t, repo.AddBatch([]Record{
		createTestRecord("x", []float32{1, 0, 0}),
		createTestRecord("y", []float32{0, 1, 0}),
		createTestRecord("xy", []float32{1, 1, 0}),
	}))
	assert.Equal(t, 3, repo.GetDimension())

	t.Run("ranked by score", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0.2, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "x", results[0].Record.ID)
		assert.Equal(t, "xy", results[1].Record.ID)
		assert.Equal(t, "y", results[2].Record.ID)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("k limits results", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		results, err = repo.Search([]float32{1, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("non-positive k", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := repo.Search([]float32{1, 0}, 1)
		assert.ErrorIs(t, err, ErrInvalidDimension)
	})
}

// TestMemoryRepositoryTies 得分相同时先插入的记录在前
func TestMemoryRepositoryTies(t *testing.T) {
	repo := newMemoryRepo(t, Cosine)

	var records []Record
	for i := 0; i < 5; i++ {
		records = append(records, createTestRecord(fmt.Sprintf("r%d", i), []float32{1, 1}))
	}
	require.NoError(t, repo.AddBatch(records[:3]))
	require.NoError(t, repo.AddBatch(records[3:]))

	for round := 0; round < 3; round++ {
		results, err := repo.Search([]float32{1, 1}, 4)
		require.NoError(t, err)
		require.Len(t, results, 4)
		for i, res := range results {
			assert.Equal(t, fmt.Sprintf("r%d", i), res.Record.ID)
			assert.Equal(t, i, res.Record.Seq)
		}
	}
}

// TestMemoryRepositoryEmpty 空仓库返回空结果
func TestMemoryRepositoryEmpty(t *testing.T) {
	repo := newMemoryRepo(t, DotProduct)

	results, err := repo.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

// TestMemoryRepositoryRejectsBadBatch 无效记录导致整批失败
func TestMemoryRepositoryRejectsBadBatch(t *testing.T) {
	repo := newMemoryRepo(t, Cosine)

	err := repo.AddBatch([]Record{
		createTestRecord("ok", []float32{1, 0}),
		createTestRecord("bad", []float32{1, 0, 0}),
	})
	assert.ErrorIs(t, err, ErrInvalidDimension)

	count, _ := repo.Count()
	assert.Zero(t, count)

	err = repo.AddBatch([]Record{{Vector: []float32{1}}})
	assert.Error(t, err)
}

// TestComputeScore 测试相似度计算
func TestComputeScore(t *testing.T) {
	score, err := ComputeScore([]float32{1, 0}, []float32{2, 0}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)

	score, err = ComputeScore([]float32{1, 2}, []float32{3, 4}, DotProduct)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, score, 1e-6)

	score, err = ComputeScore([]float32{0, 0}, []float32{1, 0}, Cosine)
	require.NoError(t, err)
	assert.Zero(t, score)

	_, err = ComputeScore([]float32{1}, []float32{1, 2}, Cosine)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	_, err = ComputeScore([]float32{1}, []float32{1}, "l2")
	assert.Error(t, err)
}

// TestSortSearchResults 测试排序规则
func TestSortSearchResults(t *testing.T) {
	results := []SearchResult{
		{Record: Record{ID: "b", Seq: 1}, Score: 0.5},
		{Record: Record{ID: "c", Seq: 2}, Score: 0.9},
		{Record: Record{ID: "a", Seq: 0}, Score: 0.5},
	}
	SortSearchResults(results)

	assert.Equal(t, "c", results[0].Record.ID)
	assert.Equal(t, "a", results[1].Record.ID)
	assert.Equal(t, "b", results[2].Record.ID)
}
