package faissdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/vectordb"
)

func newRecord(id, text string, vec []float32) vectordb.Record {
	return vectordb.Record{
		ID:     id,
		Vector: vec,
		Chunk: document.Chunk{Document: document.Document{
			Content:  text,
			Metadata: map[string]string{document.MetaSource: id},
		}},
	}
}

// newTestRepository 创建Faiss仓库，本机没有Faiss时跳过
func newTestRepository(t *testing.T) vectordb.Repository {
	repo, err := vectordb.NewRepository(vectordb.Config{
		Type:         "faiss",
		Dimension:    3,
		DistanceType: vectordb.Cosine,
	})
	if err != nil {
		t.Skipf("FAISS not available: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// TestFaissSearchOrdering 测试排序与并列时的插入顺序
func TestFaissSearchOrdering(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.AddBatch([]vectordb.Record{
		newRecord("a", "first", []float32{1, 0, 0}),
		newRecord("b", "second", []float32{0, 1, 0}),
		newRecord("c", "third", []float32{2, 0, 0}),
	}))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := repo.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// a与c归一化后相同，先插入的a在前
	assert.Equal(t, "a", results[0].Record.ID)
	assert.Equal(t, "c", results[1].Record.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

// TestFaissDimensionMismatch 测试维度不匹配
func TestFaissDimensionMismatch(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.AddBatch([]vectordb.Record{newRecord("a", "x", []float32{1, 0})})
	assert.ErrorIs(t, err, vectordb.ErrInvalidDimension)
}
