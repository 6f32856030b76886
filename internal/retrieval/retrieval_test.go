package retrieval

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/arch-QA-system/internal/document"
	"github.com/fyerfyer/arch-QA-system/internal/embedding"
	"github.com/fyerfyer/arch-QA-system/internal/vectordb"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T, opts ...StoreOption) *VectorStore {
	t.Helper()
	embedder, err := embedding.NewLocalClient()
	require.NoError(t, err)
	return NewVectorStore(embedder, append([]StoreOption{WithLogger(quietLogger())}, opts...)...)
}

func chunksOf(t *testing.T, contents ...string) []document.Chunk {
	t.Helper()
	chunks := make([]document.Chunk, 0, len(contents))
	for i, c := range contents {
		doc, err := document.NewDocument(c, map[string]string{document.MetaSource: "file" + string(rune('a'+i)) + ".go"}, document.LangGo)
		require.NoError(t, err)
		chunks = append(chunks, document.Chunk{Document: doc, Index: 0})
	}
	return chunks
}

// failingEmbedder 总是返回错误的嵌入客户端
type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }
func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

// TestBuildEmpty 空输入无法建立索引
func TestBuildEmpty(t *testing.T) {
	store := newTestStore(t)
	idx, err := store.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Nil(t, idx)
}

// TestBuildEmbeddingFailure 嵌入失败时返回错误
func TestBuildEmbeddingFailure(t *testing.T) {
	store := NewVectorStore(failingEmbedder{}, WithLogger(quietLogger()))
	_, err := store.Build(context.Background(), chunksOf(t, "func A() {}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
}

// TestQueryRanking 测试检索结果按得分排序且不超过k
func TestQueryRanking(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithBatchSize(2), WithWorkers(2))
	chunks := chunksOf(t,
		"the router dispatches http requests to handlers",
		"the repository stores sessions in sqlite",
		"the cache keeps answers in redis",
		"handlers call the session service",
	)

	idx, err := store.Build(ctx, chunks)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 4, idx.Size())

	hits, err := idx.QueryWithScores(ctx, "the repository stores sessions in sqlite", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "fileb.go", hits[0].Document.Source())
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	// 相同查询结果相同
	again, err := idx.QueryWithScores(ctx, "the repository stores sessions in sqlite", 3)
	require.NoError(t, err)
	assert.Equal(t, hits, again)

	docs, err := idx.Query(ctx, "handlers", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

// TestQueryTies 得分相同时先插入的在前
func TestQueryTies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	idx, err := store.Build(ctx, chunksOf(t, "alpha beta", "alpha beta", "gamma"))
	require.NoError(t, err)

	docs, err := idx.Query(ctx, "alpha beta", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "filea.go", docs[0].Source())
	assert.Equal(t, "fileb.go", docs[1].Source())
}

// TestQueryEmptyIndex 空索引、nil索引和k<=0都返回空结果
func TestQueryEmptyIndex(t *testing.T) {
	ctx := context.Background()

	var idx *Index
	docs, err := idx.Query(ctx, "anything", 3)
	assert.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, idx.Close())

	store := newTestStore(t)
	built, err := store.Build(ctx, chunksOf(t, "something"))
	require.NoError(t, err)
	docs, err = built.Query(ctx, "something", 0)
	assert.NoError(t, err)
	assert.Empty(t, docs)
}

// TestDotProductRepository 使用点积度量建立索引
func TestDotProductRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithRepositoryConfig(vectordb.Config{Type: "memory", DistanceType: vectordb.DotProduct}))
	idx, err := store.Build(ctx, chunksOf(t, "parse config", "load plugins"))
	require.NoError(t, err)

	docs, err := idx.Query(ctx, "load plugins", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "load plugins", docs[0].Content)
}

// TestRetriever 测试检索器使用固定的k
func TestRetriever(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	idx, err := store.Build(ctx, chunksOf(t, "A calls B.", "B calls C.", "C is a leaf."))
	require.NoError(t, err)

	var r Retriever = NewRetriever(idx, 2)
	docs, err := r.Retrieve(ctx, "What calls what?")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	empty := NewRetriever(nil, 2)
	docs, err = empty.Retrieve(ctx, "What calls what?")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
