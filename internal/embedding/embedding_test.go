package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/arch-QA-system/internal/cache"
)

// countingClient 记录调用次数的测试客户端，向量首元素为文本长度
type countingClient struct {
	mu       sync.Mutex
	calls    int
	maxBatch int
	failOn   string
}

func (c *countingClient) Name() string { return "counting" }

func (c *countingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *countingClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	if len(texts) > c.maxBatch {
		c.maxBatch = len(texts)
	}
	c.mu.Unlock()

	result := make([][]float32, len(texts))
	for i, text := range texts {
		if text == c.failOn {
			return nil, NewEmbeddingError(ErrCodeServerError, "boom")
		}
		result[i] = []float32{float32(len(text)), 1}
	}
	return result, nil
}

func (c *countingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// TestClientRegistry 测试客户端注册表
func TestClientRegistry(t *testing.T) {
	client, err := NewClient("local", WithDimensions(32))
	require.NoError(t, err)
	assert.Equal(t, "local-hash", client.Name())

	_, err = NewClient("not-registered")
	var embErr EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)

	// 远程提供商必须配置API密钥
	for _, name := range []string{"openai", "tongyi"} {
		_, err := NewClient(name)
		require.True(t, errors.As(err, &embErr), name)
		assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
	}
}

// TestLocalClient 测试本地哈希嵌入
func TestLocalClient(t *testing.T) {
	ctx := context.Background()
	client, err := NewLocalClient(WithDimensions(64))
	require.NoError(t, err)

	v1, err := client.Embed(ctx, "The parser calls the lexer")
	require.NoError(t, err)
	v2, err := client.Embed(ctx, "The parser calls the lexer")
	require.NoError(t, err)

	assert.Len(t, v1, 64)
	assert.Equal(t, v1, v2, "embedding must be deterministic")

	var norm float64
	for _, v := range v1 {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	_, err = client.Embed(ctx, "   ")
	assert.Error(t, err)

	vectors, err := client.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}

// TestTokenize 测试词元切分
func TestTokenize(t *testing.T) {
	tokens := Tokenize("NewVectorStore builds the index_size.")
	assert.Contains(t, tokens, "newvectorstore")
	assert.Contains(t, tokens, "vector")
	assert.Contains(t, tokens, "store")
	assert.Contains(t, tokens, "index")
	assert.Contains(t, tokens, "size")
	assert.Contains(t, tokens, "builds")

	assert.Equal(t, []string{"中文测试"}, Tokenize("中文测试！"))
}

// TestBatchProcessor 测试批处理顺序与批大小
func TestBatchProcessor(t *testing.T) {
	client := &countingClient{}
	processor := NewBatchProcessor(client, 3, 2)

	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, strings.Repeat("x", i+1))
	}

	vectors, err := processor.Process(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 10)

	for i, vec := range vectors {
		assert.Equal(t, float32(i+1), vec[0], "vector %d out of order", i)
	}
	assert.Equal(t, 4, client.callCount())
	assert.LessOrEqual(t, client.maxBatch, 3)

	empty, err := processor.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestBatchProcessorError 测试批次失败时返回错误
func TestBatchProcessorError(t *testing.T) {
	client := &countingClient{failOn: "bad"}
	processor := NewBatchProcessor(client, 2, 2)

	_, err := processor.Process(context.Background(), []string{"a", "b", "bad", "c"})
	require.Error(t, err)

	var embErr EmbeddingError
	assert.True(t, errors.As(err, &embErr))
	assert.True(t, IsRetryable(err))
}

// TestCachedClient 测试缓存命中时不再请求模型
func TestCachedClient(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	inner := &countingClient{}
	client := NewCachedClient(inner, c, time.Minute)

	v1, err := client.Embed(ctx, "hello")
	require.NoError(t, err)
	v2, err := client.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.callCount())

	vectors, err := client.EmbedBatch(ctx, []string{"hello", "world!"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(5), vectors[0][0])
	assert.Equal(t, float32(6), vectors[1][0])
	// 只有未命中的 "world!" 触发一次请求
	assert.Equal(t, 2, inner.callCount())
	assert.Equal(t, 1, inner.maxBatch)
}

// TestCachedClientDimensions 测试共享缓存时不同维度的向量互不复用
func TestCachedClientDimensions(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	small, err := NewLocalClient(WithDimensions(128))
	require.NoError(t, err)
	large, err := NewLocalClient(WithDimensions(256))
	require.NoError(t, err)

	v, err := NewCachedClient(small, c, time.Minute).Embed(ctx, "event sourcing")
	require.NoError(t, err)
	assert.Len(t, v, 128)

	v, err = NewCachedClient(large, c, time.Minute).Embed(ctx, "event sourcing")
	require.NoError(t, err)
	assert.Len(t, v, 256)

	vectors, err := NewCachedClient(large, c, time.Minute).EmbedBatch(ctx, []string{"event sourcing", "snapshots"})
	require.NoError(t, err)
	for _, vec := range vectors {
		assert.Len(t, vec, 256)
	}
}

// TestWithRetry 测试只重试可重试错误
func TestWithRetry(t *testing.T) {
	var attempts int32
	err := withRetry(context.Background(), 2, func() error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(2), attempts)

	attempts = 0
	err = withRetry(context.Background(), 3, func() error {
		atomic.AddInt32(&attempts, 1)
		return NewEmbeddingError(ErrCodeInvalidRequest, "bad")
	})
	assert.Error(t, err)
	assert.Equal(t, int32(1), attempts)

	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}
