package embedding

import (
	"context"
	"strconv"
	"time"

	"github.com/fyerfyer/arch-QA-system/internal/cache"
)

// Dimensioned 报告配置的向量维度，0表示模型默认值
type Dimensioned interface {
	Dimensions() int
}

// CachedClient 为嵌入客户端加一层结果缓存
// 缓存键包含模型名称和维度，不同模型或维度的向量不会混用
type CachedClient struct {
	client Client
	cache  cache.Cache
	ttl    time.Duration
	dims   string
}

// NewCachedClient 创建带缓存的嵌入客户端
func NewCachedClient(client Client, c cache.Cache, ttl time.Duration) *CachedClient {
	dims := "0"
	if d, ok := client.(Dimensioned); ok {
		dims = strconv.Itoa(d.Dimensions())
	}
	return &CachedClient{client: client, cache: c, ttl: ttl, dims: dims}
}

// Name 返回底层模型名称
func (c *CachedClient) Name() string {
	return c.client.Name()
}

func (c *CachedClient) key(text string) string {
	return cache.GenerateCacheKey("embed", c.client.Name(), c.dims, cache.HashKey(text))
}

// Embed 优先读取缓存
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	if found, err := cache.GetJSON(ctx, c.cache, c.key(text), &vec); err == nil && found {
		return vec, nil
	}

	vec, err := c.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	// 写缓存失败不影响结果
	_ = cache.SetJSON(ctx, c.cache, c.key(text), vec, c.ttl)
	return vec, nil
}

// EmbedBatch 只对未命中缓存的文本请求模型
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)

	for i, text := range texts {
		var vec []float32
		if found, err := cache.GetJSON(ctx, c.cache, c.key(text), &vec); err == nil && found {
			result[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vectors, err := c.client.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, NewEmbeddingError(ErrCodeServerError, "embedding count does not match input")
	}

	for j, vec := range vectors {
		result[missIdx[j]] = vec
		_ = cache.SetJSON(ctx, c.cache, c.key(missTexts[j]), vec, c.ttl)
	}
	return result, nil
}
