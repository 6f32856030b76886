package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultLocalDimensions = 256

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// LocalClient 本地特征哈希嵌入
// 不依赖外部服务，结果只由文本决定，用于离线运行与测试
type LocalClient struct {
	dimensions int
}

// NewLocalClient 创建本地嵌入客户端
func NewLocalClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultLocalDimensions
	}
	return &LocalClient{dimensions: dims}, nil
}

// Name 返回模型名称
func (c *LocalClient) Name() string {
	return "local-hash"
}

// Dimensions 返回配置的向量维度
func (c *LocalClient) Dimensions() int {
	return c.dimensions
}

// Embed 将词元哈希到固定维度并归一化
func (c *LocalClient) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vec := make([]float32, c.dimensions)
	for _, token := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % uint64(c.dimensions))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch 逐条生成向量
func (c *LocalClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

// Tokenize 提取小写词元，驼峰标识符额外拆出各个单词
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenPattern.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		tokens = append(tokens, lower)

		parts := splitIdentifier(word)
		if len(parts) > 1 {
			for _, p := range parts {
				tokens = append(tokens, strings.ToLower(p))
			}
		}
	}
	return tokens
}

// splitIdentifier 按下划线和大小写边界拆分标识符
func splitIdentifier(word string) []string {
	var (
		parts []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(word)
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case i > 0 && isUpper(r) && !isUpper(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return parts
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func init() {
	RegisterClient("local", NewLocalClient)
}
