package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIClient OpenAI（及兼容接口）嵌入客户端
type OpenAIClient struct {
	client     *openai.Client // OpenAI API客户端
	model      string         // 使用的嵌入模型
	dimensions int            // 向量维度，0表示使用模型默认值
	batchSize  int            // 单次请求最大文本数
	maxRetries int            // 最大重试次数
}

// NewOpenAIClient 创建一个新的OpenAI嵌入客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Dimensions 返回配置的向量维度
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

// Embed 对单个文本生成嵌入向量
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 对多个文本生成嵌入向量
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.batchSize > 0 && len(texts) > c.batchSize {
		return nil, NewEmbeddingError(ErrCodeBatchTooLarge, ErrMsgBatchTooLarge)
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}
	// 只有v3系列模型支持自定义维度
	if c.dimensions > 0 && strings.HasPrefix(c.model, "text-embedding-3") {
		req.Dimensions = c.dimensions
	}

	var resp openai.EmbeddingResponse
	err := withRetry(ctx, c.maxRetries, func() error {
		var callErr error
		resp, callErr = c.client.CreateEmbeddings(ctx, req)
		return classifyOpenAIError(callErr)
	})
	if err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			continue
		}
		result[item.Index] = item.Embedding
	}
	for i, vec := range result {
		if len(vec) == 0 {
			return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("missing embedding for input %d", i))
		}
	}
	return result, nil
}

// classifyOpenAIError 将SDK错误转换为带错误码的嵌入错误
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return WrapError(codeForStatus(apiErr.HTTPStatusCode), apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return WrapError(codeForStatus(reqErr.HTTPStatusCode), "request failed", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WrapError(ErrCodeTimeout, ErrMsgTimeout, err)
	}
	return WrapError(ErrCodeNetworkError, ErrMsgNetworkError, err)
}

// codeForStatus 根据HTTP状态码选择错误码
func codeForStatus(status int) int {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeInvalidAPIKey
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status >= 500:
		return ErrCodeServerError
	default:
		return ErrCodeInvalidRequest
	}
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
