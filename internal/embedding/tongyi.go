package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// 默认API端点
	defaultDashScopeEndpoint  = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
	defaultCompatibleEndpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"

	defaultTongyiModel = "text-embedding-v3"
)

// dashScopeRequest DashScope原生接口请求体
type dashScopeRequest struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters *dashScopeParameter `json:"parameters,omitempty"`
}

type dashScopeInput struct {
	Texts []string `json:"texts"`
}

type dashScopeParameter struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// dashScopeResponse DashScope原生接口响应体
type dashScopeResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Output  struct {
		Embeddings []struct {
			Embedding []float32 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
}

// compatibleResponse OpenAI兼容接口响应体
type compatibleResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// TongyiClient 通义千问嵌入API客户端
type TongyiClient struct {
	apiKey     string       // API密钥
	endpoint   string       // API端点
	model      string       // 模型名称
	httpClient *http.Client // HTTP客户端
	maxRetries int          // 最大重试次数
	dimensions int          // 向量维度
	compatible bool         // 是否使用OpenAI兼容接口
}

// NewTongyiClient 创建新的通义千问嵌入客户端
// BaseURL 为 "compatible" 时使用OpenAI兼容接口
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	endpoint := cfg.BaseURL
	compatible := false
	switch endpoint {
	case "":
		endpoint = defaultDashScopeEndpoint
	case "compatible", "openai":
		endpoint = defaultCompatibleEndpoint
		compatible = true
	}

	model := cfg.Model
	if model == "" {
		model = defaultTongyiModel
	}

	return &TongyiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		dimensions: cfg.Dimensions,
		compatible: compatible,
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Dimensions 返回配置的向量维度
func (c *TongyiClient) Dimensions() int {
	return c.dimensions
}

// Embed 生成单条文本的向量表示
func (c *TongyiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成文本的向量表示
func (c *TongyiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	// v3模型单次最多10条，v1/v2最多25条
	if limit := c.batchLimit(); len(texts) > limit {
		return nil, NewEmbeddingError(ErrCodeBatchTooLarge,
			fmt.Sprintf("%s supports at most %d texts per batch", c.model, limit))
	}
	for _, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
	}

	var (
		result [][]float32
		err    error
	)
	if c.compatible {
		result, err = c.embedCompatible(ctx, texts)
	} else {
		result, err = c.embedDashScope(ctx, texts)
	}
	if err != nil {
		return nil, err
	}

	for i, vec := range result {
		if len(vec) == 0 {
			return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("missing embedding for input %d", i))
		}
	}
	return result, nil
}

// embedCompatible 使用OpenAI兼容接口
func (c *TongyiClient) embedCompatible(ctx context.Context, texts []string) ([][]float32, error) {
	reqData := map[string]interface{}{
		"model":           c.model,
		"input":           texts,
		"encoding_format": "float",
	}
	if c.isV3Model() && c.dimensions > 0 {
		reqData["dimensions"] = c.dimensions
	}

	var resp compatibleResponse
	if err := c.post(ctx, reqData, &resp); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(texts) {
			result[item.Index] = item.Embedding
		}
	}
	return result, nil
}

// embedDashScope 使用DashScope原生接口
func (c *TongyiClient) embedDashScope(ctx context.Context, texts []string) ([][]float32, error) {
	reqData := dashScopeRequest{
		Model: c.model,
		Input: dashScopeInput{Texts: texts},
	}
	if c.isV3Model() {
		reqData.Parameters = &dashScopeParameter{OutputType: "dense", Dimension: c.dimensions}
	}

	var resp dashScopeResponse
	if err := c.post(ctx, reqData, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("API error: %s (%s)", resp.Message, resp.Code))
	}

	result := make([][]float32, len(texts))
	for _, emb := range resp.Output.Embeddings {
		if emb.TextIndex >= 0 && emb.TextIndex < len(texts) {
			result[emb.TextIndex] = emb.Embedding
		}
	}
	return result, nil
}

// post 发送请求并解析响应，网络错误、限流和5xx会重试
func (c *TongyiClient) post(ctx context.Context, reqData interface{}, respObj interface{}) error {
	body, err := json.Marshal(reqData)
	if err != nil {
		return WrapError(ErrCodeInvalidRequest, "failed to marshal request", err)
	}

	return withRetry(ctx, c.maxRetries, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return WrapError(ErrCodeInvalidRequest, "failed to create request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return WrapError(ErrCodeNetworkError, ErrMsgNetworkError, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return WrapError(ErrCodeNetworkError, "failed to read response", err)
		}
		if resp.StatusCode != http.StatusOK {
			return NewEmbeddingError(codeForStatus(resp.StatusCode),
				fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(data)))
		}
		if err := json.Unmarshal(data, respObj); err != nil {
			return WrapError(ErrCodeServerError, "failed to parse response", err)
		}
		return nil
	})
}

func (c *TongyiClient) isV3Model() bool {
	return c.model == "text-embedding-v3"
}

func (c *TongyiClient) batchLimit() int {
	if c.isV3Model() {
		return 10
	}
	return 25
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
