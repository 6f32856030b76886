package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// TongyiClient 通义千问大模型客户端
type TongyiClient struct {
	config     *Config
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewTongyiClient 创建通义千问客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTongyiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = ModelQwenTurbo
	}

	return &TongyiClient{
		config:     cfg,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Generate 根据提示词生成回答
func (c *TongyiClient) Generate(ctx context.Context, prompt string, options ...CallOption) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}
	return c.Chat(ctx, promptMessages(prompt, applyCallOptions(options)), options...)
}

// Chat 进行多轮对话
func (c *TongyiClient) Chat(ctx context.Context, messages []Message, options ...CallOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	maxTokens, temperature, topP := applyCallOptions(options).resolve(c.config)
	params := &tongyiParameters{ResultFormat: "message"}
	if maxTokens > 0 {
		params.MaxTokens = &maxTokens
	}
	if temperature > 0 {
		params.Temperature = &temperature
	}
	if topP > 0 {
		params.TopP = &topP
	}

	body, err := json.Marshal(tongyiRequest{
		Model:      c.model,
		Input:      tongyiInput{Messages: messages},
		Parameters: params,
	})
	if err != nil {
		return nil, WrapError(ErrCodeInvalidRequest, "failed to marshal request", err)
	}

	var resp tongyiResponse
	err = withRetry(ctx, c.config.MaxRetries, func() error {
		return c.post(ctx, body, &resp)
	})
	if err != nil {
		return nil, err
	}

	var text string
	switch {
	case resp.Output.Text != nil:
		text = *resp.Output.Text
	case len(resp.Output.Choices) > 0:
		text = resp.Output.Choices[0].Message.Content
	default:
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	return &Response{
		Text:       text,
		TokenCount: resp.Usage.TotalTokens,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}, nil
}

// post 发送一次请求，每次重试都重新构造请求体
func (c *TongyiClient) post(ctx context.Context, body []byte, out *tongyiResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return WrapError(ErrCodeInvalidRequest, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return WrapError(ErrCodeTimeout, ErrMsgTimeout, err)
		}
		return WrapError(ErrCodeNetworkError, ErrMsgNetworkError, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapError(ErrCodeNetworkError, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		msg := string(data)
		if json.Unmarshal(data, &errResp) == nil && errResp.Message != "" {
			msg = fmt.Sprintf("%s (%s)", errResp.Message, errResp.Code)
		}
		return NewLLMError(codeForStatus(resp.StatusCode),
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, msg))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return WrapError(ErrCodeServerError, "failed to parse response", err)
	}
	if out.Code != "" {
		return NewLLMError(ErrCodeServerError, fmt.Sprintf("API error: %s (%s)", out.Message, out.Code))
	}
	return nil
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
