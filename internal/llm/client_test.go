package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestMockClientGenerate 测试Mock客户端的文本生成
func TestMockClientGenerate(t *testing.T) {
	mockClient := NewMockClient(t)

	expectedResp := &Response{
		Text:       "Service A depends on B",
		TokenCount: 5,
		ModelName:  "mock-model",
		FinishTime: time.Now(),
	}
	mockClient.EXPECT().Generate(mock.Anything, "describe", mock.Anything).Return(expectedResp, nil)

	resp, err := mockClient.Generate(context.Background(), "describe")
	assert.NoError(t, err)
	assert.Equal(t, expectedResp.Text, resp.Text)
	assert.Equal(t, expectedResp.TokenCount, resp.TokenCount)
}

// TestMockClientErrors 测试Mock客户端返回错误
func TestMockClientErrors(t *testing.T) {
	mockClient := NewMockClient(t)

	mockClient.EXPECT().Generate(mock.Anything, "", mock.Anything).
		Return(nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt))

	_, err := mockClient.Generate(context.Background(), "")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)

	mockClient.EXPECT().Chat(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey))

	_, err = mockClient.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
}

// TestConfigAndOptions 测试配置选项
func TestConfigAndOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)

	cfg = NewConfig(
		WithAPIKey("test-key"),
		WithModel("custom-model"),
		WithTimeout(30*time.Second),
		WithMaxRetries(5),
		WithMaxTokens(100),
		WithTemperature(0.5),
		WithTopP(0.8),
	)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "custom-model", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 100, cfg.MaxTokens)
	assert.Equal(t, float32(0.5), cfg.Temperature)
	assert.Equal(t, float32(0.8), cfg.TopP)
}

// TestCallOptionsResolve 测试调用选项覆盖客户端配置
func TestCallOptionsResolve(t *testing.T) {
	cfg := NewConfig(WithMaxTokens(100), WithTemperature(0.5))

	maxTokens, temp, topP := applyCallOptions(nil).resolve(cfg)
	assert.Equal(t, 100, maxTokens)
	assert.Equal(t, float32(0.5), temp)
	assert.Zero(t, topP)

	maxTokens, temp, topP = applyCallOptions([]CallOption{
		WithCallMaxTokens(10),
		WithCallTemperature(0),
		WithCallTopP(0.9),
	}).resolve(cfg)
	assert.Equal(t, 10, maxTokens)
	assert.Zero(t, temp)
	assert.Equal(t, float32(0.9), topP)

	messages := promptMessages("q", applyCallOptions([]CallOption{WithSystemPrompt("sys")}))
	require.Len(t, messages, 2)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, RoleUser, messages[1].Role)
}

// TestClientFactory 测试客户端注册表
func TestClientFactory(t *testing.T) {
	RegisterClient("test-factory", func(opts ...Option) (Client, error) {
		return NewMockClient(t), nil
	})

	client, err := NewClient("test-factory")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient("invalid-type")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)

	_, err = NewClient("openai")
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
}

// TestTongyiClient 使用本地HTTP服务模拟通义千问接口
func TestTongyiClient(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		// 第一次返回服务端错误，验证重试会重新发送请求体
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":"Throttling","message":"busy"}`))
			return
		}

		var req tongyiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelQwenPlus, req.Model)
		require.Len(t, req.Input.Messages, 1)
		assert.Equal(t, "explain", req.Input.Messages[0].Content)
		require.NotNil(t, req.Parameters.MaxTokens)
		assert.Equal(t, 64, *req.Parameters.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"request_id": "1",
			"output": {"choices": [{"finish_reason": "stop", "message": {"role": "assistant", "content": "A calls B"}}]},
			"usage": {"input_tokens": 3, "output_tokens": 4, "total_tokens": 7}
		}`))
	}))
	defer server.Close()

	client, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithModel(ModelQwenPlus),
	)
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "explain", WithCallMaxTokens(64))
	require.NoError(t, err)
	assert.Equal(t, "A calls B", resp.Text)
	assert.Equal(t, 7, resp.TokenCount)
	assert.Equal(t, ModelQwenPlus, resp.ModelName)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	_, err = client.Generate(context.Background(), "  ")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
}

// TestTongyiClientBadRequest 客户端错误不重试
func TestTongyiClientBadRequest(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"InvalidParameter","message":"bad input"}`))
	}))
	defer server.Close()

	client, err := NewTongyiClient(WithAPIKey("k"), WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "explain")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
	assert.Contains(t, llmErr.Message, "bad input")
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

// TestOpenAIClient 使用本地HTTP服务模拟OpenAI对话接口
func TestOpenAIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.True(t, strings.HasPrefix(req.Messages[1].Content, "Question"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": "graph TD; A-->B"},
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 6, "total_tokens": 11},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("test-key"), WithBaseURL(server.URL+"/v1"))
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIModel, client.Name())

	resp, err := client.Generate(context.Background(), "Question: who calls B?", WithSystemPrompt("be brief"))
	require.NoError(t, err)
	assert.Equal(t, "graph TD; A-->B", resp.Text)
	assert.Equal(t, 11, resp.TokenCount)
}

// TestOpenAIClientUnauthorized 认证失败映射为无效密钥错误
func TestOpenAIClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("k"), WithBaseURL(server.URL+"/v1"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
	assert.False(t, IsRetryable(err))
}

// TestRenderPrompt 测试提示词模板填充
func TestRenderPrompt(t *testing.T) {
	ctx := "File: a.go\nfunc A() { B() }"
	prompt := RenderPrompt(ArchitectureTemplate, "What calls B?", ctx)
	assert.Contains(t, prompt, "Expert Software Architect")
	assert.Contains(t, prompt, ctx)
	assert.Contains(t, prompt, "What calls B?")
	assert.NotContains(t, prompt, "{{.")

	diagram := RenderPrompt(DiagramTemplate, "ignored", ctx)
	assert.Contains(t, diagram, "Mermaid.js")
	assert.Contains(t, diagram, ctx)
	assert.NotContains(t, diagram, "ignored")
}

// TestTongyiClientIntegration 只有在设置TONGYI_API_KEY时才运行
func TestTongyiClientIntegration(t *testing.T) {
	apiKey := os.Getenv("TONGYI_API_KEY")
	if apiKey == "" {
		t.Skip("Haven't set TONGYI_API_KEY environment variable, skipping test")
	}

	client, err := NewTongyiClient(WithAPIKey(apiKey), WithTimeout(10*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := client.Generate(ctx, "你好", WithCallMaxTokens(5))
	if err != nil {
		t.Skipf("API calling error: %v", err)
	}
	assert.NotEmpty(t, resp.Text)
}
