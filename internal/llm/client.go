package llm

import (
	"context"
	"time"
)

// Client 大模型客户端接口
type Client interface {
	// Generate 根据单条提示词生成回答
	Generate(ctx context.Context, prompt string, options ...CallOption) (*Response, error)

	// Chat 根据消息列表生成回答
	Chat(ctx context.Context, messages []Message, options ...CallOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 大模型客户端配置
type Config struct {
	APIKey      string        // API密钥
	BaseURL     string        // API端点，为空时使用提供商默认值
	Model       string        // 模型名称，为空时使用提供商默认值
	Timeout     time.Duration // 单次请求超时时间
	MaxRetries  int           // 可重试错误的最大重试次数
	MaxTokens   int           // 最大生成Token数，0表示不限制
	Temperature float32       // 采样温度
	TopP        float32       // 核采样概率阈值，0表示使用模型默认值
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		MaxTokens:   1500,
		Temperature: 0.2,
	}
}

// Option 客户端配置选项
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API端点
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP 设置核采样概率阈值
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// NewConfig 创建配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// CallOption 单次调用的选项，覆盖客户端配置
type CallOption func(*CallOptions)

// CallOptions 单次调用的选项集合，nil表示沿用客户端配置
type CallOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
	System      string // 附加的系统提示词
}

// WithCallMaxTokens 设置本次调用的最大Token数
func WithCallMaxTokens(tokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = &tokens
	}
}

// WithCallTemperature 设置本次调用的采样温度
func WithCallTemperature(temp float32) CallOption {
	return func(o *CallOptions) {
		o.Temperature = &temp
	}
}

// WithCallTopP 设置本次调用的核采样概率阈值
func WithCallTopP(topP float32) CallOption {
	return func(o *CallOptions) {
		o.TopP = &topP
	}
}

// WithSystemPrompt 为Generate调用加上系统提示词
func WithSystemPrompt(system string) CallOption {
	return func(o *CallOptions) {
		o.System = system
	}
}

// resolve 合并调用选项与客户端配置
func (o *CallOptions) resolve(cfg *Config) (maxTokens int, temperature, topP float32) {
	maxTokens, temperature, topP = cfg.MaxTokens, cfg.Temperature, cfg.TopP
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	if o.TopP != nil {
		topP = *o.TopP
	}
	return maxTokens, temperature, topP
}

func applyCallOptions(options []CallOption) *CallOptions {
	opts := &CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// promptMessages 将单条提示词转换为消息列表
func promptMessages(prompt string, opts *CallOptions) []Message {
	messages := make([]Message, 0, 2)
	if opts.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: opts.System})
	}
	return append(messages, Message{Role: RoleUser, Content: prompt})
}

// Factory 大模型客户端工厂函数
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient 注册大模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据提供商名称创建大模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(ErrCodeInvalidRequest, "llm client type not registered: "+name)
	}
	return factory(opts...)
}
