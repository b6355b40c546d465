// Package openai 提供兼容 OpenAI Chat Completions / Embeddings API 的供应商实现。
//
// 注册两个名称：
//   - "openai"：OpenAI 官方地址与模型。
//   - "groq"：Groq 的 OpenAI 兼容地址，默认模型 deepseek-r1-distill-llama-70b，
//     未配置 api_key 时读取环境变量 GROQ_API_KEY。
//
// 用法：
//
//	import _ "github.com/kart-io/docuverse/pkg/llm/openai"
//
//	chat, err := llm.NewChatProvider("groq", map[string]any{
//	    "temperature": 0.3,
//	    "max_tokens":  2000,
//	})
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/utils/httpclient"
)

const (
	// ProviderName 是 OpenAI 供应商的名称标识符。
	ProviderName = "openai"
	// GroqProviderName 是 Groq 兼容端点的名称标识符。
	GroqProviderName = "groq"

	// GroqBaseURL Groq OpenAI 兼容 API 地址。
	GroqBaseURL = "https://api.groq.com/openai/v1"
	// GroqDefaultModel Groq 默认对话模型。
	GroqDefaultModel = "deepseek-r1-distill-llama-70b"
	// GroqAPIKeyEnv Groq 密钥的环境变量名。
	GroqAPIKeyEnv = "GROQ_API_KEY"
)

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
	llm.RegisterProvider(GroqProviderName, NewGroqProvider)
}

// Config OpenAI 兼容供应商配置。
type Config struct {
	// Name 供应商名称，用于日志与缓存键。
	Name string `json:"name" mapstructure:"name"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Temperature 控制生成文本的随机性，范围 0.0-2.0。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// TopP 核采样参数，0 表示不设置。
	TopP float64 `json:"top_p" mapstructure:"top_p"`

	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// Stop 停止序列列表。
	Stop []string `json:"stop" mapstructure:"stop"`
}

// DefaultConfig 返回 OpenAI 官方默认配置。
func DefaultConfig() *Config {
	return &Config{
		Name:       ProviderName,
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    120 * time.Second,
	}
}

// GroqConfig 返回 Groq 兼容端点的默认配置。
func GroqConfig() *Config {
	return &Config{
		Name:        GroqProviderName,
		BaseURL:     GroqBaseURL,
		APIKey:      os.Getenv(GroqAPIKeyEnv),
		ChatModel:   GroqDefaultModel,
		Timeout:     120 * time.Second,
		Temperature: 0.3,
		MaxTokens:   2000,
	}
}

// Provider OpenAI 兼容供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	return newFromMap(DefaultConfig(), configMap)
}

// NewGroqProvider 从配置 map 创建 Groq 供应商。
func NewGroqProvider(configMap map[string]any) (llm.Provider, error) {
	return newFromMap(GroqConfig(), configMap)
}

func newFromMap(cfg *Config, configMap map[string]any) (llm.Provider, error) {
	cfg.BaseURL = strings.TrimRight(llm.String(configMap, "base_url", cfg.BaseURL), "/")
	cfg.APIKey = llm.String(configMap, "api_key", cfg.APIKey)
	cfg.EmbedModel = llm.String(configMap, "embed_model", cfg.EmbedModel)
	cfg.ChatModel = llm.String(configMap, "chat_model", cfg.ChatModel)
	cfg.Timeout = llm.Duration(configMap, "timeout", cfg.Timeout)
	cfg.Temperature = llm.Float(configMap, "temperature", cfg.Temperature)
	cfg.TopP = llm.Float(configMap, "top_p", cfg.TopP)
	cfg.MaxTokens = llm.Int(configMap, "max_tokens", cfg.MaxTokens)

	switch val := configMap["stop"].(type) {
	case []string:
		cfg.Stop = val
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok {
				cfg.Stop = append(cfg.Stop, s)
			}
		}
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api_key 是必需的", cfg.Name)
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = ProviderName
	}
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.config.Name
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if p.config.EmbedModel == "" {
		return nil, fmt.Errorf("%s: embed_model 未配置", p.Name())
	}

	var resp embeddingResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/embeddings", p.headers(),
		embeddingRequest{Model: p.config.EmbedModel, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}

	// 按 index 归位，保证与输入顺序一致
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("%s: missing embedding for input %d", p.Name(), i)
		}
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	temperature := p.config.Temperature
	req := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: &temperature,
		TopP:        p.config.TopP,
		Stop:        p.config.Stop,
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", p.headers(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: 未返回响应内容", p.Name())
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.Chat(ctx, llm.BuildMessages(prompt, systemPrompt))
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.config.APIKey}
}
