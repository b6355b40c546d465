// Package huggingface 提供 HuggingFace Inference API 供应商实现。
// docuverse 使用它的 feature-extraction 管道生成 BAAI/bge-small-en-v1.5 嵌入。
package huggingface

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/utils/httpclient"
	"github.com/kart-io/docuverse/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

// TokenEnv 未配置 api_key 时读取的环境变量。
const TokenEnv = "HF_TOKEN"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	APIKey       string        `json:"api_key" mapstructure:"api_key"`
	EmbedModel   string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel    string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	Temperature  float64       `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int           `json:"max_tokens" mapstructure:"max_tokens"`
	WaitForModel bool          `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		APIKey:       os.Getenv(TokenEnv),
		EmbedModel:   "BAAI/bge-small-en-v1.5",
		ChatModel:    "mistralai/Mistral-7B-Instruct-v0.2",
		Timeout:      120 * time.Second,
		Temperature:  0.3,
		MaxTokens:    1024,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = strings.TrimRight(llm.String(configMap, "base_url", cfg.BaseURL), "/")
	cfg.APIKey = llm.String(configMap, "api_key", cfg.APIKey)
	cfg.EmbedModel = llm.String(configMap, "embed_model", cfg.EmbedModel)
	cfg.ChatModel = llm.String(configMap, "chat_model", cfg.ChatModel)
	cfg.Timeout = llm.Duration(configMap, "timeout", cfg.Timeout)
	cfg.Temperature = llm.Float(configMap, "temperature", cfg.Temperature)
	cfg.MaxTokens = llm.Int(configMap, "max_tokens", cfg.MaxTokens)
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type waitOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

type embeddingRequest struct {
	Inputs  []string     `json:"inputs"`
	Options *waitOptions `json:"options,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		req.Options = &waitOptions{WaitForModel: true}
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	var raw json.RawMessage
	if err := p.client.PostJSON(ctx, url, p.headers(), req, &raw); err != nil {
		return nil, err
	}

	embeddings, err := decodeEmbeddings(raw)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("huggingface: expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// decodeEmbeddings 解析句向量 [][]float32，或对 token 级 [][][]float32 做均值池化。
func decodeEmbeddings(raw []byte) ([][]float32, error) {
	var embeddings [][]float32
	if err := json.Unmarshal(raw, &embeddings); err == nil {
		return embeddings, nil
	}

	var tokens [][][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	embeddings = make([][]float32, len(tokens))
	for i, seq := range tokens {
		if len(seq) == 0 {
			continue
		}
		mean := make([]float32, len(seq[0]))
		for _, tok := range seq {
			for j, v := range tok {
				if j < len(mean) {
					mean[j] += v
				}
			}
		}
		for j := range mean {
			mean[j] /= float32(len(seq))
		}
		embeddings[i] = mean
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

type generateRequest struct {
	Inputs     string          `json:"inputs"`
	Parameters *generateParams `json:"parameters,omitempty"`
	Options    *waitOptions    `json:"options,omitempty"`
}

type generateParams struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return p.generate(ctx, formatMessages(messages))
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return p.generate(ctx, formatMessages(llm.BuildMessages(prompt, systemPrompt)))
}

func (p *Provider) generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Inputs: prompt,
		Parameters: &generateParams{
			MaxNewTokens: p.config.MaxTokens,
			Temperature:  p.config.Temperature,
		},
	}
	if p.config.WaitForModel {
		req.Options = &waitOptions{WaitForModel: true}
	}

	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.ChatModel)
	var responses []generateResponse
	if err := p.client.PostJSON(ctx, url, p.headers(), req, &responses); err != nil {
		return "", err
	}
	if len(responses) == 0 {
		return "", fmt.Errorf("huggingface: 未返回响应内容")
	}
	return responses[0].GeneratedText, nil
}

// formatMessages 将消息格式化为 Mistral 指令模板。
func formatMessages(messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser:
			fmt.Fprintf(&b, "[INST] %s [/INST]\n", msg.Content)
		case llm.RoleAssistant:
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.config.APIKey}
}
