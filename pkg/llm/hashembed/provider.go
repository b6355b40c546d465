// Package hashembed 提供无外部依赖的确定性嵌入实现。
//
// 向量由 SHA-256 计数器模式展开得到：第 i 块为 sha256(text || uint32be(i))，
// 每 4 字节映射为 [-1, 1] 区间的浮点数，最后做 L2 归一化。
// 相同文本总是得到相同向量，主嵌入服务不可用时作为兜底。
package hashembed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/kart-io/docuverse/pkg/llm"
)

const (
	// ProviderName 供应商名称。
	ProviderName = "hashembed"
	// DefaultDimension 默认向量维度。
	DefaultDimension = 384
)

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(config map[string]any) (llm.EmbeddingProvider, error) {
		return New(llm.Int(config, "dimension", DefaultDimension)), nil
	})
}

// Provider 确定性哈希嵌入。
type Provider struct {
	dim int
}

// New 创建指定维度的哈希嵌入；dim <= 0 时使用 DefaultDimension。
func New(dim int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Provider{dim: dim}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

// Dimension 返回向量维度。
func (p *Provider) Dimension() int { return p.dim }

// Embed 为多个文本生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

func (p *Provider) vector(text string) []float32 {
	vec := make([]float32, p.dim)
	buf := make([]byte, len(text)+4)
	copy(buf, text)

	var counter uint32
	for filled := 0; filled < p.dim; counter++ {
		binary.BigEndian.PutUint32(buf[len(text):], counter)
		sum := sha256.Sum256(buf)
		for off := 0; off+4 <= len(sum) && filled < p.dim; off += 4 {
			u := binary.BigEndian.Uint32(sum[off : off+4])
			vec[filled] = float32(float64(u)/float64(math.MaxUint32)*2 - 1)
			filled++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

var _ llm.EmbeddingProvider = (*Provider)(nil)
