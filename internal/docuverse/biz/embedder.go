package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/pkg/llm"
)

// EmbedderMode 实际使用的嵌入策略。
type EmbedderMode string

const (
	EmbedderPrimary  EmbedderMode = "primary"
	EmbedderFallback EmbedderMode = "fallback"
)

const (
	// ProbeText 能力探测使用的文本。
	ProbeText = "docuverse capability probe"
	// DefaultProbeTimeout 能力探测超时。
	DefaultProbeTimeout = 10 * time.Second
)

// SelectEmbedder 探测主嵌入服务，成功返回非空向量时使用它，否则退回 fallback。
// 结果在调用方实例的生命周期内固定。
func SelectEmbedder(ctx context.Context, primary, fallback llm.EmbeddingProvider, timeout time.Duration) (llm.EmbeddingProvider, EmbedderMode) {
	if primary == nil {
		logger.Warnw("no primary embedder configured, using fallback", "fallback", fallback.Name())
		return fallback, EmbedderFallback
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vec, err := primary.EmbedSingle(probeCtx, ProbeText)
	if err != nil || len(vec) == 0 {
		fields := []any{"primary", primary.Name(), "fallback", fallback.Name()}
		if err != nil {
			fields = append(fields, "error", err.Error())
		}
		logger.Warnw("primary embedder probe failed, using fallback", fields...)
		return fallback, EmbedderFallback
	}

	logger.Infow("primary embedder selected", "embedder", primary.Name(), "dimension", len(vec))
	return primary, EmbedderPrimary
}
