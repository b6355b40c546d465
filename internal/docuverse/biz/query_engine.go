package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/docuverse/internal/docuverse/metrics"
	"github.com/kart-io/docuverse/internal/docuverse/vectorindex"
	"github.com/kart-io/docuverse/internal/pkg/rag/loader"
	ctxlog "github.com/kart-io/docuverse/pkg/infra/logger"
	"github.com/kart-io/docuverse/pkg/infra/pool"
	"github.com/kart-io/docuverse/pkg/infra/tracing"
	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/llm/resilience"
)

// Outcome 一次问答的结果类别。
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeCacheHit    Outcome = "cache_hit"
	OutcomeNoContext   Outcome = "no_context"
	OutcomeIndexFailed Outcome = "index_failed"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeError       Outcome = "error"
)

// 面向用户的固定提示。
const (
	MsgIndexFailed = "Failed to initialize document index. Please try refreshing the page."
	MsgNoContext   = "I couldn't find any relevant information in the documents. Please try uploading relevant documents or rephrasing your question."
	MsgRateLimited = "I'm currently experiencing high demand. Please try again in a few moments."
	MsgTimedOut    = "The request took too long to process. Please try again or try with a simpler question."
	MsgUnavailable = "The language model service is temporarily unavailable. Please try again shortly."
	MsgGeneric     = "I encountered an error processing your question. Please try again or contact support if the problem persists."
)

// DefaultTopK 每个问题检索的分块数。
const DefaultTopK = 5

// Source 回答引用的文档片段。
type Source struct {
	ID      string  `json:"id"`
	File    string  `json:"file"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
}

// Evaluation 回答的评估记录。
type Evaluation struct {
	Query        string    `json:"query"`
	Response     string    `json:"response"`
	ContextCount int       `json:"context_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// QueryResult 问答结果。失败时 Answer 为固定提示。
type QueryResult struct {
	Answer     string      `json:"answer"`
	Outcome    Outcome     `json:"outcome"`
	Sources    []Source    `json:"sources"`
	Cached     bool        `json:"cached"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// Failed 报告回答是否为失败提示。
func (r *QueryResult) Failed() bool {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeCacheHit:
		return false
	default:
		return true
	}
}

// QueryEngineConfig 问答引擎配置。
type QueryEngineConfig struct {
	SessionID       string
	Index           *IndexManager
	LLM             *LLMClient
	Cache           *ResponseCache
	TopK            int
	MaxContextChars int
	Metrics         *metrics.Metrics
}

// QueryEngine 单个会话的问答引擎。
type QueryEngine struct {
	sessionID string
	index     *IndexManager
	llm       *LLMClient
	llmPool   *pool.Pool
	cache     *ResponseCache
	prompt    *PromptAssembler
	topK      int
	metrics   *metrics.Metrics
}

// NewQueryEngine 创建问答引擎，并为它分配独立的模型调用池。
func NewQueryEngine(cfg QueryEngineConfig) (*QueryEngine, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Cache == nil {
		cfg.Cache = NewResponseCache(nil, ResponseCacheConfig{})
	}

	p, err := pool.NewPool("llm-"+cfg.SessionID, pool.LLMPool, pool.LLMPoolConfig())
	if err != nil {
		return nil, err
	}

	return &QueryEngine{
		sessionID: cfg.SessionID,
		index:     cfg.Index,
		llm:       cfg.LLM.WithPool(p),
		llmPool:   p,
		cache:     cfg.Cache,
		prompt:    NewPromptAssembler(cfg.MaxContextChars),
		topK:      cfg.TopK,
		metrics:   cfg.Metrics,
	}, nil
}

// Index 返回引擎使用的索引管理器。
func (e *QueryEngine) Index() *IndexManager {
	return e.index
}

// Query 回答问题。history 是包含当前问题在内的会话消息。
// 查询路径上的错误都会转换为带固定提示的结果，不会返回 error。
func (e *QueryEngine) Query(ctx context.Context, question string, history []llm.Message) *QueryResult {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "QueryEngine.Query", tracing.String(tracing.SessionID, e.sessionID))
	defer span.End()
	ctx = ctxlog.WithTraceFields(ctxlog.WithSessionID(ctx, e.sessionID))

	res := e.query(ctx, question, history)

	tracing.AddSpanAttributes(ctx,
		tracing.String(tracing.Outcome, string(res.Outcome)),
		tracing.Bool(tracing.Cached, res.Cached),
	)
	e.metrics.RecordQuery(string(res.Outcome), time.Since(start))
	ctxlog.FromContext(ctx).Infow("question answered",
		"outcome", string(res.Outcome),
		"sources", len(res.Sources),
		"duration", time.Since(start).String(),
	)
	return res
}

func (e *QueryEngine) query(ctx context.Context, question string, history []llm.Message) *QueryResult {
	if cached, ok := e.cache.Get(ctx, e.sessionID, question); ok {
		e.metrics.RecordCache(true)
		return &QueryResult{
			Answer:  cached.Answer,
			Outcome: OutcomeCacheHit,
			Sources: cached.Sources,
			Cached:  true,
		}
	}
	e.metrics.RecordCache(false)

	if err := e.index.EnsureIndex(ctx); err != nil {
		ctxlog.FromContext(ctx).Errorw("failed to ensure index", "error", err.Error())
		tracing.RecordError(ctx, err)
		return failure(OutcomeIndexFailed, MsgIndexFailed)
	}

	chunks := e.index.Query(ctx, question, e.topK)
	if len(chunks) == 0 {
		return failure(OutcomeNoContext, MsgNoContext)
	}
	tracing.AddSpanAttributes(ctx, tracing.Int(tracing.ChunkCount, len(chunks)))

	prompt := e.prompt.Build(
		question,
		e.prompt.FormatContext(chunks, 0),
		e.prompt.FormatHistory(history),
	)

	answer, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		tracing.RecordError(ctx, err)
		switch resilience.Classify(err) {
		case resilience.ClassRateLimited:
			return failure(OutcomeRateLimited, MsgRateLimited)
		case resilience.ClassTimedOut:
			return failure(OutcomeTimedOut, MsgTimedOut)
		case resilience.ClassUnavailable:
			return failure(OutcomeError, MsgUnavailable)
		default:
			return failure(OutcomeError, MsgGeneric)
		}
	}

	answer = strings.TrimSpace(answer)
	sources := sourcesOf(chunks)
	e.cache.Set(ctx, &CachedAnswer{
		SessionID: e.sessionID,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
	})

	contexts := make([]string, len(chunks))
	for i, c := range chunks {
		contexts[i] = c.Content
	}
	eval := e.Evaluate(question, answer, contexts)
	return &QueryResult{
		Answer:     answer,
		Outcome:    OutcomeSuccess,
		Sources:    sources,
		Evaluation: &eval,
	}
}

func failure(outcome Outcome, msg string) *QueryResult {
	return &QueryResult{Answer: msg, Outcome: outcome, Sources: []Source{}}
}

func sourcesOf(chunks []vectorindex.ScoredChunk) []Source {
	out := make([]Source, len(chunks))
	for i, c := range chunks {
		section, _ := c.Metadata[loader.KeySection].(string)
		out[i] = Source{ID: c.ID, File: sourceName(c), Section: section, Score: c.Score}
	}
	return out
}

// Evaluate 生成回答的评估记录。
func (e *QueryEngine) Evaluate(query, response string, contexts []string) Evaluation {
	return Evaluation{
		Query:        query,
		Response:     response,
		ContextCount: len(contexts),
		Timestamp:    time.Now(),
	}
}

// Invalidate 删除一个问题的缓存回答。
func (e *QueryEngine) Invalidate(ctx context.Context, question string) {
	e.cache.Invalidate(ctx, e.sessionID, question)
}

// Close 关闭索引管理器并释放模型调用池。
func (e *QueryEngine) Close() {
	e.index.Close()
	e.llmPool.Release()
}
