// Package vectorindex 实现按会话持久化的内存向量索引。
//
// 索引以 JSON 形式整体写入 index.json；分块向量另外按内容哈希缓存在
// embeddings.gob 中，重建时未变化的分块不会再次调用嵌入服务。
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kart-io/docuverse/internal/pkg/rag/docutil"
	"github.com/kart-io/docuverse/internal/pkg/rag/loader"
	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
	"github.com/kart-io/docuverse/pkg/infra/tracing"
	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/utils/json"
)

const (
	// IndexFile 持久化索引文件名。
	IndexFile = "index.json"

	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
	DefaultBatchSize    = 32
	DefaultTopK         = 5
)

// ErrDimensionMismatch 查询向量与索引维度不一致，通常意味着嵌入服务已更换。
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Chunk 索引中的一个文本分块。
type Chunk struct {
	ID           string         `json:"id"`
	DocumentName string         `json:"document_name"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	Embedding    []float32      `json:"embedding"`
}

// ScoredChunk 带相似度分数的检索结果。
type ScoredChunk struct {
	ID           string         `json:"id"`
	DocumentName string         `json:"document_name"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	Score        float64        `json:"score"`
}

// Index 内存向量索引。构建完成后只读，可被多个 goroutine 并发查询。
type Index struct {
	Dimension int       `json:"dimension"`
	Embedder  string    `json:"embedder"`
	BuiltAt   time.Time `json:"built_at"`
	Chunks    []Chunk   `json:"chunks"`
}

// Options 构建参数。
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	// CacheDir 为空时不使用向量缓存。
	CacheDir string
}

func (o *Options) complete() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
}

// Len 返回分块数量。
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Chunks)
}

// Empty 报告索引是否没有任何分块。
func (ix *Index) Empty() bool {
	return ix.Len() == 0
}

// Build 切分文档并生成向量。没有文档时返回空索引。
func Build(ctx context.Context, embedder llm.EmbeddingProvider, docs []loader.Document, opts Options) (*Index, error) {
	opts.complete()
	ctx, span := tracing.StartSpan(ctx, "vectorindex.Build")
	defer span.End()

	chunks := chunkDocuments(docs, opts.ChunkSize, opts.ChunkOverlap)
	ix := &Index{Embedder: embedder.Name(), BuiltAt: time.Now(), Chunks: chunks}
	tracing.AddSpanAttributes(ctx, tracing.Int(tracing.ChunkCount, len(chunks)))
	if len(chunks) == 0 {
		return ix, nil
	}

	cache := loadEmbeddingCache(opts.CacheDir, embedder.Name())
	var (
		pending []int
		texts   []string
	)
	for i := range chunks {
		if v, ok := cache.get(chunks[i].Content); ok {
			chunks[i].Embedding = v
			continue
		}
		pending = append(pending, i)
		texts = append(texts, chunks[i].Content)
	}

	for start := 0; start < len(texts); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+opts.BatchSize, len(texts))
		vectors, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed chunks: expected %d vectors, got %d", end-start, len(vectors))
		}
		for j, v := range vectors {
			chunks[pending[start+j]].Embedding = v
		}
	}

	ix.Dimension = len(chunks[0].Embedding)
	for _, c := range chunks {
		if len(c.Embedding) != ix.Dimension {
			return nil, fmt.Errorf("%w: chunk %s has %d, want %d", ErrDimensionMismatch, c.ID, len(c.Embedding), ix.Dimension)
		}
	}

	if opts.CacheDir != "" {
		if err := saveEmbeddingCache(opts.CacheDir, embedder.Name(), chunks); err != nil {
			// 缓存只影响下次重建的速度。
			tracing.RecordError(ctx, err)
		}
	}
	return ix, nil
}

func chunkDocuments(docs []loader.Document, size, overlap int) []Chunk {
	var chunks []Chunk
	for _, doc := range docs {
		docID := doc.ID()
		name, _ := doc.Metadata[loader.KeyFileName].(string)
		parts := textutil.ChunkSentences(textutil.SplitSentences(doc.Text), size, overlap)
		for n, part := range parts {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk_index"] = n
			chunks = append(chunks, Chunk{
				ID:           fmt.Sprintf("%s#%d", docID, n),
				DocumentName: name,
				Content:      part,
				Metadata:     meta,
			})
		}
	}
	return chunks
}

// Query 返回与 text 最相似的 topK 个分块，分数相同时按 ID 排序。
// cutoff > 0 时丢弃分数低于 cutoff 的结果。
func (ix *Index) Query(ctx context.Context, embedder llm.EmbeddingProvider, text string, topK int, cutoff float64) ([]ScoredChunk, error) {
	if ix.Empty() {
		return []ScoredChunk{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	q, err := embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != ix.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), ix.Dimension)
	}

	results := make([]ScoredChunk, 0, len(ix.Chunks))
	for _, c := range ix.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := textutil.CosineSimilarity(q, c.Embedding)
		if cutoff > 0 && score < cutoff {
			continue
		}
		results = append(results, ScoredChunk{
			ID:           c.ID,
			DocumentName: c.DocumentName,
			Content:      c.Content,
			Metadata:     c.Metadata,
			Score:        score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Persist 把索引原子地写入 dir/index.json。
func (ix *Index) Persist(dir string) error {
	if err := docutil.EnsureDir(dir); err != nil {
		return err
	}
	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, IndexFile), data)
}

// Load 读取 dir/index.json。
func Load(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, err
	}
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &ix, nil
}

// Exists 报告 dir 下是否存在持久化索引。
func Exists(dir string) bool {
	return docutil.FileExists(filepath.Join(dir, IndexFile))
}

// writeFileAtomic 先写临时文件再 rename，读者不会看到写了一半的文件。
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	err = os.Rename(tmpName, path)
	return err
}
