package vectorindex

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/internal/pkg/rag/loader"
	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
	"github.com/kart-io/docuverse/pkg/llm/hashembed"
)

// countingEmbedder 统计被嵌入的文本数量。
type countingEmbedder struct {
	*hashembed.Provider
	texts atomic.Int64
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{Provider: hashembed.New(64)}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.texts.Add(int64(len(texts)))
	return c.Provider.Embed(ctx, texts)
}

func doc(file, section, text string) loader.Document {
	meta := map[string]any{
		loader.KeySourceFile: "/uploads/s1/" + file,
		loader.KeyFileName:   file,
	}
	if section != "" {
		meta[loader.KeySection] = section
	}
	return loader.Document{Text: text, Metadata: meta}
}

func sampleDocs() []loader.Document {
	return []loader.Document{
		doc("go.md", "", "Go is a statically typed language. Goroutines are cheap threads."),
		doc("rust.md", "", "Rust has ownership and borrowing. The borrow checker enforces it."),
		doc("deck.pptx", "slide 1", "Quarterly revenue grew by ten percent."),
	}
}

func TestBuildEmptyIndex(t *testing.T) {
	ix, err := Build(context.Background(), hashembed.New(0), nil, Options{})
	require.NoError(t, err)
	assert.True(t, ix.Empty())
	assert.Equal(t, "hashembed", ix.Embedder)

	res, err := ix.Query(context.Background(), hashembed.New(0), "anything", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestBuildChunksAndIDs(t *testing.T) {
	long := strings.Repeat("This sentence is exactly forty chars ok. ", 30)
	docs := []loader.Document{doc("long.txt", "", long)}

	ix, err := Build(context.Background(), hashembed.New(0), docs, Options{ChunkSize: 200, ChunkOverlap: 50})
	require.NoError(t, err)
	require.Greater(t, ix.Len(), 1)
	assert.Equal(t, 384, ix.Dimension)

	docID := textutil.HashString("/uploads/s1/long.txt")[:16]
	for n, c := range ix.Chunks {
		assert.Equal(t, docID+"#"+strconv.Itoa(n), c.ID)
		assert.Equal(t, "long.txt", c.DocumentName)
		assert.LessOrEqual(t, textutil.RuneLen(c.Content), 200)
		assert.Equal(t, n, c.Metadata["chunk_index"])
		assert.Len(t, c.Embedding, 384)
	}
}

func TestQueryOrderingAndCutoff(t *testing.T) {
	embedder := hashembed.New(0)
	ix, err := Build(context.Background(), embedder, sampleDocs(), Options{})
	require.NoError(t, err)
	require.Equal(t, 3, ix.Len())

	// 与分块内容完全相同的查询得分为 1，排在第一位
	res, err := ix.Query(context.Background(), embedder, "Quarterly revenue grew by ten percent.", 5, 0)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "deck.pptx", res[0].DocumentName)
	assert.Equal(t, "slide 1", res[0].Metadata[loader.KeySection])
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}

	top1, err := ix.Query(context.Background(), embedder, "Quarterly revenue grew by ten percent.", 1, 0)
	require.NoError(t, err)
	assert.Len(t, top1, 1)

	filtered, err := ix.Query(context.Background(), embedder, "Quarterly revenue grew by ten percent.", 5, 0.99)
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestQueryTiesBrokenByID(t *testing.T) {
	embedder := hashembed.New(0)
	docs := []loader.Document{
		doc("b.txt", "", "same text."),
		doc("a.txt", "", "same text."),
	}
	ix, err := Build(context.Background(), embedder, docs, Options{})
	require.NoError(t, err)

	res, err := ix.Query(context.Background(), embedder, "other", 5, 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, res[0].Score, res[1].Score)
	assert.Less(t, res[0].ID, res[1].ID)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	embedder := hashembed.New(0)

	ix, err := Build(context.Background(), embedder, sampleDocs(), Options{})
	require.NoError(t, err)
	assert.False(t, Exists(dir))
	require.NoError(t, ix.Persist(dir))
	assert.True(t, Exists(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ix.Dimension, loaded.Dimension)
	assert.Equal(t, ix.Embedder, loaded.Embedder)
	assert.True(t, ix.BuiltAt.Equal(loaded.BuiltAt))

	for _, q := range []string{"goroutines", "borrow checker", "revenue"} {
		want, err := ix.Query(context.Background(), embedder, q, 3, 0)
		require.NoError(t, err)
		got, err := loaded.Query(context.Background(), embedder, q, 3, 0)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
		}
	}

	// 不留下临时文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmbeddingCacheSkipsUnchangedChunks(t *testing.T) {
	cacheDir := t.TempDir()
	embedder := newCountingEmbedder()

	_, err := Build(context.Background(), embedder, sampleDocs(), Options{CacheDir: cacheDir})
	require.NoError(t, err)
	assert.Equal(t, int64(3), embedder.texts.Load())
	assert.FileExists(t, filepath.Join(cacheDir, EmbeddingCacheFile))

	docs := append(sampleDocs(), doc("new.txt", "", "A brand new document."))
	ix, err := Build(context.Background(), embedder, docs, Options{CacheDir: cacheDir})
	require.NoError(t, err)
	assert.Equal(t, 4, ix.Len())
	assert.Equal(t, int64(4), embedder.texts.Load(), "only the new chunk is embedded")

	// 其他嵌入服务的缓存不会被复用
	other := &countingEmbedder{Provider: hashembed.New(64)}
	_, err = Build(context.Background(), renamed{other}, docs, Options{CacheDir: cacheDir})
	require.NoError(t, err)
	assert.Equal(t, int64(4), other.texts.Load())
}

type renamed struct{ *countingEmbedder }

func (renamed) Name() string { return "other" }

func TestQueryDimensionMismatch(t *testing.T) {
	ix, err := Build(context.Background(), hashembed.New(32), sampleDocs(), Options{})
	require.NoError(t, err)

	_, err = ix.Query(context.Background(), hashembed.New(64), "x", 5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
