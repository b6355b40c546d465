package vectorindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/internal/pkg/rag/docutil"
	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
)

// EmbeddingCacheFile 向量缓存文件名。
const EmbeddingCacheFile = "embeddings.gob"

// embeddingCache 以 sha256(content) 为键的向量缓存，只对同一个嵌入服务有效。
type embeddingCache struct {
	Embedder string
	Vectors  map[string][]float32
}

func (c *embeddingCache) get(content string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Vectors[textutil.HashString(content)]
	return v, ok
}

// loadEmbeddingCache 读取缓存；文件缺失、损坏或嵌入服务不同都返回 nil。
func loadEmbeddingCache(dir, embedder string) *embeddingCache {
	if dir == "" {
		return nil
	}
	f, err := os.Open(filepath.Join(dir, EmbeddingCacheFile))
	if err != nil {
		return nil
	}
	defer f.Close()

	var c embeddingCache
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		logger.Warnw("embedding cache unreadable, ignoring", "dir", dir, "error", err.Error())
		return nil
	}
	if c.Embedder != embedder {
		return nil
	}
	return &c
}

// saveEmbeddingCache 只保存本次构建用到的向量，删除的文档不会残留。
func saveEmbeddingCache(dir, embedder string, chunks []Chunk) error {
	c := embeddingCache{Embedder: embedder, Vectors: make(map[string][]float32, len(chunks))}
	for _, ch := range chunks {
		c.Vectors[textutil.HashString(ch.Content)] = ch.Embedding
	}

	if err := docutil.EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, EmbeddingCacheFile+".*.tmp")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(&c); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode embedding cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, EmbeddingCacheFile))
}
