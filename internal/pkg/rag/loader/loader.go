// Package loader 把上传的文件解析为可检索的文档。
//
// 每种扩展名对应一个读取函数；单个文件解析失败只记录告警并返回空结果，
// 不会中断整个索引构建。
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/internal/pkg/rag/metadata"
	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
	"github.com/kart-io/docuverse/pkg/infra/pool"
)

// DefaultWorkers 并发加载的默认 worker 数。
const DefaultWorkers = 4

// 文档元数据中由加载器写入的键。
const (
	KeySourceFile = "source_file"
	KeySection    = "section"
	KeyFileName   = "file_name"
)

// Document 从文件中解析出的一段文本及其元数据。
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Source 返回文档来源文件路径。
func (d Document) Source() string {
	s, _ := d.Metadata[KeySourceFile].(string)
	return s
}

// Section 返回文档在文件中的分节标识（页、幻灯片、邮件序号等），可能为空。
func (d Document) Section() string {
	s, _ := d.Metadata[KeySection].(string)
	return s
}

// ID 返回 sha256(source+section) 的前 16 个十六进制字符。
func (d Document) ID() string {
	return textutil.HashString(d.Source() + d.Section())[:16]
}

// readFunc 读取单个文件；返回的文档只需包含文本和加载器特有的元数据。
type readFunc func(ctx context.Context, path string) ([]Document, error)

var readers = map[string]readFunc{
	".txt":   readText,
	".md":    readText,
	".log":   readText,
	".rst":   readText,
	".pdf":   readPDF,
	".docx":  readDOCX,
	".pptx":  readPPTX,
	".odt":   readODT,
	".odp":   readODP,
	".csv":   readCSV,
	".tsv":   readCSV,
	".epub":  readEPUB,
	".ipynb": readNotebook,
	".mbox":  readMbox,
	".eml":   readEML,
	".json":  readJSON,
	".jsonl": readJSONLines,
}

// Supported 报告扩展名（含点，大小写不敏感）是否有对应的加载器。
func Supported(ext string) bool {
	_, ok := readers[strings.ToLower(ext)]
	return ok
}

// Extensions 返回所有受支持的扩展名，按字母排序。
func Extensions() []string {
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load 解析单个文件。失败时记录告警并返回空切片，从不返回错误。
func Load(ctx context.Context, path string) (docs []Document) {
	if ctx.Err() != nil {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	read, ok := readers[ext]
	if !ok {
		logger.Warnw("unsupported file type, skipped", "file", path, "ext", ext)
		return nil
	}

	md, err := metadata.Extract(path)
	if err != nil {
		logger.Warnw("failed to read file metadata", "file", path, "error", err.Error())
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warnw("document parser panicked", "file", path, "panic", fmt.Sprint(r))
			docs = nil
		}
	}()

	raw, err := read(ctx, path)
	if err != nil {
		logger.Warnw("failed to load document", "file", path, "error", err.Error())
		return nil
	}

	base := md.Map()
	docs = make([]Document, 0, len(raw))
	for _, d := range raw {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		meta := make(map[string]any, len(base)+len(d.Metadata)+1)
		for k, v := range base {
			meta[k] = v
		}
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta[KeySourceFile] = path
		docs = append(docs, Document{Text: d.Text, Metadata: meta})
	}
	if len(docs) == 0 {
		logger.Warnw("document produced no text", "file", path)
	}
	return docs
}

// Stats 一次批量加载的统计。
type Stats struct {
	Files     int
	Loaded    int
	Failed    int
	Documents int
}

// LoadAll 使用 workers 个并发 worker 加载 paths，结果按输入顺序排列。
func LoadAll(ctx context.Context, paths []string, workers int) []Document {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	cfg := pool.LoaderPoolConfig()
	cfg.Capacity = workers

	p, err := pool.NewPool("loader", pool.LoaderPool, cfg)
	if err != nil {
		logger.Warnw("loader pool unavailable, loading inline", "error", err.Error())
		p = nil
	} else {
		defer p.Release()
	}

	docs, _ := LoadAllWithPool(ctx, p, paths)
	return docs
}

// LoadAllWithPool 在给定池中加载 paths；p 为 nil 时在当前 goroutine 顺序执行。
func LoadAllWithPool(ctx context.Context, p *pool.Pool, paths []string) ([]Document, Stats) {
	results := make([][]Document, len(paths))
	pool.ForEach(p, len(paths), func(i int) {
		results[i] = Load(ctx, paths[i])
	})

	stats := Stats{Files: len(paths)}
	var docs []Document
	for _, r := range results {
		if len(r) == 0 {
			stats.Failed++
			continue
		}
		stats.Loaded++
		docs = append(docs, r...)
	}
	stats.Documents = len(docs)
	return docs, stats
}

func section(name string, n int) map[string]any {
	return map[string]any{KeySection: fmt.Sprintf("%s %d", name, n)}
}
