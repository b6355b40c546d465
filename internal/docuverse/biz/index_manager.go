package biz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/internal/docuverse/metrics"
	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/internal/docuverse/vectorindex"
	"github.com/kart-io/docuverse/internal/pkg/rag/loader"
	"github.com/kart-io/docuverse/pkg/infra/pool"
	"github.com/kart-io/docuverse/pkg/infra/tracing"
	"github.com/kart-io/docuverse/pkg/llm"
)

// BuildState 索引构建状态。
type BuildState int

const (
	StateIdle BuildState = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s BuildState) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

var (
	// ErrNoDocuments 有登记的文件但没有一个能解析出文本。
	ErrNoDocuments = errors.New("no documents could be loaded")
	// ErrManagerClosed 索引管理器已关闭（会话被删除）。
	ErrManagerClosed = errors.New("index manager closed")
)

// FileRegistry 提供会话当前的文件列表。
type FileRegistry interface {
	ListFiles(ctx context.Context, sessionID string) ([]store.FileRef, error)
}

// IndexManagerConfig 索引管理器配置。
type IndexManagerConfig struct {
	SessionID string
	// IndexDir 持久化索引目录，CacheDir 向量缓存目录。
	IndexDir string
	CacheDir string

	Primary      llm.EmbeddingProvider
	Fallback     llm.EmbeddingProvider
	ProbeTimeout time.Duration

	Registry       FileRegistry
	LoaderPool     *pool.Pool
	BackgroundPool *pool.Pool
	QueryPool      *pool.Pool

	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	RebuildInterval  time.Duration
	QueryTimeout     time.Duration
	SimilarityCutoff float64

	Metrics *metrics.Metrics
}

// IndexStatus 索引状态快照。
type IndexStatus struct {
	SessionID    string       `json:"session_id"`
	State        string       `json:"state"`
	ChunkCount   int          `json:"chunk_count"`
	LastBuild    *time.Time   `json:"last_build,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	Embedder     string       `json:"embedder"`
	EmbedderMode EmbedderMode `json:"embedder_mode"`
}

type fileStat struct {
	size    int64
	modTime time.Time
}

// snapshot 文件名到 (大小, 修改时间) 的映射。
type snapshot map[string]fileStat

func (s snapshot) equal(o snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		w, ok := o[k]
		if !ok || v.size != w.size || !v.modTime.Equal(w.modTime) {
			return false
		}
	}
	return true
}

func snapshotOf(refs []store.FileRef) snapshot {
	snap := make(snapshot, len(refs))
	for _, r := range refs {
		info, err := os.Stat(r.Path)
		if err != nil {
			continue
		}
		snap[r.Name] = fileStat{size: info.Size(), modTime: info.ModTime()}
	}
	return snap
}

// BuildHandle 一次索引构建的结果。
type BuildHandle struct {
	f      *buildFuture
	joined bool
}

type buildFuture struct {
	done chan struct{}
	err  error
}

func newBuildFuture() *buildFuture {
	return &buildFuture{done: make(chan struct{})}
}

func (f *buildFuture) complete(err error) {
	f.err = err
	close(f.done)
}

func completedHandle(err error) *BuildHandle {
	f := newBuildFuture()
	f.complete(err)
	return &BuildHandle{f: f}
}

// Done 构建结束时关闭。
func (h *BuildHandle) Done() <-chan struct{} {
	return h.f.done
}

// Joined 报告本次调用是否复用了正在进行的构建，而不是启动新构建。
func (h *BuildHandle) Joined() bool {
	return h.joined
}

// Wait 等待构建结束并返回构建错误。ctx 结束时返回 ctx.Err()，构建继续在后台进行。
func (h *BuildHandle) Wait(ctx context.Context) error {
	select {
	case <-h.f.done:
		return h.f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IndexManager 管理一个会话的向量索引：单飞构建、持久化、过期检测与检索。
type IndexManager struct {
	cfg      IndexManagerConfig
	embedder llm.EmbeddingProvider
	mode     EmbedderMode

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     BuildState
	index     *vectorindex.Index
	inflight  *buildFuture
	lastBuild time.Time
	lastErr   error
	snapshot  snapshot
	closed    bool
}

// NewIndexManager 创建索引管理器，并在此时一次性选定嵌入策略。
func NewIndexManager(ctx context.Context, cfg IndexManagerConfig) *IndexManager {
	if cfg.RebuildInterval <= 0 {
		cfg.RebuildInterval = time.Hour
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	embedder, mode := SelectEmbedder(ctx, cfg.Primary, cfg.Fallback, cfg.ProbeTimeout)

	mctx, cancel := context.WithCancel(context.Background())
	return &IndexManager{
		cfg:      cfg,
		embedder: embedder,
		mode:     mode,
		ctx:      mctx,
		cancel:   cancel,
		state:    StateIdle,
	}
}

// Embedder 返回选定的嵌入服务。
func (m *IndexManager) Embedder() (llm.EmbeddingProvider, EmbedderMode) {
	return m.embedder, m.mode
}

// State 返回当前构建状态。
func (m *IndexManager) State() BuildState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IndexReady 报告是否已有可查询的索引。
func (m *IndexManager) IndexReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index != nil
}

// Status 返回索引状态快照。
func (m *IndexManager) Status() IndexStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := IndexStatus{
		SessionID:    m.cfg.SessionID,
		State:        m.state.String(),
		ChunkCount:   m.index.Len(),
		Embedder:     m.embedder.Name(),
		EmbedderMode: m.mode,
	}
	if !m.lastBuild.IsZero() {
		t := m.lastBuild
		st.LastBuild = &t
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *IndexManager) currentSnapshot(ctx context.Context) (snapshot, []store.FileRef, error) {
	refs, err := m.cfg.Registry.ListFiles(ctx, m.cfg.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return snapshotOf(refs), refs, nil
}

// ShouldRebuild 报告索引是否需要重建：没有索引、超过重建间隔或文件发生变化。
func (m *IndexManager) ShouldRebuild(ctx context.Context) bool {
	current, _, err := m.currentSnapshot(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleLocked(current, err)
}

func (m *IndexManager) staleLocked(current snapshot, snapErr error) bool {
	if m.index == nil {
		return !vectorindex.Exists(m.cfg.IndexDir)
	}
	if time.Since(m.lastBuild) > m.cfg.RebuildInterval {
		return true
	}
	if snapErr != nil {
		logger.Warnw("failed to list files for staleness check", "session_id", m.cfg.SessionID, "error", snapErr.Error())
		return false
	}
	return !current.equal(m.snapshot)
}

// Build 启动一次后台构建。已有构建进行中时返回该构建的句柄（Joined 为 true）；
// force 为 false 且索引就绪、未过期时返回已完成的句柄。
func (m *IndexManager) Build(force bool) *BuildHandle {
	var (
		current snapshot
		snapErr error
	)
	if !force {
		current, _, snapErr = m.currentSnapshot(m.ctx)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return completedHandle(ErrManagerClosed)
	}
	if m.inflight != nil {
		f := m.inflight
		m.mu.Unlock()
		return &BuildHandle{f: f, joined: true}
	}
	if !force && m.state == StateReady && !m.staleLocked(current, snapErr) {
		m.mu.Unlock()
		return completedHandle(nil)
	}

	f := newBuildFuture()
	m.inflight = f
	m.state = StateBuilding
	m.mu.Unlock()

	pool.Go(m.cfg.BackgroundPool, func() { m.runBuild(f) }, func(r interface{}) {
		logger.Errorw("index build goroutine panicked", "session_id", m.cfg.SessionID, "panic", fmt.Sprint(r))
	})
	return &BuildHandle{f: f}
}

func (m *IndexManager) runBuild(f *buildFuture) {
	start := time.Now()
	var (
		ix   *vectorindex.Index
		snap snapshot
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("index build panicked: %v", r)
		}
		m.finishBuild(f, ix, snap, err)
		m.cfg.Metrics.RecordIndexBuild(err, time.Since(start))
	}()

	ctx, span := tracing.StartSpan(m.ctx, "IndexManager.Build", tracing.String(tracing.SessionID, m.cfg.SessionID))
	defer span.End()

	snap, ix, err = m.build(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return
	}
	tracing.AddSpanAttributes(ctx, tracing.Int(tracing.ChunkCount, ix.Len()))
}

func (m *IndexManager) build(ctx context.Context) (snapshot, *vectorindex.Index, error) {
	snap, refs, err := m.currentSnapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list files: %w", err)
	}

	paths := make([]string, 0, len(refs))
	for _, r := range refs {
		paths = append(paths, r.Path)
	}
	tracing.AddSpanAttributes(ctx, tracing.Int(tracing.FileCount, len(paths)))

	docs, stats := loader.LoadAllWithPool(ctx, m.cfg.LoaderPool, paths)
	m.cfg.Metrics.RecordDocuments(stats.Loaded, stats.Failed)
	if len(paths) > 0 && len(docs) == 0 {
		return nil, nil, fmt.Errorf("%w from %d files", ErrNoDocuments, len(paths))
	}

	ix, err := vectorindex.Build(ctx, m.embedder, docs, vectorindex.Options{
		ChunkSize:    m.cfg.ChunkSize,
		ChunkOverlap: m.cfg.ChunkOverlap,
		BatchSize:    m.cfg.BatchSize,
		CacheDir:     m.cfg.CacheDir,
	})
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, nil, ErrManagerClosed
	}

	if err := ix.Persist(m.cfg.IndexDir); err != nil {
		return nil, nil, fmt.Errorf("persist index: %w", err)
	}

	logger.Infow("index built",
		"session_id", m.cfg.SessionID,
		"files", stats.Files,
		"failed_files", stats.Failed,
		"documents", stats.Documents,
		"chunks", ix.Len(),
		"embedder", m.embedder.Name(),
	)
	return snap, ix, nil
}

func (m *IndexManager) finishBuild(f *buildFuture, ix *vectorindex.Index, snap snapshot, err error) {
	m.mu.Lock()
	if err != nil {
		m.state = StateFailed
		m.lastErr = err
		logger.Errorw("index build failed", "session_id", m.cfg.SessionID, "error", err.Error())
	} else {
		m.index = ix
		m.snapshot = snap
		m.lastBuild = ix.BuiltAt
		m.lastErr = nil
		m.state = StateReady
	}
	m.inflight = nil
	m.mu.Unlock()

	f.complete(err)
}

// EnsureIndex 保证有可用索引：优先加载持久化索引，否则同步构建。
func (m *IndexManager) EnsureIndex(ctx context.Context) error {
	if m.IndexReady() {
		return nil
	}

	if vectorindex.Exists(m.cfg.IndexDir) {
		if err := m.loadPersisted(ctx); err == nil {
			return nil
		} else {
			logger.Warnw("persisted index unusable, rebuilding", "session_id", m.cfg.SessionID, "error", err.Error())
		}
	}

	return m.Build(false).Wait(ctx)
}

func (m *IndexManager) loadPersisted(ctx context.Context) error {
	ix, err := vectorindex.Load(m.cfg.IndexDir)
	if err != nil {
		return err
	}
	if ix.Embedder != m.embedder.Name() {
		return fmt.Errorf("index built with %q, current embedder is %q", ix.Embedder, m.embedder.Name())
	}
	current, _, err := m.currentSnapshot(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		m.index = ix
		m.snapshot = current
		m.lastBuild = ix.BuiltAt
		if m.state != StateBuilding {
			m.state = StateReady
		}
	}
	return nil
}

func (m *IndexManager) currentIndex() *vectorindex.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Query 检索最相关的 topK 个分块。没有索引时同步构建；索引过期时后台重建并先用旧索引回答。
// 超时或内部错误返回空结果，不返回错误。
func (m *IndexManager) Query(ctx context.Context, text string, topK int) []vectorindex.ScoredChunk {
	empty := []vectorindex.ScoredChunk{}

	if err := m.EnsureIndex(ctx); err != nil {
		logger.Warnw("no index available for query", "session_id", m.cfg.SessionID, "error", err.Error())
		return empty
	}
	if m.ShouldRebuild(ctx) {
		m.Build(false)
	}

	ix := m.currentIndex()
	if ix.Empty() {
		return empty
	}

	results, err := pool.Run(ctx, m.cfg.QueryPool, m.cfg.QueryTimeout, func(ctx context.Context) ([]vectorindex.ScoredChunk, error) {
		return ix.Query(ctx, m.embedder, text, topK, m.cfg.SimilarityCutoff)
	})
	if err != nil {
		logger.Warnw("index query failed", "session_id", m.cfg.SessionID, "error", err.Error())
		return empty
	}
	return results
}

// Close 停止后续构建并取消正在进行的构建。
func (m *IndexManager) Close() {
	m.mu.Lock()
	m.closed = true
	f := m.inflight
	m.mu.Unlock()

	m.cancel()
	if f != nil {
		<-f.done
	}
}
