package biz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/internal/docuverse/errno"
	"github.com/kart-io/docuverse/internal/docuverse/metrics"
	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/internal/model"
	"github.com/kart-io/docuverse/internal/pkg/rag/docutil"
	"github.com/kart-io/docuverse/internal/pkg/rag/loader"
	"github.com/kart-io/docuverse/pkg/id"
	ctxlog "github.com/kart-io/docuverse/pkg/infra/logger"
	"github.com/kart-io/docuverse/pkg/infra/pool"
	"github.com/kart-io/docuverse/pkg/llm"
)

// 数据目录下的子目录。
const (
	UploadsDir = "uploads"
	IndexesDir = "indexes"
	CacheDir   = "cache"
	NotesDir   = "notes"
)

// SessionServiceConfig 会话服务配置。
type SessionServiceConfig struct {
	DataDir string
	Store   *store.Datastore

	Primary      llm.EmbeddingProvider
	Fallback     llm.EmbeddingProvider
	ProbeTimeout time.Duration

	LLM   *LLMClient
	Cache *ResponseCache

	LoaderPool     *pool.Pool
	BackgroundPool *pool.Pool
	QueryPool      *pool.Pool

	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	TopK             int
	MaxContextChars  int
	RebuildInterval  time.Duration
	QueryTimeout     time.Duration
	SimilarityCutoff float64

	Metrics *metrics.Metrics
}

// SessionService 把存储、文件目录与每个会话的问答引擎组合起来。
type SessionService struct {
	cfg   SessionServiceConfig
	store *store.Datastore
	cache *ResponseCache

	mu      sync.Mutex
	engines map[string]*QueryEngine

	// uploadMu 按会话串行化文件登记。
	uploadMu sync.Map
}

// NewSessionService 创建会话服务并准备数据目录。
func NewSessionService(cfg SessionServiceConfig) (*SessionService, error) {
	for _, dir := range []string{UploadsDir, IndexesDir, CacheDir, NotesDir} {
		if err := docutil.EnsureDir(filepath.Join(cfg.DataDir, dir)); err != nil {
			return nil, fmt.Errorf("prepare data dir: %w", err)
		}
	}
	if cfg.Cache == nil {
		cfg.Cache = NewResponseCache(nil, ResponseCacheConfig{})
	}
	return &SessionService{
		cfg:     cfg,
		store:   cfg.Store,
		cache:   cfg.Cache,
		engines: make(map[string]*QueryEngine),
	}, nil
}

func (s *SessionService) sessionDir(kind, sessionID string) string {
	return filepath.Join(s.cfg.DataDir, kind, sessionID)
}

// UploadRoot 返回上传文件根目录。
func (s *SessionService) UploadRoot() string {
	return filepath.Join(s.cfg.DataDir, UploadsDir)
}

// Engine 返回会话的问答引擎，首次访问时创建。
func (s *SessionService) Engine(ctx context.Context, sessionID string) (*QueryEngine, error) {
	s.mu.Lock()
	e, ok := s.engines[sessionID]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	created, err := s.newEngine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines[sessionID]; ok {
		created.Close()
		return e, nil
	}
	s.engines[sessionID] = created
	return created, nil
}

func (s *SessionService) newEngine(ctx context.Context, sessionID string) (*QueryEngine, error) {
	im := NewIndexManager(ctx, IndexManagerConfig{
		SessionID:        sessionID,
		IndexDir:         s.sessionDir(IndexesDir, sessionID),
		CacheDir:         s.sessionDir(CacheDir, sessionID),
		Primary:          s.cfg.Primary,
		Fallback:         s.cfg.Fallback,
		ProbeTimeout:     s.cfg.ProbeTimeout,
		Registry:         s.store,
		LoaderPool:       s.cfg.LoaderPool,
		BackgroundPool:   s.cfg.BackgroundPool,
		QueryPool:        s.cfg.QueryPool,
		ChunkSize:        s.cfg.ChunkSize,
		ChunkOverlap:     s.cfg.ChunkOverlap,
		BatchSize:        s.cfg.BatchSize,
		RebuildInterval:  s.cfg.RebuildInterval,
		QueryTimeout:     s.cfg.QueryTimeout,
		SimilarityCutoff: s.cfg.SimilarityCutoff,
		Metrics:          s.cfg.Metrics,
	})
	e, err := NewQueryEngine(QueryEngineConfig{
		SessionID:       sessionID,
		Index:           im,
		LLM:             s.cfg.LLM,
		Cache:           s.cache,
		TopK:            s.cfg.TopK,
		MaxContextChars: s.cfg.MaxContextChars,
		Metrics:         s.cfg.Metrics,
	})
	if err != nil {
		im.Close()
		return nil, err
	}
	return e, nil
}

func (s *SessionService) dropEngine(sessionID string) *QueryEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.engines[sessionID]
	delete(s.engines, sessionID)
	return e
}

// CreateSession 创建新会话。
func (s *SessionService) CreateSession(ctx context.Context) (*model.Session, error) {
	sess, err := s.store.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Infow("session created", "session_id", sess.ID)
	return sess, nil
}

// GetSession 返回会话详情。
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFileRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return &model.SessionDetail{
		Session:      *sess,
		MessageCount: int64(len(msgs)),
		FileCount:    int64(len(files)),
		FileNames:    names,
	}, nil
}

// SessionName 返回会话名称，会话不存在时返回 "Unnamed Conversation"。
func (s *SessionService) SessionName(ctx context.Context, sessionID string) string {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return UnnamedSession
	}
	return sess.Name
}

// ListSessions 返回会话列表，最新的在前。
func (s *SessionService) ListSessions(ctx context.Context) ([]*model.SessionDetail, error) {
	return s.store.ListSessions(ctx)
}

// RenameSession 修改会话名称。
func (s *SessionService) RenameSession(ctx context.Context, sessionID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errno.ErrInvalidArgument.WithMessage("name must not be empty")
	}
	return s.store.RenameSession(ctx, sessionID, name)
}

// SuggestSessionName 根据第一条用户消息生成名称并保存。
func (s *SessionService) SuggestSessionName(ctx context.Context, sessionID string) (string, error) {
	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return "", err
	}
	var first string
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			first = m.Content
			break
		}
	}

	name := SuggestName(first)
	if err := s.store.RenameSession(ctx, sessionID, name); err != nil {
		return "", err
	}
	return name, nil
}

// DeleteSession 删除会话记录及其上传、索引、缓存与笔记目录。
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	if e := s.dropEngine(sessionID); e != nil {
		e.Close()
	}
	s.cache.Clear(ctx, sessionID)
	s.uploadMu.Delete(sessionID)

	if err := docutil.RemoveDirs(
		s.sessionDir(UploadsDir, sessionID),
		s.sessionDir(IndexesDir, sessionID),
		s.sessionDir(CacheDir, sessionID),
		s.sessionDir(NotesDir, sessionID),
	); err != nil {
		logger.Warnw("failed to remove session directories", "session_id", sessionID, "error", err.Error())
	}
	ctxlog.FromContext(ctx).Infow("session deleted", "session_id", sessionID)
	return nil
}

// Upload 待上传的文件。
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// UploadResult 单个文件的上传结果。
type UploadResult struct {
	Name  string      `json:"name"`
	File  *model.File `json:"file,omitempty"`
	Error error       `json:"-"`
}

func (s *SessionService) lockUploads(sessionID string) func() {
	v, _ := s.uploadMu.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// UploadFiles 保存并登记文件，每个文件独立成功或失败。有文件成功时触发一次后台索引构建。
func (s *SessionService) UploadFiles(ctx context.Context, sessionID string, uploads []Upload) ([]UploadResult, error) {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dir := s.sessionDir(UploadsDir, sessionID)
	if err := docutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	unlock := s.lockUploads(sessionID)
	defer unlock()

	results := make([]UploadResult, len(uploads))
	pool.ForEach(s.cfg.LoaderPool, len(uploads), func(i int) {
		f, err := s.saveUpload(ctx, sessionID, dir, uploads[i])
		results[i] = UploadResult{Name: uploads[i].Name, File: f, Error: err}
		if err != nil {
			ctxlog.FromContext(ctx).Warnw("upload rejected", "session_id", sessionID, "file", uploads[i].Name, "error", err.Error())
		}
	})

	saved := 0
	for _, r := range results {
		if r.Error == nil {
			saved++
		}
	}
	if saved > 0 {
		_ = s.store.TouchSession(ctx, sessionID)
		e.Index().Build(false)
	}
	ctxlog.FromContext(ctx).Infow("files uploaded", "session_id", sessionID, "saved", saved, "rejected", len(uploads)-saved)
	return results, nil
}

func (s *SessionService) saveUpload(ctx context.Context, sessionID, dir string, u Upload) (*model.File, error) {
	if err := docutil.ValidateName(u.Name); err != nil {
		return nil, err
	}
	if !loader.Supported(filepath.Ext(u.Name)) {
		return nil, errno.ErrUnsupportedFileType.WithMessage(fmt.Sprintf("unsupported file type: %s", filepath.Ext(u.Name)))
	}
	if _, err := s.store.GetFile(ctx, sessionID, u.Name); err == nil {
		return nil, store.ErrFileExists
	}

	path, err := docutil.SafeJoin(dir, u.Name)
	if err != nil {
		return nil, err
	}
	r, err := u.Open()
	if err != nil {
		return nil, errno.ErrInvalidUpload.WithCause(err)
	}
	defer r.Close()

	size, err := docutil.CopyInChunks(path, r, docutil.DefaultChunkSize)
	if err != nil {
		return nil, err
	}

	f := &model.File{
		SessionID:  sessionID,
		Name:       u.Name,
		Path:       path,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.store.AddFile(ctx, f); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return f, nil
}

// ListFiles 返回会话的文件记录。
func (s *SessionService) ListFiles(ctx context.Context, sessionID string) ([]model.File, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListFileRecords(ctx, sessionID)
}

// DeleteFile 删除文件并在后台重建索引。
func (s *SessionService) DeleteFile(ctx context.Context, sessionID, name string) error {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return err
	}

	unlock := s.lockUploads(sessionID)
	f, err := s.store.DeleteFile(ctx, sessionID, name)
	unlock()
	if err != nil {
		return err
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnw("failed to remove uploaded file", "session_id", sessionID, "file", name, "error", err.Error())
	}

	e.Index().Build(false)
	return nil
}

// AskResult 一轮问答：保存的用户消息、助手消息与问答结果。
type AskResult struct {
	Question *model.Message `json:"question"`
	Answer   *model.Message `json:"answer"`
	Result   *QueryResult   `json:"result"`
}

func toLLMHistory(msgs []model.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		role := llm.RoleAssistant
		if m.Role == model.RoleUser {
			role = llm.RoleUser
		}
		out[i] = llm.Message{Role: role, Content: m.Content}
	}
	return out
}

// Ask 保存问题，回答后保存回答。会话仍是默认名称时用问题生成名称。
func (s *SessionService) Ask(ctx context.Context, sessionID, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errno.ErrEmptyQuestion
	}
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AppendMessage(ctx, sessionID, model.RoleUser, question)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := e.Query(ctx, question, toLLMHistory(msgs))
	answerMsg, err := s.store.AppendMessage(ctx, sessionID, model.RoleAssistant, res.Answer)
	if err != nil {
		return nil, err
	}

	if s.SessionName(ctx, sessionID) == model.DefaultSessionName {
		if err := s.store.RenameSession(ctx, sessionID, SuggestName(question)); err != nil {
			logger.Warnw("failed to name session", "session_id", sessionID, "error", err.Error())
		}
	}
	return &AskResult{Question: userMsg, Answer: answerMsg, Result: res}, nil
}

// ListMessages 按时间顺序返回会话消息。
func (s *SessionService) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}

// DeleteMessagePair 删除助手消息及其对应的问题。缓存的回答保留。
func (s *SessionService) DeleteMessagePair(ctx context.Context, sessionID string, assistantID uint64) error {
	_, err := s.store.DeleteMessagePair(ctx, sessionID, assistantID)
	return err
}

// RerunMessage 重新回答助手消息对应的问题：删除旧回答、清除缓存、用截至该问题的历史重新提问。
func (s *SessionService) RerunMessage(ctx context.Context, sessionID string, assistantID uint64) (*AskResult, error) {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, m := range msgs {
		if m.ID == assistantID && m.Role == model.RoleAssistant {
			idx = i
			break
		}
	}
	if idx <= 0 || msgs[idx-1].Role != model.RoleUser {
		return nil, store.ErrMessageNotFound
	}
	question := msgs[idx-1]

	if err := s.store.DeleteMessages(ctx, sessionID, assistantID); err != nil {
		return nil, err
	}
	e.Invalidate(ctx, question.Content)

	res := e.Query(ctx, question.Content, toLLMHistory(msgs[:idx]))
	answerMsg, err := s.store.AppendMessage(ctx, sessionID, model.RoleAssistant, res.Answer)
	if err != nil {
		return nil, err
	}
	return &AskResult{Question: &question, Answer: answerMsg, Result: res}, nil
}

// AddNote 把问答对保存为 markdown 笔记。title 为空时使用问题。
func (s *SessionService) AddNote(ctx context.Context, sessionID, question, answer, title string) (*model.Note, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, errno.ErrEmptyQuestion
	}
	if strings.TrimSpace(title) == "" {
		title = question
	}

	dir := s.sessionDir(NotesDir, sessionID)
	if err := docutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	content := model.NoteMarkdown(question, answer)
	path := filepath.Join(dir, id.NewULID()+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write note: %w", err)
	}

	n := &model.Note{
		SessionID: sessionID,
		Title:     title,
		Content:   content,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddNote(ctx, n); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return n, nil
}

// ListNotes 返回会话笔记，最新的在前。
func (s *SessionService) ListNotes(ctx context.Context, sessionID string) ([]model.Note, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, sessionID)
}

// DeleteNote 删除笔记记录及其文件。
func (s *SessionService) DeleteNote(ctx context.Context, sessionID string, noteID uint64) error {
	n, err := s.store.DeleteNote(ctx, sessionID, noteID)
	if err != nil {
		return err
	}
	if n.Path != "" {
		if err := os.Remove(n.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnw("failed to remove note file", "session_id", sessionID, "note_id", noteID, "error", err.Error())
		}
	}
	return nil
}

// IndexStatus 返回会话索引状态。
func (s *SessionService) IndexStatus(ctx context.Context, sessionID string) (IndexStatus, error) {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return IndexStatus{}, err
	}
	return e.Index().Status(), nil
}

// RebuildIndex 强制重建索引；已有构建在进行时返回 ErrIndexBusy。
func (s *SessionService) RebuildIndex(ctx context.Context, sessionID string) error {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return err
	}
	if h := e.Index().Build(true); h.Joined() {
		return errno.ErrIndexBusy
	}
	return nil
}

// TriggerBuild 在后台检查并按需重建会话索引，会话不存在时忽略。
func (s *SessionService) TriggerBuild(ctx context.Context, sessionID string) {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		logger.Debugw("skip build for unknown session", "session_id", sessionID, "error", err.Error())
		return
	}
	e.Index().Build(false)
}

// Close 关闭所有问答引擎。
func (s *SessionService) Close() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*QueryEngine)
	s.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}
