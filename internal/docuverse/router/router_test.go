package router

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/internal/docuverse/biz"
	"github.com/kart-io/docuverse/internal/docuverse/errno"
	"github.com/kart-io/docuverse/internal/docuverse/handler"
	"github.com/kart-io/docuverse/internal/docuverse/metrics"
	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/pkg/component/database"
	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
	"github.com/kart-io/docuverse/pkg/infra/middleware"
	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/llm/hashembed"
	"github.com/kart-io/docuverse/pkg/llm/resilience"
	dbopts "github.com/kart-io/docuverse/pkg/options/database"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	"github.com/kart-io/docuverse/pkg/utils/json"
)

const cannedAnswer = "Goroutines are cheap."

type cannedChat struct{}

func (cannedChat) Chat(context.Context, []llm.Message) (string, error) { return cannedAnswer, nil }

func (cannedChat) Generate(context.Context, string, string) (string, error) {
	return cannedAnswer, nil
}

func (cannedChat) Name() string { return "canned" }

type apiResponse struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	dataDir := t.TempDir()

	opts := dbopts.NewOptions()
	opts.Path = filepath.Join(dataDir, "conversations.db")
	client, err := database.New(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ds := store.New(client.DB())
	require.NoError(t, ds.AutoMigrate())

	m := metrics.New()
	llmClient, err := biz.NewLLMClient(ctx, func() (llm.ChatProvider, error) { return cannedChat{}, nil }, biz.LLMClientConfig{
		Init:    resilience.InitConfig{MaxAttempts: 1},
		Metrics: m,
	})
	require.NoError(t, err)

	svc, err := biz.NewSessionService(biz.SessionServiceConfig{
		DataDir:   dataDir,
		Store:     ds,
		Primary:   hashembed.New(64),
		Fallback:  hashembed.New(64),
		LLM:       llmClient,
		ChunkSize: 200,
		Metrics:   m,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	health := middleware.NewHealthManager("test")
	health.RegisterChecker("database", func() error { return client.Ping(ctx) })

	engine := gin.New()
	engine.Use(
		middleware.Recovery(nil, nil),
		middleware.RequestID(nil),
		middleware.Metrics(m),
		middleware.BodyLimit(&mwopts.BodyLimitOptions{MaxSize: 1 << 12, UploadMaxSize: 1 << 16}),
	)
	Register(engine, handler.NewHandler(svc), Options{Health: health, Metrics: m.Handler()})
	return &testAPI{t: t, engine: engine}
}

func (a *testAPI) do(method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return a.serve(req)
}

func (a *testAPI) upload(path string, files map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile(handler.UploadFormField, name)
		require.NoError(a.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(a.t, err)
	}
	require.NoError(a.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.serve(req)
}

func (a *testAPI) serve(req *http.Request) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func decode[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func (a *testAPI) createSession() string {
	a.t.Helper()
	w, resp := a.do(http.MethodPost, "/v1/sessions", nil)
	require.Equal(a.t, http.StatusOK, w.Code)
	sess := decode[struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}](a.t, resp)
	require.True(a.t, strings.HasPrefix(sess.ID, "session_"))
	assert.Equal(a.t, "New Conversation", sess.Name)
	return sess.ID
}

func TestConversationFlow(t *testing.T) {
	api := newTestAPI(t)
	sid := api.createSession()
	base := "/v1/sessions/" + sid

	w, resp := api.upload(base+"/files", map[string]string{
		"go.txt":  "Goroutines are lightweight threads managed by the Go runtime.",
		"app.exe": "MZ",
	})
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[[]handler.UploadResult](t, resp)
	require.Len(t, results, 2)
	byName := map[string]handler.UploadResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Zero(t, byName["go.txt"].Code)
	assert.Equal(t, errno.ErrUnsupportedFileType.Code, byName["app.exe"].Code)

	_, resp = api.upload(base+"/files", map[string]string{"go.txt": "again"})
	dup := decode[[]handler.UploadResult](t, resp)
	require.Len(t, dup, 1)
	assert.Equal(t, errno.ErrFileExists.Code, dup[0].Code)

	w, resp = api.do(http.MethodPost, base+"/query", handler.QueryRequest{Question: "What is a goroutine?"})
	require.Equal(t, http.StatusOK, w.Code)
	ask := decode[biz.AskResult](t, resp)
	assert.Equal(t, cannedAnswer, ask.Answer.Content)
	assert.Equal(t, biz.OutcomeSuccess, ask.Result.Outcome)

	_, resp = api.do(http.MethodGet, base, nil)
	detail := decode[struct {
		Name         string   `json:"name"`
		MessageCount int64    `json:"message_count"`
		FileNames    []string `json:"file_names"`
	}](t, resp)
	assert.Equal(t, "💬 A Goroutine?", detail.Name)
	assert.Equal(t, int64(2), detail.MessageCount)
	assert.Equal(t, []string{"go.txt"}, detail.FileNames)

	w, resp = api.do(http.MethodPost, fmt.Sprintf("%s/messages/%d/rerun", base, ask.Answer.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	rerun := decode[biz.AskResult](t, resp)
	assert.NotEqual(t, ask.Answer.ID, rerun.Answer.ID)

	_, resp = api.do(http.MethodGet, base+"/messages", nil)
	assert.Len(t, decode[[]json.RawMessage](t, resp), 2)

	w, _ = api.do(http.MethodDelete, fmt.Sprintf("%s/messages/%d", base, rerun.Answer.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, resp = api.do(http.MethodGet, base+"/messages", nil)
	assert.Empty(t, decode[[]json.RawMessage](t, resp))

	w, _ = api.do(http.MethodDelete, base+"/files/go.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, resp = api.do(http.MethodGet, base+"/files", nil)
	assert.Empty(t, decode[[]json.RawMessage](t, resp))

	w, _ = api.do(http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, resp = api.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errno.ErrSessionNotFound.Code, resp.Code)
}

func TestNotesAndIndex(t *testing.T) {
	api := newTestAPI(t)
	sid := api.createSession()
	base := "/v1/sessions/" + sid

	w, resp := api.do(http.MethodPost, base+"/notes", handler.AddNoteRequest{Question: "Why Go?", Answer: "Because."})
	require.Equal(t, http.StatusOK, w.Code)
	note := decode[struct {
		ID      uint64 `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}](t, resp)
	assert.Equal(t, "Why Go?", note.Title)
	assert.Equal(t, "# Why Go?\n\n---\n\nBecause.", note.Content)

	_, resp = api.do(http.MethodGet, base+"/notes", nil)
	assert.Len(t, decode[[]json.RawMessage](t, resp), 1)

	w, _ = api.do(http.MethodDelete, fmt.Sprintf("%s/notes/%d", base, note.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, resp = api.do(http.MethodDelete, fmt.Sprintf("%s/notes/%d", base, note.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errno.ErrNoteNotFound.Code, resp.Code)

	w, resp = api.do(http.MethodGet, base+"/index", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[biz.IndexStatus](t, resp)
	assert.Equal(t, sid, status.SessionID)
	assert.Equal(t, "hashembed", status.Embedder)

	w, _ = api.do(http.MethodPost, base+"/index/rebuild", nil)
	assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, w.Code)
}

func TestSessionNaming(t *testing.T) {
	api := newTestAPI(t)
	sid := api.createSession()
	base := "/v1/sessions/" + sid

	w, resp := api.do(http.MethodPatch, base, RenameBody{Name: "Reading list"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "Reading list")

	w, resp = api.do(http.MethodPost, base+"/suggest-name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), "New Conversation")

	_, resp = api.do(http.MethodGet, "/v1/sessions", nil)
	assert.Len(t, decode[[]json.RawMessage](t, resp), 1)
}

// RenameBody 与 handler.RenameSessionRequest 同形，省略 binding 标签。
type RenameBody struct {
	Name string `json:"name"`
}

func TestRequestErrors(t *testing.T) {
	api := newTestAPI(t)
	sid := api.createSession()
	base := "/v1/sessions/" + sid

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		wantHTTP int
		wantCode int
	}{
		{"缺少问题", http.MethodPost, base + "/query", map[string]string{}, http.StatusBadRequest, pkgerrors.ErrValidationFailed.Code},
		{"空白问题", http.MethodPost, base + "/query", handler.QueryRequest{Question: "   "}, http.StatusBadRequest, errno.ErrEmptyQuestion.Code},
		{"空名称", http.MethodPatch, base, RenameBody{}, http.StatusBadRequest, pkgerrors.ErrValidationFailed.Code},
		{"空白名称", http.MethodPatch, base, RenameBody{Name: "  "}, http.StatusBadRequest, pkgerrors.ErrValidationFailed.Code},
		{"笔记空白问题", http.MethodPost, base + "/notes", handler.AddNoteRequest{Question: " "}, http.StatusBadRequest, pkgerrors.ErrValidationFailed.Code},
		{"非法消息ID", http.MethodDelete, base + "/messages/abc", nil, http.StatusBadRequest, pkgerrors.ErrInvalidParam.Code},
		{"消息不存在", http.MethodDelete, base + "/messages/999", nil, http.StatusNotFound, errno.ErrMessageNotFound.Code},
		{"会话不存在", http.MethodGet, "/v1/sessions/session_missing/files", nil, http.StatusNotFound, errno.ErrSessionNotFound.Code},
		{"文件不存在", http.MethodDelete, base + "/files/none.txt", nil, http.StatusNotFound, errno.ErrFileNotFound.Code},
		{"路由不存在", http.MethodGet, "/v2/nothing", nil, http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantHTTP, w.Code)
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, resp.Code)
				assert.NotEmpty(t, resp.RequestID)
			}
		})
	}

	w, resp := api.upload(base+"/files", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrInvalidUpload.Code, resp.Code)

	w, resp = api.upload(base+"/files", map[string]string{"big.txt": strings.Repeat("x", 1<<16+1)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, pkgerrors.ErrRequestTooLarge.Code, resp.Code)

	w, resp = api.do(http.MethodPatch, base, RenameBody{Name: strings.Repeat("n", 1<<12)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, pkgerrors.ErrRequestTooLarge.Code, resp.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.createSession()

	w, _ := api.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"UP"`)

	w, _ = api.do(http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "git_version")

	w, _ = api.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `docuverse_http_requests_total{method="POST",route="/v1/sessions",status="200"}`)
}
