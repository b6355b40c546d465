package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/llm/hashembed"
	"github.com/kart-io/docuverse/pkg/llm/resilience"
)

// dirRegistry 把一个目录下的普通文件当作会话文件。
type dirRegistry struct {
	dir   string
	calls atomic.Int32

	mu   sync.Mutex
	gate chan struct{}
}

func newDirRegistry(t *testing.T) *dirRegistry {
	t.Helper()
	return &dirRegistry{dir: t.TempDir()}
}

func (r *dirRegistry) ListFiles(ctx context.Context, _ string) ([]store.FileRef, error) {
	r.calls.Add(1)

	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	refs := make([]store.FileRef, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		refs = append(refs, store.FileRef{Path: filepath.Join(r.dir, e.Name()), Name: e.Name()})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// hold 让之后的 ListFiles 阻塞，直到调用返回的函数。
func (r *dirRegistry) hold() (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gate = gate
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.gate = nil
		r.mu.Unlock()
		close(gate)
	}
}

func (r *dirRegistry) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(r.dir, name), []byte(content), 0o644))
}

// failingEmbedder 总是返回错误。
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingEmbedder) Name() string { return "failing" }

// fakeChat 按脚本返回结果并统计调用次数。
type fakeChat struct {
	calls   atomic.Int32
	prompts chan string
	reply   func(ctx context.Context, n int, prompt string) (string, error)
}

func newFakeChat(reply func(ctx context.Context, n int, prompt string) (string, error)) *fakeChat {
	return &fakeChat{reply: reply, prompts: make(chan string, 64)}
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return f.Generate(ctx, last, "")
}

func (f *fakeChat) Generate(ctx context.Context, prompt string, _ string) (string, error) {
	n := int(f.calls.Add(1))
	select {
	case f.prompts <- prompt:
	default:
	}
	return f.reply(ctx, n, prompt)
}

func (f *fakeChat) Name() string { return "fake" }

func newTestIndexManager(t *testing.T, reg FileRegistry, root string) *IndexManager {
	t.Helper()
	m := NewIndexManager(context.Background(), IndexManagerConfig{
		SessionID: "session_test",
		IndexDir:  filepath.Join(root, "indexes"),
		CacheDir:  filepath.Join(root, "cache"),
		Primary:   hashembed.New(64),
		Fallback:  hashembed.New(64),
		Registry:  reg,
		ChunkSize: 200,
	})
	t.Cleanup(m.Close)
	return m
}

func fastLLMConfig() LLMClientConfig {
	return LLMClientConfig{
		Init: resilience.InitConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Retry: &resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
		Timeout: 5 * time.Second,
	}
}

func newTestLLMClient(t *testing.T, chat llm.ChatProvider) *LLMClient {
	t.Helper()
	c, err := NewLLMClient(context.Background(), func() (llm.ChatProvider, error) { return chat, nil }, fastLLMConfig())
	require.NoError(t, err)
	return c
}
