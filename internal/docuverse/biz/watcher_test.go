package biz

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *triggerRecorder) record(_ context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[sessionID]++
}

func (r *triggerRecorder) count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[sessionID]
}

func TestUploadWatcherDebouncesPerSession(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "session_a")
	require.NoError(t, os.MkdirAll(existing, 0o755))

	rec := &triggerRecorder{calls: map[string]int{}}
	w, err := NewUploadWatcher(root, 100*time.Millisecond, rec.record)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(existing, name), []byte("x"), 0o644))
	}
	assert.Eventually(t, func() bool { return rec.count("session_a") == 1 }, 2*time.Second, 20*time.Millisecond)

	// 新建的会话目录也会被监听
	created := filepath.Join(root, "session_b")
	require.NoError(t, os.MkdirAll(created, 0o755))
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(created, "d.txt"), []byte("y"), 0o644)
		return rec.count("session_b") >= 1
	}, 3*time.Second, 150*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count("session_a"))
}

func TestSessionOf(t *testing.T) {
	w := &UploadWatcher{root: filepath.Clean("/data/uploads")}
	tests := []struct {
		name    string
		path    string
		session string
		isDir   bool
		ok      bool
	}{
		{"会话目录", "/data/uploads/session_1", "session_1", true, true},
		{"会话中的文件", "/data/uploads/session_1/a.pdf", "session_1", false, true},
		{"根目录", "/data/uploads", "", false, false},
		{"根目录之外", "/data/notes/x.md", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, isDir, ok := w.sessionOf(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.session, session)
			assert.Equal(t, tt.isDir, isDir)
		})
	}
}
