package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/internal/docuverse/vectorindex"
	"github.com/kart-io/docuverse/pkg/llm/hashembed"
)

func TestBuildWithNoFiles(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	root := t.TempDir()
	m := newTestIndexManager(t, reg, root)

	require.NoError(t, m.Build(false).Wait(ctx))
	assert.Equal(t, StateReady, m.State())
	assert.True(t, m.IndexReady())
	assert.Equal(t, 0, m.Status().ChunkCount)
	assert.True(t, vectorindex.Exists(m.cfg.IndexDir))

	res := m.Query(ctx, "anything", 5)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestBuildIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "a.txt", "Goroutines are lightweight threads managed by the Go runtime.")
	m := newTestIndexManager(t, reg, t.TempDir())

	release := reg.hold()
	first := m.Build(true)
	second := m.Build(true)
	assert.False(t, first.Joined())
	assert.True(t, second.Joined())
	assert.Equal(t, StateBuilding, m.State())
	release()

	require.NoError(t, first.Wait(ctx))
	require.NoError(t, second.Wait(ctx))
	assert.Equal(t, int32(1), reg.calls.Load())
	assert.Equal(t, StateReady, m.State())
}

func TestBuildReturnsCompletedHandleWhenFresh(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "a.txt", "Channels connect concurrent goroutines.")
	m := newTestIndexManager(t, reg, t.TempDir())
	require.NoError(t, m.Build(false).Wait(ctx))

	h := m.Build(false)
	select {
	case <-h.Done():
	default:
		t.Fatal("fresh index should not start a build")
	}
	assert.NoError(t, h.Wait(ctx))
}

func TestShouldRebuildTracksFiles(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "a.txt", "Slices are views over arrays.")
	m := newTestIndexManager(t, reg, t.TempDir())

	assert.True(t, m.ShouldRebuild(ctx))
	require.NoError(t, m.Build(false).Wait(ctx))
	assert.False(t, m.ShouldRebuild(ctx))

	reg.write(t, "b.txt", "Maps are hash tables.")
	assert.True(t, m.ShouldRebuild(ctx))

	require.NoError(t, m.Build(false).Wait(ctx))
	assert.False(t, m.ShouldRebuild(ctx))
}

func TestShouldRebuildAfterInterval(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "a.txt", "Interfaces are satisfied implicitly.")
	m := newTestIndexManager(t, reg, t.TempDir())
	require.NoError(t, m.Build(false).Wait(ctx))

	m.mu.Lock()
	m.lastBuild = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()
	assert.True(t, m.ShouldRebuild(ctx))
}

func TestBuildSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "broken.pdf", "this is not a pdf")
	reg.write(t, "ok.txt", "The quarterly report shows revenue growth in Europe.")
	m := newTestIndexManager(t, reg, t.TempDir())

	require.NoError(t, m.Build(false).Wait(ctx))
	require.Positive(t, m.Status().ChunkCount)

	res := m.Query(ctx, "revenue growth", 5)
	require.NotEmpty(t, res)
	for _, r := range res {
		assert.Equal(t, "ok.txt", r.DocumentName)
	}
}

func TestBuildFailsWhenNothingLoads(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "broken.pdf", "this is not a pdf")
	m := newTestIndexManager(t, reg, t.TempDir())

	err := m.Build(false).Wait(ctx)
	require.ErrorIs(t, err, ErrNoDocuments)
	assert.Equal(t, StateFailed, m.State())
	assert.False(t, m.IndexReady())
	assert.Contains(t, m.Status().LastError, "no documents")
	assert.Empty(t, m.Query(ctx, "anything", 5))
}

func TestFailedRebuildKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "a.txt", "Defer runs when the function returns.")
	m := newTestIndexManager(t, reg, t.TempDir())
	require.NoError(t, m.Build(false).Wait(ctx))
	chunks := m.Status().ChunkCount

	m.embedder = failingEmbedder{}
	require.Error(t, m.Build(true).Wait(ctx))
	assert.Equal(t, StateFailed, m.State())
	assert.True(t, m.IndexReady())
	assert.Equal(t, chunks, m.Status().ChunkCount)
}

func TestEnsureIndexLoadsPersisted(t *testing.T) {
	ctx := context.Background()
	reg := newDirRegistry(t)
	reg.write(t, "a.txt", "Context carries deadlines and cancellation signals.")
	root := t.TempDir()

	first := newTestIndexManager(t, reg, root)
	require.NoError(t, first.Build(false).Wait(ctx))
	want := first.Query(ctx, "cancellation", 3)
	first.Close()

	calls := reg.calls.Load()
	second := newTestIndexManager(t, reg, root)
	require.NoError(t, second.EnsureIndex(ctx))
	assert.Equal(t, StateReady, second.State())
	assert.False(t, second.ShouldRebuild(ctx))

	got := second.Query(ctx, "cancellation", 3)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-6)
	}
	assert.GreaterOrEqual(t, reg.calls.Load(), calls+1)
}

func TestSelectEmbedderFallsBack(t *testing.T) {
	reg := newDirRegistry(t)
	m := NewIndexManager(context.Background(), IndexManagerConfig{
		SessionID: "session_test",
		IndexDir:  t.TempDir(),
		Primary:   failingEmbedder{},
		Fallback:  hashembed.New(32),
		Registry:  reg,
	})
	defer m.Close()

	e, mode := m.Embedder()
	assert.Equal(t, EmbedderFallback, mode)
	assert.Equal(t, "hashembed", e.Name())
	assert.Equal(t, EmbedderFallback, m.Status().EmbedderMode)
}

func TestBuildAfterClose(t *testing.T) {
	reg := newDirRegistry(t)
	m := newTestIndexManager(t, reg, t.TempDir())
	m.Close()

	err := m.Build(true).Wait(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}
