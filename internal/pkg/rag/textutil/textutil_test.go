package textutil_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{name: "相同向量", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, expected: 1},
		{name: "正交向量", a: []float32{1, 0, 0}, b: []float32{0, 1, 0}, expected: 0},
		{name: "相反向量", a: []float32{1, 0, 0}, b: []float32{-1, 0, 0}, expected: -1},
		{name: "空向量", a: []float32{}, b: []float32{}, expected: 0},
		{name: "长度不匹配", a: []float32{1, 2}, b: []float32{1}, expected: 0},
		{name: "零向量", a: []float32{0, 0}, b: []float32{1, 1}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 1e-4)
		})
	}
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "what is go?", textutil.NormalizeQuestion("  What   is\tGo?\n"))
	assert.Equal(t, textutil.NormalizeQuestion("A  b"), textutil.NormalizeQuestion("a b"))
}

func TestHashString(t *testing.T) {
	h := textutil.HashString("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "你好", textutil.TruncateString("你好世界", 2))
	assert.Equal(t, "", textutil.TruncateString("abc", 0))
	assert.Equal(t, "abcd...", textutil.TruncateWithEllipsis("abcdefghij", 7))
	assert.Equal(t, "short", textutil.TruncateWithEllipsis("short", 7))
	assert.Equal(t, 7, textutil.RuneLen(textutil.TruncateWithEllipsis("世界世界世界世界世界", 7)))
}

func TestSplitIntoChunks(t *testing.T) {
	chunks := textutil.SplitIntoChunks(strings.Repeat("a", 25), 10, 2)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
	assert.Equal(t, []string{"short"}, textutil.SplitIntoChunks("short", 10, 2))
	assert.Nil(t, textutil.SplitIntoChunks("x", 0, 0))
}

func TestSplitSentences(t *testing.T) {
	text := "First sentence. Second one!  Third?\n\nNew paragraph without stop\n\n版本 3.14 很好。中文第二句！"
	got := textutil.SplitSentences(text)
	assert.Equal(t, []string{
		"First sentence.",
		"Second one!",
		"Third?",
		"New paragraph without stop",
		"版本 3.14 很好。",
		"中文第二句！",
	}, got)

	assert.Empty(t, textutil.SplitSentences("   \n\n  "))
	assert.Equal(t, []string{"Wait...", "what?!"}, textutil.SplitSentences("Wait... what?!"))
}

func TestChunkSentences(t *testing.T) {
	var sentences []string
	for i := 0; i < 40; i++ {
		sentences = append(sentences, "This is sentence number "+strings.Repeat("x", i%5)+".")
	}

	chunks := textutil.ChunkSentences(sentences, 100, 40)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, textutil.RuneLen(c), 100)
	}

	// 相邻块共享重叠句子
	for i := 1; i < len(chunks); i++ {
		prev := textutil.SplitSentences(chunks[i-1])
		next := textutil.SplitSentences(chunks[i])
		assert.Equal(t, prev[len(prev)-1], next[0], "chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestChunkSentencesLongSentence(t *testing.T) {
	long := strings.Repeat("y", 250)
	chunks := textutil.ChunkSentences([]string{"Intro.", long, "Outro."}, 100, 10)
	require.Len(t, chunks, 5)
	assert.Equal(t, "Intro.", chunks[0])
	assert.Equal(t, "Outro.", chunks[len(chunks)-1])
	for _, c := range chunks {
		assert.LessOrEqual(t, textutil.RuneLen(c), 100)
	}
}

func TestChunkSentencesNoOverlap(t *testing.T) {
	chunks := textutil.ChunkSentences([]string{"aaaa.", "bbbb.", "cccc."}, 11, 0)
	assert.Equal(t, []string{"aaaa. bbbb.", "cccc."}, chunks)
	assert.Nil(t, textutil.ChunkSentences([]string{"a"}, 0, 0))
	assert.Empty(t, textutil.ChunkSentences(nil, 10, 2))
}
