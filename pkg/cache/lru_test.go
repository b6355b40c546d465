package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	session string
	text    string
}

func newAnswers(capacity int) *LRU[string, answer] {
	c := New[string, answer](capacity)
	c.AddIndex("session", func(a answer) any { return a.session })
	return c
}

func TestLRU_Basic(t *testing.T) {
	c := newAnswers(0)
	c.Set("k1", answer{"s1", "one"})

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "one", got.text)

	c.Set("k1", answer{"s1", "uno"})
	got, _ = c.Get("k1")
	assert.Equal(t, "uno", got.text)
	assert.Equal(t, 1, c.Len())

	c.Del("k1")
	_, ok = c.Get("k1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Eviction(t *testing.T) {
	c := newAnswers(2)
	c.Set("a", answer{"s1", "a"})
	c.Set("b", answer{"s1", "b"})
	_, _ = c.Get("a")
	c.Set("c", answer{"s2", "c"})

	_, ok := c.Get("b")
	assert.False(t, ok, "最久未使用的条目应被淘汰")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	found, err := c.Find("session", "s1")
	require.NoError(t, err)
	assert.Len(t, found, 1, "淘汰的条目应从索引中移除")
}

func TestLRU_Index(t *testing.T) {
	tests := []struct {
		name    string
		index   string
		value   any
		want    int
		wantErr error
	}{
		{"会话一", "session", "s1", 2, nil},
		{"会话二", "session", "s2", 1, nil},
		{"无匹配", "session", "s3", 0, nil},
		{"未注册索引", "missing", "s1", 0, ErrIndexNotFound},
	}

	c := newAnswers(0)
	c.Set("a", answer{"s1", "a"})
	c.Set("b", answer{"s1", "b"})
	c.Set("c", answer{"s2", "c"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := c.Find(tt.index, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, found, tt.want)
		})
	}
}

func TestLRU_ReindexOnReplace(t *testing.T) {
	c := newAnswers(0)
	c.Set("a", answer{"s1", "a"})
	c.Set("a", answer{"s2", "a"})

	s1, _ := c.Find("session", "s1")
	s2, _ := c.Find("session", "s2")
	assert.Empty(t, s1)
	assert.Len(t, s2, 1)
}

func TestLRU_AddIndexReindexes(t *testing.T) {
	c := New[string, answer](0)
	c.Set("a", answer{"s1", "a"})
	c.AddIndex("session", func(a answer) any { return a.session })

	found, err := c.Find("session", "s1")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestLRU_DelBy(t *testing.T) {
	c := newAnswers(0)
	c.Set("a", answer{"s1", "a"})
	c.Set("b", answer{"s1", "b"})
	c.Set("c", answer{"s2", "c"})

	n, err := c.DelBy("session", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	_, err = c.DelBy("missing", "s1")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestLRU_ClearKeepsIndexes(t *testing.T) {
	c := newAnswers(0)
	c.Set("a", answer{"s1", "a"})
	c.Clear()
	assert.Equal(t, 0, c.Len())

	c.Set("b", answer{"s1", "b"})
	found, err := c.Find("session", "s1")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestLRU_Concurrency(t *testing.T) {
	c := newAnswers(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i)
				c.Set(key, answer{fmt.Sprintf("s%d", g%2), key})
				_, _ = c.Get(key)
				if i%10 == 0 {
					_, _ = c.DelBy("session", "s0")
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
