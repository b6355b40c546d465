package biz

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCacheKey(t *testing.T) {
	c := NewResponseCache(nil, ResponseCacheConfig{})

	tests := []struct {
		name  string
		a, b  [2]string
		equal bool
	}{
		{"大小写与空白规范化", [2]string{"s1", "What is Go?"}, [2]string{"s1", "  what   is go?"}, true},
		{"不同会话", [2]string{"s1", "q"}, [2]string{"s2", "q"}, false},
		{"不同问题", [2]string{"s1", "q1"}, [2]string{"s1", "q2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := c.Key(tt.a[0], tt.a[1])
			kb := c.Key(tt.b[0], tt.b[1])
			assert.Equal(t, tt.equal, ka == kb)
			assert.True(t, strings.HasPrefix(ka, DefaultResponseKeyPrefix))
		})
	}
}

func TestResponseCacheSetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(nil, ResponseCacheConfig{})

	_, ok := c.Get(ctx, "s1", "q")
	assert.False(t, ok)

	c.Set(ctx, &CachedAnswer{SessionID: "s1", Question: "Q", Answer: "A"})
	got, ok := c.Get(ctx, "s1", "q")
	require.True(t, ok)
	assert.Equal(t, "A", got.Answer)
	assert.False(t, got.CachedAt.IsZero())

	c.Invalidate(ctx, "s1", "Q ")
	_, ok = c.Get(ctx, "s1", "q")
	assert.False(t, ok)
}

func TestResponseCacheClearIsPerSession(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(nil, ResponseCacheConfig{})
	c.Set(ctx, &CachedAnswer{SessionID: "s1", Question: "a", Answer: "1"})
	c.Set(ctx, &CachedAnswer{SessionID: "s1", Question: "b", Answer: "2"})
	c.Set(ctx, &CachedAnswer{SessionID: "s2", Question: "a", Answer: "3"})

	assert.Equal(t, 2, c.Clear(ctx, "s1"))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(ctx, "s2", "a")
	assert.True(t, ok)
}

func TestResponseCacheNoCrossSessionEviction(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(nil, ResponseCacheConfig{})
	c.Set(ctx, &CachedAnswer{SessionID: "quiet", Question: "first question", Answer: "kept"})

	for i := 0; i < 10000; i++ {
		c.Set(ctx, &CachedAnswer{SessionID: "busy", Question: fmt.Sprintf("q%d", i), Answer: "a"})
	}

	got, ok := c.Get(ctx, "quiet", "first question")
	require.True(t, ok)
	assert.Equal(t, "kept", got.Answer)
	assert.Equal(t, 10001, c.Len())

	assert.Equal(t, 10000, c.Clear(ctx, "busy"))
	assert.Equal(t, 1, c.Len())
}

func TestResponseCacheRedisDown(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	ctx := context.Background()
	c := NewResponseCache(rdb, ResponseCacheConfig{TTL: time.Minute})

	_, ok := c.Get(ctx, "s1", "q")
	assert.False(t, ok)

	c.Set(ctx, &CachedAnswer{SessionID: "s1", Question: "q", Answer: "a"})
	got, ok := c.Get(ctx, "s1", "q")
	require.True(t, ok)
	assert.Equal(t, "a", got.Answer)

	assert.Equal(t, 1, c.Clear(ctx, "s1"))
}
