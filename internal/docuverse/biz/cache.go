package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docuverse/internal/pkg/rag/textutil"
	"github.com/kart-io/docuverse/pkg/cache"
	"github.com/kart-io/docuverse/pkg/utils/json"
)

// DefaultResponseKeyPrefix 响应缓存键前缀。
const DefaultResponseKeyPrefix = "docuverse:resp:"

const sessionIndex = "session"

// CachedAnswer 缓存的成功回答。
type CachedAnswer struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	CachedAt  time.Time `json:"cached_at"`
}

// ResponseCacheConfig 响应缓存配置。
type ResponseCacheConfig struct {
	KeyPrefix string
	// TTL 只作用于 redis 镜像，0 表示不过期。
	TTL time.Duration
}

// ResponseCache 按 (会话, 规范化问题) 缓存回答。
// 进程内缓存不设容量上限，条目只随 Invalidate 或所属会话的 Clear 释放，
// 一个会话的提问不会挤掉另一个会话的回答。配置了 redis 时同时写入 redis，进程重启后仍可命中。
type ResponseCache struct {
	local  *cache.LRU[string, *CachedAnswer]
	redis  goredis.UniversalClient
	config ResponseCacheConfig
}

// NewResponseCache 创建响应缓存，redis 可以为 nil。
func NewResponseCache(redis goredis.UniversalClient, cfg ResponseCacheConfig) *ResponseCache {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultResponseKeyPrefix
	}
	local := cache.New[string, *CachedAnswer](0)
	local.AddIndex(sessionIndex, func(a *CachedAnswer) any { return a.SessionID })
	return &ResponseCache{local: local, redis: redis, config: cfg}
}

// Key 返回缓存键。历史对话不参与计算：同一会话里相同的问题总是命中同一条目。
func (c *ResponseCache) Key(sessionID, question string) string {
	sum := sha256.Sum256([]byte(sessionID + "\x00" + textutil.NormalizeQuestion(question)))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

func (c *ResponseCache) sessionSetKey(sessionID string) string {
	return c.config.KeyPrefix + "session:" + sessionID
}

// Get 查找缓存的回答。
func (c *ResponseCache) Get(ctx context.Context, sessionID, question string) (*CachedAnswer, bool) {
	key := c.Key(sessionID, question)
	if a, ok := c.local.Get(key); ok {
		return a, true
	}
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("failed to read response cache", "key", key, "error", err.Error())
		}
		return nil, false
	}

	var a CachedAnswer
	if err := json.Unmarshal(data, &a); err != nil {
		logger.Warnw("dropping corrupt response cache entry", "key", key, "error", err.Error())
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	c.local.Set(key, &a)
	return &a, true
}

// Set 写入回答。
func (c *ResponseCache) Set(ctx context.Context, a *CachedAnswer) {
	key := c.Key(a.SessionID, a.Question)
	if a.CachedAt.IsZero() {
		a.CachedAt = time.Now()
	}
	c.local.Set(key, a)
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(a)
	if err != nil {
		logger.Warnw("failed to encode response cache entry", "key", key, "error", err.Error())
		return
	}
	_, err = c.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.config.TTL)
		pipe.SAdd(ctx, c.sessionSetKey(a.SessionID), key)
		return nil
	})
	if err != nil {
		logger.Warnw("failed to write response cache", "key", key, "error", err.Error())
	}
}

// Invalidate 删除一个问题的缓存。
func (c *ResponseCache) Invalidate(ctx context.Context, sessionID, question string) {
	key := c.Key(sessionID, question)
	c.local.Del(key)
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, c.sessionSetKey(sessionID), key)
		return nil
	})
	if err != nil {
		logger.Warnw("failed to invalidate response cache", "key", key, "error", err.Error())
	}
}

// Clear 删除一个会话的全部缓存，返回进程内删除的条目数。
func (c *ResponseCache) Clear(ctx context.Context, sessionID string) int {
	n, _ := c.local.DelBy(sessionIndex, sessionID)
	if c.redis == nil {
		return n
	}

	setKey := c.sessionSetKey(sessionID)
	keys, err := c.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		logger.Warnw("failed to list session cache keys", "session_id", sessionID, "error", err.Error())
		return n
	}
	if err := c.redis.Del(ctx, append(keys, setKey)...).Err(); err != nil {
		logger.Warnw("failed to clear session cache", "session_id", sessionID, "error", err.Error())
	}
	return n
}

// Len 返回进程内缓存条目数。
func (c *ResponseCache) Len() int {
	return c.local.Len()
}
