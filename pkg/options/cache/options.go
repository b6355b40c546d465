// Package cache provides response and embedding cache options.
package cache

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
	redisopts "github.com/kart-io/docuverse/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 缓存配置。进程内缓存始终开启，Enabled 控制 redis 镜像。
type Options struct {
	// Enabled 是否启用 redis 镜像。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// KeyPrefix 响应缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// EmbeddingKeyPrefix 嵌入缓存键前缀。
	EmbeddingKeyPrefix string `json:"embedding-key-prefix" mapstructure:"embedding-key-prefix"`

	// EmbeddingTTL 嵌入缓存过期时间。响应缓存不过期。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:            false,
		KeyPrefix:          "docuverse:resp:",
		EmbeddingKeyPrefix: "docuverse:emb:",
		EmbeddingTTL:       24 * time.Hour,
		Redis:              redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Mirror caches to redis.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Response cache key prefix.")
	fs.StringVar(&o.EmbeddingKeyPrefix, p+"embedding-key-prefix", o.EmbeddingKeyPrefix, "Embedding cache key prefix.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, prefixes...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Enabled && o.Redis != nil {
		return o.Redis.Validate()
	}
	return nil
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = "docuverse:resp:"
	}
	return o.Redis.Complete()
}
