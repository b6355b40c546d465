package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerOptionsDefaults(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPOptions.Addr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Same(t, o.RAGOptions, cfg.RAGOptions)
	assert.Same(t, o.MiddlewareOptions, cfg.MiddlewareOptions)
}

func TestServerOptionsFlags(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	tests := []struct {
		name    string
		section string
		flag    string
	}{
		{"监听地址", "http", "http.addr"},
		{"日志级别", "log", "log.level"},
		{"嵌入供应商", "embedding", "embedding.provider"},
		{"对话限流", "chat", "chat.rate-limit"},
		{"数据目录", "rag", "rag.data-dir"},
		{"数据库驱动", "database", "database.driver"},
		{"缓存开关", "cache", "cache.enabled"},
		{"缓存 Redis 地址", "cache", "cache.redis.host"},
		{"追踪开关", "tracing", "tracing.enabled"},
		{"请求 ID 头", "middleware", "middleware.request-id.header"},
		{"上传体积上限", "middleware", "middleware.body-limit.upload-max-size"},
		{"请求超时", "middleware", "middleware.timeout.timeout"},
		{"停机超时", "misc", "shutdown-timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, ok := fss.FlagSets[tt.section]
			require.True(t, ok)
			assert.NotNil(t, fs.Lookup(tt.flag))
		})
	}

	require.NoError(t, fss.FlagSets["rag"].Set("rag.chunk-size", "256"))
	assert.Equal(t, 256, o.RAGOptions.ChunkSize)
}

func TestServerOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *ServerOptions)
	}{
		{"空监听地址", func(o *ServerOptions) { o.HTTPOptions.Addr = "" }},
		{"不支持的数据库驱动", func(o *ServerOptions) { o.DatabaseOptions.Driver = "oracle" }},
		{"重叠超过分块", func(o *ServerOptions) { o.RAGOptions.ChunkOverlap = o.RAGOptions.ChunkSize }},
		{"缺少嵌入供应商", func(o *ServerOptions) { o.EmbeddingOptions.Provider = "" }},
		{"未知请求 ID 生成器", func(o *ServerOptions) { o.MiddlewareOptions.RequestID.Generator = "snowflake" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewServerOptions()
			require.NoError(t, o.Complete())
			tt.mutate(o)
			assert.Error(t, o.Validate())
		})
	}
}
