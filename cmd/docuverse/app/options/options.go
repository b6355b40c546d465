// Package options contains flags and options for initializing the docuverse server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/docuverse/internal/docuverse"
	cliflag "github.com/kart-io/docuverse/pkg/app/cliflag"
	cacheopts "github.com/kart-io/docuverse/pkg/options/cache"
	dbopts "github.com/kart-io/docuverse/pkg/options/database"
	httpopts "github.com/kart-io/docuverse/pkg/options/http"
	llmopts "github.com/kart-io/docuverse/pkg/options/llm"
	logopts "github.com/kart-io/docuverse/pkg/options/logger"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	ragopts "github.com/kart-io/docuverse/pkg/options/rag"
	tracingopts "github.com/kart-io/docuverse/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains indexing and retrieval configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// DatabaseOptions contains conversation store configuration.
	DatabaseOptions *dbopts.Options `json:"database" mapstructure:"database"`

	// CacheOptions contains the redis cache mirror configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// MiddlewareOptions contains request id, body limit, timeout and recovery configuration.
	MiddlewareOptions *mwopts.Options `json:"middleware" mapstructure:"middleware"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		RAGOptions:        ragopts.NewOptions(),
		DatabaseOptions:   dbopts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		MiddlewareOptions: mwopts.NewOptions(),
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"), "http")
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"), "rag")
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"), "database")
	o.CacheOptions.AddFlags(fss.FlagSet("cache"), "cache")
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"), "tracing")
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"), "middleware")

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.DatabaseOptions.Complete(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a docuverse.Config based on ServerOptions.
func (o *ServerOptions) Config() (*docuverse.Config, error) {
	return &docuverse.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		RAGOptions:        o.RAGOptions,
		DatabaseOptions:   o.DatabaseOptions,
		CacheOptions:      o.CacheOptions,
		TracingOptions:    o.TracingOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}
