// Package rag provides retrieval configuration options.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains retrieval and index configuration.
type Options struct {
	// DataDir is the root for uploads, indexes, caches, notes and the sqlite database.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// ChunkSize is the chunk size in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// SimilarityCutoff drops results scoring below it; 0 disables.
	SimilarityCutoff float64 `json:"similarity-cutoff" mapstructure:"similarity-cutoff"`

	// MaxContextChars is the prompt budget for document excerpts.
	MaxContextChars int `json:"max-context-chars" mapstructure:"max-context-chars"`

	// RebuildInterval marks an index stale after this long.
	RebuildInterval time.Duration `json:"rebuild-interval" mapstructure:"rebuild-interval"`

	// QueryTimeout bounds a single index search.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// LoaderWorkers is the number of files loaded concurrently.
	LoaderWorkers int `json:"loader-workers" mapstructure:"loader-workers"`

	// FallbackDimension is the vector size of the hash embedder.
	FallbackDimension int `json:"fallback-dimension" mapstructure:"fallback-dimension"`

	// ProbeTimeout bounds the primary embedder capability probe.
	ProbeTimeout time.Duration `json:"probe-timeout" mapstructure:"probe-timeout"`

	// WatchUploads enables the upload directory watcher.
	WatchUploads bool `json:"watch-uploads" mapstructure:"watch-uploads"`

	// WatchDebounce coalesces watcher events per session.
	WatchDebounce time.Duration `json:"watch-debounce" mapstructure:"watch-debounce"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		DataDir:           "./data",
		ChunkSize:         512,
		ChunkOverlap:      50,
		TopK:              5,
		MaxContextChars:   4000,
		RebuildInterval:   time.Hour,
		QueryTimeout:      30 * time.Second,
		LoaderWorkers:     4,
		FallbackDimension: 384,
		ProbeTimeout:      10 * time.Second,
		WatchUploads:      true,
		WatchDebounce:     2 * time.Second,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.DataDir, p+"data-dir", o.DataDir, "Root directory for uploads, indexes, caches and notes.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Chunk size in runes.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks in runes.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per question.")
	fs.Float64Var(&o.SimilarityCutoff, p+"similarity-cutoff", o.SimilarityCutoff, "Drop results below this score (0 disables).")
	fs.IntVar(&o.MaxContextChars, p+"max-context-chars", o.MaxContextChars, "Character budget for document context in the prompt.")
	fs.DurationVar(&o.RebuildInterval, p+"rebuild-interval", o.RebuildInterval, "Age after which an index is rebuilt.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Timeout of a single index search.")
	fs.IntVar(&o.LoaderWorkers, p+"loader-workers", o.LoaderWorkers, "Files loaded concurrently during a build.")
	fs.IntVar(&o.FallbackDimension, p+"fallback-dimension", o.FallbackDimension, "Vector size of the hash fallback embedder.")
	fs.DurationVar(&o.ProbeTimeout, p+"probe-timeout", o.ProbeTimeout, "Timeout of the embedder capability probe.")
	fs.BoolVar(&o.WatchUploads, p+"watch-uploads", o.WatchUploads, "Rebuild indexes when upload directories change.")
	fs.DurationVar(&o.WatchDebounce, p+"watch-debounce", o.WatchDebounce, "Debounce window of the upload watcher.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.DataDir == "" {
		errs = append(errs, fmt.Errorf("data-dir is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("max-context-chars must be positive"))
	}
	if o.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("query-timeout must be positive"))
	}
	if o.FallbackDimension <= 0 {
		errs = append(errs, fmt.Errorf("fallback-dimension must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.LoaderWorkers <= 0 {
		o.LoaderWorkers = 4
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 10 * time.Second
	}
	if o.WatchDebounce <= 0 {
		o.WatchDebounce = 2 * time.Second
	}
	return nil
}
