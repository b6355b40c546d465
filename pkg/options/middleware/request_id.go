package middleware

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

// 请求 ID 生成器。
const (
	GeneratorUUID = "uuid"
	GeneratorULID = "ulid"
)

// RequestIDOptions 请求 ID 中间件配置。
type RequestIDOptions struct {
	// Header 读取与回写请求 ID 的头。
	Header string `json:"header" mapstructure:"header"`
	// Generator 客户端未带 ID 时的生成器：uuid 或 ulid。
	Generator string `json:"generator" mapstructure:"generator"`
}

// NewRequestIDOptions 返回默认配置。
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{
		Header:    "X-Request-ID",
		Generator: GeneratorUUID,
	}
}

// AddFlags 注册命令行参数。
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "request-id."
	fs.StringVar(&o.Header, p+"header", o.Header, "Header carrying the request ID.")
	fs.StringVar(&o.Generator, p+"generator", o.Generator, "Request ID generator when the client sends none: uuid or ulid.")
}

// Validate 校验配置。
func (o *RequestIDOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Header == "" {
		errs = append(errs, fmt.Errorf("middleware.request-id.header cannot be empty"))
	}
	switch o.Generator {
	case "", GeneratorUUID, GeneratorULID:
	default:
		errs = append(errs, fmt.Errorf("middleware.request-id.generator must be uuid or ulid, got %q", o.Generator))
	}
	return errs
}

// Complete 补全默认值。
func (o *RequestIDOptions) Complete() error {
	if o.Generator == "" {
		o.Generator = GeneratorUUID
	}
	return nil
}
