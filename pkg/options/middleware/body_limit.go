package middleware

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

// BodyLimitOptions 请求体大小限制。multipart 上传与普通请求分别限制。
type BodyLimitOptions struct {
	// MaxSize 普通请求体上限（字节）。
	MaxSize int64 `json:"max-size" mapstructure:"max-size"`
	// UploadMaxSize multipart/form-data 请求体上限（字节）。
	UploadMaxSize int64 `json:"upload-max-size" mapstructure:"upload-max-size"`
	// SkipPaths 不做限制的精确路径。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
	// SkipPathPrefixes 不做限制的路径前缀。
	SkipPathPrefixes []string `json:"skip-path-prefixes" mapstructure:"skip-path-prefixes"`
}

// NewBodyLimitOptions 返回默认配置：普通请求 4MB，上传 200MB。
func NewBodyLimitOptions() *BodyLimitOptions {
	return &BodyLimitOptions{
		MaxSize:       4 << 20,
		UploadMaxSize: 200 << 20,
	}
}

// AddFlags 注册命令行参数。
func (o *BodyLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "body-limit."
	fs.Int64Var(&o.MaxSize, p+"max-size", o.MaxSize, "Maximum request body size in bytes.")
	fs.Int64Var(&o.UploadMaxSize, p+"upload-max-size", o.UploadMaxSize, "Maximum multipart upload body size in bytes.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths exempt from the body limit.")
	fs.StringSliceVar(&o.SkipPathPrefixes, p+"skip-path-prefixes", o.SkipPathPrefixes, "Path prefixes exempt from the body limit.")
}

// Validate 校验配置。
func (o *BodyLimitOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("middleware.body-limit.max-size must be positive"))
	}
	if o.UploadMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("middleware.body-limit.upload-max-size must be positive"))
	}
	return errs
}

// Complete 上传上限不低于普通上限。
func (o *BodyLimitOptions) Complete() error {
	if o.UploadMaxSize < o.MaxSize {
		o.UploadMaxSize = o.MaxSize
	}
	return nil
}
