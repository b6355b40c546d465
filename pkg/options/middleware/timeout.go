package middleware

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

// TimeoutOptions 请求处理超时。
type TimeoutOptions struct {
	// Timeout 请求 context 的期限，0 表示不限。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// SkipPaths 不设期限的精确路径。
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTimeoutOptions 返回默认配置。期限需覆盖一次完整的模型调用。
func NewTimeoutOptions() *TimeoutOptions {
	return &TimeoutOptions{
		Timeout:   2 * time.Minute,
		SkipPaths: []string{"/metrics"},
	}
}

// AddFlags 注册命令行参数。
func (o *TimeoutOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "timeout."
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request processing deadline, 0 disables it.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths without a request deadline.")
}

// Validate 校验配置。
func (o *TimeoutOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Timeout < 0 {
		return []error{fmt.Errorf("middleware.timeout.timeout cannot be negative")}
	}
	return nil
}

// Complete 补全默认值。
func (o *TimeoutOptions) Complete() error {
	return nil
}
