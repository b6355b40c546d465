// Package middleware provides configuration options for the HTTP middleware chain.
package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 中间件配置，每个中间件一组。
type Options struct {
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	BodyLimit *BodyLimitOptions `json:"body-limit" mapstructure:"body-limit"`
	Timeout   *TimeoutOptions   `json:"timeout" mapstructure:"timeout"`
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
}

// NewOptions 创建默认中间件配置。
func NewOptions() *Options {
	return &Options{
		RequestID: NewRequestIDOptions(),
		BodyLimit: NewBodyLimitOptions(),
		Timeout:   NewTimeoutOptions(),
		Recovery:  NewRecoveryOptions(),
	}
}

// AddFlags 注册各中间件的命令行参数，形如 middleware.request-id.header。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.RequestID.AddFlags(fs, prefixes...)
	o.BodyLimit.AddFlags(fs, prefixes...)
	o.Timeout.AddFlags(fs, prefixes...)
	o.Recovery.AddFlags(fs, prefixes...)
}

// Validate 校验所有中间件配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.BodyLimit.Validate()...)
	errs = append(errs, o.Timeout.Validate()...)
	errs = append(errs, o.Recovery.Validate()...)
	return errs
}

// Complete 补全默认值。
func (o *Options) Complete() error {
	for _, c := range []interface{ Complete() error }{o.RequestID, o.BodyLimit, o.Timeout, o.Recovery} {
		if err := c.Complete(); err != nil {
			return err
		}
	}
	return nil
}
