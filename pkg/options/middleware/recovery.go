package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

// RecoveryOptions panic 恢复中间件配置。
type RecoveryOptions struct {
	// EnableStackTrace 为 true 时错误响应携带 panic 值与堆栈，只用于调试。
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions 返回默认配置。
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags 注册命令行参数。
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"recovery.enable-stack-trace", o.EnableStackTrace,
		"Include the panic value and stack trace in error responses.")
}

// Validate 校验配置。
func (o *RecoveryOptions) Validate() []error {
	return nil
}

// Complete 补全默认值。
func (o *RecoveryOptions) Complete() error {
	return nil
}
