// Package resilience 提供模型调用的韧性模式：错误分类、重试、熔断、限流与初始化重试。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始延迟时间。
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间。
	MaxDelay time.Duration
	// Multiplier 延迟倍增因子（指数退避）。
	Multiplier float64
	// RetryableErrors 可重试的错误判断函数。
	RetryableErrors func(error) bool
}

// DefaultRetryConfig 返回默认重试配置：3 次尝试，1s 起步，翻倍，最长 10s。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: IsRetryableError,
	}
}

// RetryWithBackoff 使用指数退避重试函数。
// 不可重试的错误原样返回；重试耗尽时返回最后一次的错误。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = IsRetryableError
	}

	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= config.MaxAttempts {
			logger.Warnw("max retry attempts reached", "attempts", attempt, "error", err.Error())
			return err
		}

		logger.Debugw("retrying after delay", "attempt", attempt, "delay", delay, "error", err.Error())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}

// InitConfig 初始化重试配置。
type InitConfig struct {
	// MaxAttempts 最大尝试次数。
	MaxAttempts int
	// BaseDelay 第 n 次失败后等待 BaseDelay * 2^n。
	BaseDelay time.Duration
	// MaxDelay 单次等待上限。
	MaxDelay time.Duration
}

// DefaultInitConfig 返回默认初始化重试配置：3 次，等待 min(2^n 秒, 30 秒)。
func DefaultInitConfig() InitConfig {
	return InitConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ErrInitExhausted 初始化重试耗尽。
var ErrInitExhausted = errors.New("initialization retries exhausted")

// InitWithRetry 反复调用 fn 直到成功或尝试次数耗尽。
func InitWithRetry[T any](ctx context.Context, cfg InitConfig, fn func() (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		logger.Warnw("initialization attempt failed", "attempt", attempt+1, "error", err.Error())

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		wait := cfg.BaseDelay << attempt
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ErrInitExhausted, ctx.Err())
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrInitExhausted, cfg.MaxAttempts, lastErr)
}
