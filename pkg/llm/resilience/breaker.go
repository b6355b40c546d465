package resilience

import (
	"time"

	"github.com/kart-io/logger"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BreakerConfig 熔断器配置。
type BreakerConfig struct {
	// Name 熔断器名称，出现在日志里。
	Name string
	// MaxFailures 连续失败多少次后打开。
	MaxFailures uint32
	// Timeout 打开状态持续时间，之后进入半开。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测请求数。
	HalfOpenMaxCalls uint32
}

// DefaultBreakerConfig 返回默认熔断器配置。
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// NewCircuitBreaker 基于 gobreaker 创建熔断器。
// 只有超时与服务不可用计入失败；限流和请求本身的错误不会让熔断器打开。
func NewCircuitBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch Classify(err) {
			case ClassUnavailable, ClassTimedOut:
				return false
			default:
				return true
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// NewRateLimiter 创建每分钟 perMinute 个令牌、突发 perMinute 的限流器。
func NewRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}
