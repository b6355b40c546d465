package pool

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type 池的用途。
type Type string

const (
	// LoaderPool 文档加载池，按文件并发解析。
	LoaderPool Type = "loader"
	// BackgroundPool 后台任务池，用于索引构建。
	BackgroundPool Type = "background"
	// QueryPool 检索池，执行带超时的向量查询。
	QueryPool Type = "query"
	// LLMPool 模型调用池，每个会话独立。
	LLMPool Type = "llm"
)

// Config 池配置。
type Config struct {
	// Capacity 最大并发 goroutine 数。
	Capacity int
	// ExpiryDuration 空闲 worker 的回收时间。
	ExpiryDuration time.Duration
	// Nonblocking 为 true 时池满立即返回 ErrPoolOverload。
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下最多排队的任务数，0 表示不限。
	MaxBlockingTasks int
	// PanicHandler 为 nil 时记录错误日志。
	PanicHandler func(interface{})
}

// LoaderPoolConfig 4 个 worker，阻塞提交。
func LoaderPoolConfig() *Config {
	return &Config{Capacity: 4, ExpiryDuration: 30 * time.Second}
}

// BackgroundPoolConfig 50 个 worker，池满时拒绝。
func BackgroundPoolConfig() *Config {
	return &Config{Capacity: 50, ExpiryDuration: time.Minute, Nonblocking: true}
}

// QueryPoolConfig 100 个 worker，池满时拒绝。
func QueryPoolConfig() *Config {
	return &Config{Capacity: 100, ExpiryDuration: 30 * time.Second, Nonblocking: true}
}

// LLMPoolConfig 2 个 worker，最多 16 个排队任务。
func LLMPoolConfig() *Config {
	return &Config{Capacity: 2, ExpiryDuration: time.Minute, MaxBlockingTasks: 16}
}

// DefaultConfig 返回 typ 对应的默认配置。
func DefaultConfig(typ Type) *Config {
	switch typ {
	case LoaderPool:
		return LoaderPoolConfig()
	case BackgroundPool:
		return BackgroundPoolConfig()
	case QueryPool:
		return QueryPoolConfig()
	case LLMPool:
		return LLMPoolConfig()
	default:
		return &Config{Capacity: 16, ExpiryDuration: 10 * time.Second}
	}
}

// Stats 任务计数快照。
type Stats struct {
	Submitted int64
	Completed int64
	Rejected  int64
	Panicked  int64
}

// Pool 命名的 ants 池，附带任务计数。
type Pool struct {
	name   string
	typ    Type
	pool   *ants.Pool
	closed atomic.Bool

	submitted, completed, rejected, panicked atomic.Int64
}

// NewPool 创建池。config 为 nil 时使用 typ 的默认配置。
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig(typ)
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidPoolConfig)
	}

	onPanic := config.PanicHandler
	if onPanic == nil {
		onPanic = func(r interface{}) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}
	}

	p := &Pool{name: name, typ: typ}
	ap, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(onPanic),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %s: %w", name, err)
	}
	p.pool = ap

	logger.Debugw("Worker pool created", "name", name, "type", string(typ),
		"capacity", config.Capacity, "nonblocking", config.Nonblocking)
	return p, nil
}

// Name 返回池名称。
func (p *Pool) Name() string { return p.name }

// Type 返回池类型。
func (p *Pool) Type() Type { return p.typ }

// Cap 返回池容量。
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在执行任务的 worker 数。
func (p *Pool) Running() int { return p.pool.Running() }

// Waiting 返回排队中的任务数。
func (p *Pool) Waiting() int { return p.pool.Waiting() }

// Submit 提交任务。池已关闭返回 ErrPoolClosed，非阻塞池满时返回 ErrPoolOverload。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.panicked.Add(1)
				// 交给 ants 的 PanicHandler 记录。
				panic(r)
			}
			p.completed.Add(1)
		}()
		task()
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// Release 立即关闭池，不等待运行中的任务。
func (p *Pool) Release() {
	if p.closed.CompareAndSwap(false, true) {
		p.pool.Release()
		logger.Debugw("Worker pool released", "name", p.name)
	}
}

// ReleaseTimeout 关闭池并最多等待 timeout 让运行中的任务结束。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回任务计数快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panicked:  p.panicked.Load(),
	}
}
