package pool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Run 在池中执行 fn，并在 timeout（<= 0 表示不限）或 ctx 结束时放弃等待。
// 超时返回 context.DeadlineExceeded；fn 收到的 ctx 同时被取消，可以尽早退出。
// fn 中的 panic 转换为 ErrTaskPanicked。p 为 nil 时在独立 goroutine 中执行。
func Run[T any](ctx context.Context, p *Pool, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}

	if p == nil {
		go task()
	} else if err := p.Submit(task); err != nil {
		return zero, err
	}

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// ForEach 在池中对 0..n-1 并发执行 fn 并等待全部完成。
// 池拒绝任务时（已满或已关闭）在调用方 goroutine 中直接执行，结果不丢失。
func ForEach(p *Pool, n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		task := func() {
			defer wg.Done()
			fn(i)
		}
		if p == nil {
			task()
			continue
		}
		if err := p.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
}

// Go 把 fn 提交到池中；池拒绝时退回到独立 goroutine，并恢复其中的 panic。
func Go(p *Pool, fn func(), onPanic func(interface{})) {
	if p != nil && p.Submit(fn) == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(r)
			}
		}()
		fn()
	}()
}
