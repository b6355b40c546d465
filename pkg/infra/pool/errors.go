// Package pool 基于 ants 提供命名 worker 池，以及带超时的任务执行辅助函数。
package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭。
	ErrPoolClosed = errors.New("pool closed")
	// ErrPoolAlreadyExists 同名池已注册。
	ErrPoolAlreadyExists = errors.New("pool already exists")
	// ErrInvalidPoolConfig 池配置无效。
	ErrInvalidPoolConfig = errors.New("invalid pool config")
	// ErrPoolOverload 非阻塞池已满。
	ErrPoolOverload = errors.New("pool overloaded")
	// ErrTaskPanicked 任务执行中发生 panic。
	ErrTaskPanicked = errors.New("task panicked")
)
