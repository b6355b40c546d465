// Package server 管理一组可启停的服务组件，统一启动与优雅退出。
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Lifecycle 可启停的组件。
type Lifecycle interface {
	// Start 启动组件，不阻塞。
	Start(ctx context.Context) error
	// Stop 优雅停止组件。
	Stop(ctx context.Context) error
}

// Runnable 带名称的组件。
type Runnable interface {
	Lifecycle
	Name() string
}

// Manager 按注册顺序启动组件，按逆序停止。
type Manager struct {
	mu      sync.Mutex
	servers []Runnable
	started []Runnable
}

// NewManager 创建组件管理器。
func NewManager(servers ...Runnable) *Manager {
	return &Manager{servers: servers}
}

// Add 追加组件，必须在 Start 之前调用。
func (m *Manager) Add(s Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, s)
}

// Start 依次启动所有组件。任一失败时停止已启动的组件并返回错误。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}
	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			_ = m.stopLocked(ctx)
			return fmt.Errorf("failed to start %s: %w", s.Name(), err)
		}
		m.started = append(m.started, s)
		logger.Infow("server started", "name", s.Name())
	}
	return nil
}

// Stop 逆序停止已启动的组件，汇总全部错误。
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("server stopped", "name", s.Name())
	}
	m.started = nil
	return utilerrors.NewAggregate(errs)
}
