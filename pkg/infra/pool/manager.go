package pool

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager 按名称持有多个池，服务关闭时统一释放。
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewManager 创建池管理器。
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// Register 创建并登记一个池。
func (m *Manager) Register(name string, typ Type, config *Config) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyExists, name)
	}
	p, err := NewPool(name, typ, config)
	if err != nil {
		return nil, err
	}
	m.pools[name] = p
	return p, nil
}

// Info 单个池的运行状态。
type Info struct {
	Name     string
	Type     Type
	Capacity int
	Running  int
	Waiting  int
	Stats
}

// Stats 返回所有池的状态，按名称排序。
func (m *Manager) Stats() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.pools))
	for name, p := range m.pools {
		infos = append(infos, Info{
			Name:     name,
			Type:     p.Type(),
			Capacity: p.Cap(),
			Running:  p.Running(),
			Waiting:  p.Waiting(),
			Stats:    p.Stats(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ReleaseAllTimeout 释放所有池，每个池最多等待 timeout。返回第一个超时错误。
func (m *Manager) ReleaseAllTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, p := range m.pools {
		if err := p.ReleaseTimeout(timeout); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("release pool %s: %w", name, err)
		}
	}
	m.pools = make(map[string]*Pool)
	return firstErr
}
