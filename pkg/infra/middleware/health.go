package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// HealthStatus 健康状态。
type HealthStatus string

const (
	// HealthStatusUp 服务健康。
	HealthStatusUp HealthStatus = "UP"
	// HealthStatusDown 服务不健康。
	HealthStatusDown HealthStatus = "DOWN"
)

// HealthResponse 健康检查响应。
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
	Version string                 `json:"version,omitempty"`
}

// CheckResult 单项检查结果。
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthChecker 执行一项健康检查。
type HealthChecker func() error

// HealthManager 管理健康检查项。
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager 创建健康检查管理器。
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker 注册检查项，同名覆盖。
func (h *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Check 执行全部检查，任一失败则整体为 DOWN。
func (h *HealthManager) Check() HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := HealthResponse{
		Status:  HealthStatusUp,
		Version: h.version,
	}
	if len(h.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(h.checkers))
	for name, checker := range h.checkers {
		if err := checker(); err != nil {
			resp.Status = HealthStatusDown
			resp.Checks[name] = CheckResult{Status: HealthStatusDown, Message: err.Error()}
			continue
		}
		resp.Checks[name] = CheckResult{Status: HealthStatusUp}
	}
	return resp
}

// RegisterHealthRoutes 注册健康检查端点，DOWN 时返回 503。
func RegisterHealthRoutes(r gin.IRoutes, path string, manager *HealthManager) {
	if path == "" {
		path = "/healthz"
	}
	r.GET(path, func(c *gin.Context) {
		resp := manager.Check()
		status := http.StatusOK
		if resp.Status == HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	})
}
