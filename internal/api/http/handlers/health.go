package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umbra-protocol/prover/internal/core/prover"
)

// HealthHandler 健康检查端点处理器
//
// 🏥 **Kubernetes风格健康检查**
//
// - /health: 完整健康报告
// - /health/live: 存活检查（进程是否响应）
// - /health/ready: 就绪检查（可信设置是否加载完成）
type HealthHandler struct {
	service   *prover.Service
	startTime time.Time
	version   string
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(service *prover.Service, version string) *HealthHandler {
	return &HealthHandler{
		service:   service,
		startTime: time.Now(),
		version:   version,
	}
}

// GetHealth 获取完整健康状态
//
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ready := h.service.Ready()
	status := "healthy"
	if !ready {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().Format(time.RFC3339),
		"components": gin.H{
			"trusted_setup": readyString(ready),
		},
	})
}

// GetLiveness 存活检查（Kubernetes Liveness Probe）
//
// GET /health/live
//
// 只检查进程是否响应，不检查业务状态，避免依赖故障导致重启
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GetReadiness 就绪检查（Kubernetes Readiness Probe）
//
// GET /health/ready
//
// 可信设置未就绪时返回503，Kubernetes会把Pod从Service摘除
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	if !h.service.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func readyString(ready bool) string {
	if ready {
		return "healthy"
	}
	return "unavailable"
}
