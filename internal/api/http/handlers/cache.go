package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umbra-protocol/prover/internal/core/prover"
)

// CacheHandler 缓存统计端点处理器
type CacheHandler struct {
	service *prover.Service
}

// NewCacheHandler 创建缓存统计处理器
func NewCacheHandler(service *prover.Service) *CacheHandler {
	return &CacheHandler{service: service}
}

// GetStats 获取缓存统计
//
// GET /cache/stats
func (h *CacheHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.CacheStats())
}
