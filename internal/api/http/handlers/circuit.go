package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umbra-protocol/prover/internal/core/prover"
)

// CircuitHandler 电路元信息端点处理器
type CircuitHandler struct {
	service *prover.Service
}

// NewCircuitHandler 创建电路信息处理器
func NewCircuitHandler(service *prover.Service) *CircuitHandler {
	return &CircuitHandler{service: service}
}

// GetInfo 获取电路元信息（ID、版本、约束数、vk哈希）
//
// GET /circuit/info
//
// 客户端集成方可据此确认服务端电路与自己持有的验证密钥一致
func (h *CircuitHandler) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.CircuitInfo())
}
