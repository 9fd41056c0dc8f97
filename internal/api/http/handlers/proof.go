// Package handlers 实现证明服务的HTTP端点
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umbra-protocol/prover/internal/api/http/middleware"
	"github.com/umbra-protocol/prover/internal/core/prover"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// ProofHandler 证明生成端点处理器
type ProofHandler struct {
	logger  log.Logger
	service *prover.Service
}

// NewProofHandler 创建证明端点处理器
func NewProofHandler(logger log.Logger, service *prover.Service) *ProofHandler {
	return &ProofHandler{
		logger:  logger.With("module", "api"),
		service: service,
	}
}

// GenerateProof 生成支付证明
//
// POST /generate-proof
//
// 错误映射：
//   - 请求体不是合法JSON/含未知字段 → 400
//   - 字段校验失败、预验签失败、约束不满足 → 400
//   - 证明超时 → 504
//   - 自检失败及其他内部错误 → 500（对外不暴露细节）
func (h *ProofHandler) GenerateProof(c *gin.Context) {
	var req prover.ProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "malformed request body: " + err.Error(),
		})
		return
	}

	resp, err := h.service.GenerateProof(c.Request.Context(), &req, middleware.ClientIdentity(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// writeError 将服务错误映射为HTTP响应
func (h *ProofHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, prover.ErrInvalidRequest),
		errors.Is(err, prover.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, prover.ErrWitnessUnsatisfiable):
		// 不透传是哪条约束失败：统一返回笼统描述
		c.JSON(http.StatusBadRequest, gin.H{"error": prover.ErrWitnessUnsatisfiable.Error()})

	case errors.Is(err, prover.ErrProofTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": prover.ErrProofTimeout.Error()})

	default:
		// ErrSanityCheckFailed / ErrProverInternal / 未知错误
		h.logger.Errorf("证明请求内部错误: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
