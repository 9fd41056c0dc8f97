package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/umbra-protocol/prover/internal/core/prover"
	"github.com/umbra-protocol/prover/internal/core/ratelimit"
)

// RateLimit 限流中间件，基于按客户端的令牌桶
//
// 客户端身份优先取鉴权密钥编号（NAT后的多个合法客户端互不挤占配额），
// 未鉴权时退化为客户端IP。只挂在证明生成路由上：健康检查和指标端点
// 不参与限流，否则探活本身会把服务打进429。
func RateLimit(limiter *ratelimit.Limiter, rejected prometheus.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := ClientIdentity(c)
		if !limiter.Allow(clientID) {
			rejected.Inc()
			c.Header("Retry-After", "60")
			// 错误外壳与证明端点保持一致的扁平 {"error": string}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": prover.ErrRateLimited.Error(),
			})
			return
		}
		c.Next()
	}
}
