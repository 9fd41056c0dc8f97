package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// identityContextKey 鉴权通过后写入gin上下文的客户端身份键
const identityContextKey = "clientIdentity"

// ClientIdentity 返回请求的客户端身份
// 鉴权通过时是密钥编号（不回显密钥本身），否则退化为客户端IP
func ClientIdentity(c *gin.Context) string {
	if v, ok := c.Get(identityContextKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return c.ClientIP()
}

// APIKeyAuth Bearer API密钥鉴权中间件
//
// 密钥列表为空时鉴权被禁用（仅限开发环境），启动日志会给出警告。
// 密钥比较使用常数时间比较，防止时序侧信道。
type APIKeyAuth struct {
	logger log.Logger
	keys   []string
}

// NewAPIKeyAuth 创建鉴权中间件
func NewAPIKeyAuth(logger log.Logger, keys []string) *APIKeyAuth {
	l := logger.With("module", "api")
	if len(keys) == 0 {
		l.Warn("未配置API密钥，鉴权已禁用")
	}
	return &APIKeyAuth{logger: l, keys: keys}
}

// Middleware 返回Gin中间件
func (a *APIKeyAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(a.keys) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed Authorization header",
			})
			return
		}

		for i, key := range a.keys {
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
				c.Set(identityContextKey, fmt.Sprintf("key-%d", i))
				c.Next()
				return
			}
		}

		a.logger.Warnf("API密钥无效: client=%s", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid api key",
		})
	}
}
