package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// RequestLogger 请求日志中间件
//
// 正常请求记Debug避免刷屏，客户端错误记Warn，服务端错误记Error。
// 探活路径不记录。
func RequestLogger(logger log.Logger) gin.HandlerFunc {
	l := logger.With("module", "api")
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health/live" || c.Request.URL.Path == "/health/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= http.StatusInternalServerError:
			l.Errorf("%s %s -> %d 耗时=%s client=%s",
				c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
		case status >= http.StatusBadRequest:
			l.Warnf("%s %s -> %d 耗时=%s client=%s",
				c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
		default:
			l.Debugf("%s %s -> %d 耗时=%s client=%s",
				c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
		}
	}
}
