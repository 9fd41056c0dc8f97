package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics HTTP层请求指标中间件
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics 注册HTTP指标
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by path, method and status",
		}, []string{"path", "method", "status"}),

		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "umbra",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 30, 120},
		}, []string{"path", "method"}),
	}
}

// Middleware 返回Gin中间件
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 用路由模板而非原始URL，避免标签基数爆炸
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requests.WithLabelValues(path, method, status).Inc()
		m.duration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
