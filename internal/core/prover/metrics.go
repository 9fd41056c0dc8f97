package prover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 证明服务核心指标
//
// 指标命名空间统一为 umbra，由 /metrics 端点暴露
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	ProofDuration   prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	RateLimited     prometheus.Counter
	ActiveRequests  prometheus.Gauge
	ProofSizeBytes  prometheus.Histogram
	PreverifyReject prometheus.Counter
}

// NewMetrics 在默认registry上注册并返回服务指标
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith 在指定registry上注册服务指标
// 测试中传入独立的 prometheus.NewRegistry()，避免重复注册panic
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "requests_total",
			Help:      "Proof requests by terminal status",
		}, []string{"status"}),

		ProofDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "proof_generation_duration_seconds",
			Help:      "Wall time of Groth16 proof generation (cache misses only)",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "cache_hits_total",
			Help:      "Proof cache hits",
		}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "cache_misses_total",
			Help:      "Proof cache misses",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),

		ActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "active_requests",
			Help:      "Proof requests currently in flight",
		}),

		ProofSizeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "proof_size_bytes",
			Help:      "Serialized proof size",
			Buckets:   prometheus.ExponentialBuckets(128, 2, 8),
		}),

		PreverifyReject: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "prover",
			Name:      "preverify_rejections_total",
			Help:      "Requests rejected by off-circuit signature pre-verification",
		}),
	}
}
