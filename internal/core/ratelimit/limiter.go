// Package ratelimit 提供按客户端的令牌桶限流
package ratelimit

import (
	"sync"
	"time"

	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// Limiter 按客户端标识（通常是IP）限流的令牌桶集合
//
// - 惰性补充：每次Allow时根据距上次补充的时间差计算新增令牌
// - 后台清扫：空闲超过IdleTTL的桶被整体回收，防止map无界增长
type Limiter struct {
	logger log.Logger

	mu      sync.RWMutex
	buckets map[string]*bucket

	ratePerSec float64 // 每秒补充的令牌数
	burst      float64 // 桶容量
	idleTTL    time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

// bucket 单客户端令牌桶
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	lastSeen   time.Time
}

// NewLimiter 创建限流器并启动空闲桶清扫
func NewLimiter(logger log.Logger, opts config.RateLimitOptions) *Limiter {
	l := &Limiter{
		logger:     logger.With("module", "ratelimit"),
		buckets:    make(map[string]*bucket),
		ratePerSec: float64(opts.RequestsPerMinute) / 60.0,
		burst:      float64(opts.BurstSize),
		idleTTL:    opts.IdleTTL,
		stopCh:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow 判断客户端是否允许本次请求，允许时消费一个令牌
func (l *Limiter) Allow(clientID string) bool {
	b := l.bucket(clientID)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.lastSeen = now

	// 惰性补充
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.ratePerSec
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// ClientCount 当前跟踪的客户端数量
func (l *Limiter) ClientCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Stop 停止后台清扫
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

// bucket 查找或创建客户端的令牌桶
func (l *Limiter) bucket(clientID string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[clientID]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// double-check，避免并发重复创建
	if b, ok := l.buckets[clientID]; ok {
		return b
	}
	now := time.Now()
	b = &bucket{
		tokens:     l.burst, // 新客户端满桶起步
		lastRefill: now,
		lastSeen:   now,
	}
	l.buckets[clientID] = b
	return b
}

// sweep 周期回收空闲桶
func (l *Limiter) sweep() {
	interval := l.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.purgeIdle()
		case <-l.stopCh:
			return
		}
	}
}

// purgeIdle 删除空闲超过IdleTTL的桶
func (l *Limiter) purgeIdle() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, id)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debugf("回收空闲限流桶: removed=%d remaining=%d", removed, len(l.buckets))
	}
}
