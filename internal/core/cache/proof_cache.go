// Package cache 提供基于bigcache的证明结果缓存
//
// 缓存键是请求公开输入的SHA-256（见 prover.ProofRequest.CacheKey），
// 值是序列化后的响应。私有输入永远不进入缓存。
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// ProofCache 证明结果缓存
//
// 🎯 **语义**：
//   - 条目TTL到期后不可见（LifeWindow），后台按CleanWindow周期清扫
//   - 总容量受HardMaxCacheSize约束，写满时bigcache逐出最旧条目
//   - 同键重复写入直接覆盖，天然幂等
type ProofCache struct {
	logger log.Logger
	cache  *bigcache.BigCache
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats 缓存运行统计
type Stats struct {
	Entries    int    `json:"entries"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	CapacityMB int    `json:"capacityMb"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

// New 创建证明缓存
func New(logger log.Logger, opts config.CacheOptions) (*ProofCache, error) {
	cfg := bigcache.DefaultConfig(opts.TTL)
	cfg.CleanWindow = opts.CleanWindow
	cfg.HardMaxCacheSize = opts.MaxSizeMB
	cfg.MaxEntrySize = opts.MaxEntrySize
	cfg.Verbose = false

	bc, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return &ProofCache{
		logger: logger.With("module", "cache"),
		cache:  bc,
		ttl:    opts.TTL,
	}, nil
}

// Get 查询缓存，未命中返回 (nil, false)
func (c *ProofCache) Get(key string) ([]byte, bool) {
	data, err := c.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			c.logger.Warnf("缓存读取异常: key=%s err=%v", key[:8], err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set 写入缓存，同键覆盖
func (c *ProofCache) Set(key string, value []byte) error {
	return c.cache.Set(key, value)
}

// Stats 返回缓存统计
func (c *ProofCache) Stats() Stats {
	return Stats{
		Entries:    c.cache.Len(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		CapacityMB: c.cache.Capacity() / (1024 * 1024),
		TTLSeconds: int64(c.ttl.Seconds()),
	}
}

// Close 停止后台清扫goroutine并释放内存
func (c *ProofCache) Close() error {
	return c.cache.Close()
}
