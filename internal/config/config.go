// Package config 提供证明服务的配置管理
//
// 配置来源优先级：默认值 < 配置文件（JSON）。
// 每个配置段遵循"完整默认值 + 用户指针覆盖"模式，
// 用户配置中未出现的字段保持默认值不变。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ==================== 用户配置（JSON文件结构） ====================

// UserConfig 用户配置文件的顶层结构
// 所有字段均为指针类型：nil 表示用户未设置，使用默认值
type UserConfig struct {
	Server    *UserServerConfig    `json:"server,omitempty"`
	Prover    *UserProverConfig    `json:"prover,omitempty"`
	Cache     *UserCacheConfig     `json:"cache,omitempty"`
	RateLimit *UserRateLimitConfig `json:"rate_limit,omitempty"`
	Audit     *UserAuditConfig     `json:"audit,omitempty"`
	Log       *UserLogConfig       `json:"log,omitempty"`
}

// UserServerConfig HTTP服务配置（用户侧）
type UserServerConfig struct {
	Host            *string  `json:"host,omitempty"`
	Port            *int     `json:"port,omitempty"`
	APIKeys         []string `json:"api_keys,omitempty"`
	ReadTimeoutSec  *int     `json:"read_timeout_sec,omitempty"`
	WriteTimeoutSec *int     `json:"write_timeout_sec,omitempty"`
	AllowedOrigins  []string `json:"allowed_origins,omitempty"`
}

// UserProverConfig 证明生成配置（用户侧）
type UserProverConfig struct {
	KeysDir         *string `json:"keys_dir,omitempty"`
	ProofTimeoutSec *int    `json:"proof_timeout_sec,omitempty"`
	MaxConcurrent   *int    `json:"max_concurrent,omitempty"`
}

// UserCacheConfig 证明缓存配置（用户侧）
type UserCacheConfig struct {
	TTLSec         *int `json:"ttl_sec,omitempty"`
	MaxSizeMB      *int `json:"max_size_mb,omitempty"`
	CleanupSec     *int `json:"cleanup_sec,omitempty"`
	MaxEntrySizeKB *int `json:"max_entry_size_kb,omitempty"`
}

// UserRateLimitConfig 限流配置（用户侧）
type UserRateLimitConfig struct {
	RequestsPerMinute *int `json:"requests_per_minute,omitempty"`
	BurstSize         *int `json:"burst_size,omitempty"`
	IdleTTLSec        *int `json:"idle_ttl_sec,omitempty"`
}

// UserAuditConfig 审计存储配置（用户侧）
type UserAuditConfig struct {
	Enabled        *bool   `json:"enabled,omitempty"`
	Dir            *string `json:"dir,omitempty"`
	RetentionHours *int    `json:"retention_hours,omitempty"`
}

// UserLogConfig 日志配置（用户侧）
type UserLogConfig struct {
	Level    *string `json:"level,omitempty"`
	FilePath *string `json:"file_path,omitempty"`
}

// ==================== 运行时配置 ====================

// ServerOptions HTTP服务配置
type ServerOptions struct {
	Host           string
	Port           int
	APIKeys        []string // 为空时禁用鉴权（仅限开发环境）
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// ProverOptions 证明生成配置
type ProverOptions struct {
	KeysDir       string        // pk/vk 持久化目录
	ProofTimeout  time.Duration // 单次证明生成超时
	MaxConcurrent int           // 并发证明上限（信号量）
}

// CacheOptions 证明缓存配置
type CacheOptions struct {
	TTL          time.Duration // 条目生存期
	MaxSizeMB    int           // 缓存总容量上限（MB），满时逐出最旧条目
	CleanWindow  time.Duration // 过期条目清扫间隔
	MaxEntrySize int           // 单条目预估大小（字节），用于分片预分配
}

// RateLimitOptions 限流配置
type RateLimitOptions struct {
	RequestsPerMinute int           // 每分钟补充的令牌数
	BurstSize         int           // 桶容量
	IdleTTL           time.Duration // 空闲客户端桶的回收阈值
}

// AuditOptions 审计存储配置
type AuditOptions struct {
	Enabled   bool
	Dir       string
	Retention time.Duration // badger条目TTL
}

// LogOptions 日志配置
type LogOptions struct {
	Level            string
	ToConsole        bool
	FilePath         string
	MaxSize          int // 单个日志文件最大大小(MB)
	MaxBackups       int
	MaxAge           int // 天
	Compress         bool
	EnableCaller     bool
	EnableStacktrace bool
}

// Options 服务完整配置
type Options struct {
	Server    ServerOptions
	Prover    ProverOptions
	Cache     CacheOptions
	RateLimit RateLimitOptions
	Audit     AuditOptions
	Log       LogOptions
}

// ==================== 默认值 ====================

// Default 返回完整的默认配置
func Default() *Options {
	return &Options{
		Server: ServerOptions{
			Host:           "0.0.0.0",
			Port:           8080,
			APIKeys:        nil,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Prover: ProverOptions{
			KeysDir:       "./keys",
			ProofTimeout:  60 * time.Second,
			MaxConcurrent: 4,
		},
		Cache: CacheOptions{
			TTL:          time.Hour,
			MaxSizeMB:    64,
			CleanWindow:  5 * time.Minute,
			MaxEntrySize: 4096,
		},
		RateLimit: RateLimitOptions{
			RequestsPerMinute: 60,
			BurstSize:         10,
			IdleTTL:           10 * time.Minute,
		},
		Audit: AuditOptions{
			Enabled:   true,
			Dir:       "./data/audit",
			Retention: 24 * time.Hour,
		},
		Log: LogOptions{
			Level:            "info",
			ToConsole:        true,
			FilePath:         "./data/logs/prover.log",
			MaxSize:          100,
			MaxBackups:       5,
			MaxAge:           30,
			Compress:         true,
			EnableCaller:     true,
			EnableStacktrace: true,
		},
	}
}

// New 基于默认值和用户配置创建运行时配置
func New(user *UserConfig) *Options {
	opts := Default()
	if user == nil {
		return opts
	}
	applyServer(opts, user.Server)
	applyProver(opts, user.Prover)
	applyCache(opts, user.Cache)
	applyRateLimit(opts, user.RateLimit)
	applyAudit(opts, user.Audit)
	applyLog(opts, user.Log)
	return opts
}

// Load 从JSON配置文件加载配置
// path为空时返回默认配置
func Load(path string) (*Options, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var user UserConfig
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	opts := New(&user)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate 校验配置的基本一致性
func (o *Options) Validate() error {
	if o.Server.Port <= 0 || o.Server.Port > 65535 {
		return fmt.Errorf("非法端口: %d", o.Server.Port)
	}
	if o.Prover.ProofTimeout <= 0 {
		return fmt.Errorf("证明超时必须为正: %v", o.Prover.ProofTimeout)
	}
	if o.Prover.MaxConcurrent <= 0 {
		return fmt.Errorf("并发上限必须为正: %d", o.Prover.MaxConcurrent)
	}
	if o.Cache.TTL <= 0 {
		return fmt.Errorf("缓存TTL必须为正: %v", o.Cache.TTL)
	}
	if o.RateLimit.RequestsPerMinute <= 0 || o.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("限流参数必须为正: rpm=%d burst=%d",
			o.RateLimit.RequestsPerMinute, o.RateLimit.BurstSize)
	}
	return nil
}

// ==================== 指针覆盖 ====================

func applyServer(opts *Options, user *UserServerConfig) {
	if user == nil {
		return
	}
	if user.Host != nil {
		opts.Server.Host = *user.Host
	}
	if user.Port != nil {
		opts.Server.Port = *user.Port
	}
	if user.APIKeys != nil {
		opts.Server.APIKeys = user.APIKeys
	}
	if user.ReadTimeoutSec != nil {
		opts.Server.ReadTimeout = time.Duration(*user.ReadTimeoutSec) * time.Second
	}
	if user.WriteTimeoutSec != nil {
		opts.Server.WriteTimeout = time.Duration(*user.WriteTimeoutSec) * time.Second
	}
	if user.AllowedOrigins != nil {
		opts.Server.AllowedOrigins = user.AllowedOrigins
	}
}

func applyProver(opts *Options, user *UserProverConfig) {
	if user == nil {
		return
	}
	if user.KeysDir != nil {
		opts.Prover.KeysDir = *user.KeysDir
	}
	if user.ProofTimeoutSec != nil {
		opts.Prover.ProofTimeout = time.Duration(*user.ProofTimeoutSec) * time.Second
	}
	if user.MaxConcurrent != nil {
		opts.Prover.MaxConcurrent = *user.MaxConcurrent
	}
}

func applyCache(opts *Options, user *UserCacheConfig) {
	if user == nil {
		return
	}
	if user.TTLSec != nil {
		opts.Cache.TTL = time.Duration(*user.TTLSec) * time.Second
	}
	if user.MaxSizeMB != nil {
		opts.Cache.MaxSizeMB = *user.MaxSizeMB
	}
	if user.CleanupSec != nil {
		opts.Cache.CleanWindow = time.Duration(*user.CleanupSec) * time.Second
	}
	if user.MaxEntrySizeKB != nil {
		opts.Cache.MaxEntrySize = *user.MaxEntrySizeKB * 1024
	}
}

func applyRateLimit(opts *Options, user *UserRateLimitConfig) {
	if user == nil {
		return
	}
	if user.RequestsPerMinute != nil {
		opts.RateLimit.RequestsPerMinute = *user.RequestsPerMinute
	}
	if user.BurstSize != nil {
		opts.RateLimit.BurstSize = *user.BurstSize
	}
	if user.IdleTTLSec != nil {
		opts.RateLimit.IdleTTL = time.Duration(*user.IdleTTLSec) * time.Second
	}
}

func applyAudit(opts *Options, user *UserAuditConfig) {
	if user == nil {
		return
	}
	if user.Enabled != nil {
		opts.Audit.Enabled = *user.Enabled
	}
	if user.Dir != nil {
		opts.Audit.Dir = *user.Dir
	}
	if user.RetentionHours != nil {
		opts.Audit.Retention = time.Duration(*user.RetentionHours) * time.Hour
	}
}

func applyLog(opts *Options, user *UserLogConfig) {
	if user == nil {
		return
	}
	if user.Level != nil {
		opts.Log.Level = *user.Level
	}
	if user.FilePath != nil {
		opts.Log.FilePath = *user.FilePath
		opts.Log.ToConsole = false // 指定文件路径时默认不输出到控制台
	}
}
