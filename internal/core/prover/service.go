package prover

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/umbra-protocol/prover/internal/core/cache"
	auditstore "github.com/umbra-protocol/prover/internal/core/infrastructure/storage/badger"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// AuditSink 审计记录写入接口
// 生产实现是badger存储，测试中可替换为内存实现或nil（禁用审计）
type AuditSink interface {
	Append(rec *auditstore.Record) error
}

// Service 证明服务编排器
//
// 🎯 **请求流水线**（从廉价到昂贵，任何一步失败立即终止）：
//
//	校验 → 缓存查询 → 预验签 → 证明生成+自检 → 缓存写入 → 审计
//
// 缓存命中走短路径：校验 → 缓存查询 → 审计。
// 限流在HTTP中间件层处理，不属于本服务的职责。
type Service struct {
	logger    log.Logger
	validator *Validator
	preverify *PreVerifier
	engine    *Engine
	circuits  *CircuitManager
	cache     *cache.ProofCache
	audit     AuditSink
	metrics   *Metrics
}

// NewService 创建证明服务
// audit 传nil表示禁用审计
func NewService(
	logger log.Logger,
	validator *Validator,
	preverify *PreVerifier,
	engine *Engine,
	circuits *CircuitManager,
	proofCache *cache.ProofCache,
	audit AuditSink,
	metrics *Metrics,
) *Service {
	return &Service{
		logger:    logger.With("module", "service"),
		validator: validator,
		preverify: preverify,
		engine:    engine,
		circuits:  circuits,
		cache:     proofCache,
		audit:     audit,
		metrics:   metrics,
	}
}

// GenerateProof 处理一次支付证明请求
func (s *Service) GenerateProof(ctx context.Context, req *ProofRequest, clientID string) (*ProofResponse, error) {
	start := time.Now()
	s.metrics.ActiveRequests.Inc()
	defer s.metrics.ActiveRequests.Dec()

	requestHash := req.CacheKey()

	// 1. 语法与范围校验
	parsed, err := s.validator.Validate(req)
	if err != nil {
		s.finish(requestHash, clientID, "rejected", err, start)
		return nil, err
	}

	// 2. 缓存查询（键只含公开输入）
	if data, ok := s.cache.Get(requestHash); ok {
		var resp ProofResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			s.metrics.CacheHits.Inc()
			resp.Cached = true
			resp.GenerationTimeMs = 0
			s.logger.Debugf("缓存命中: hash=%s", requestHash[:12])
			s.finish(requestHash, clientID, "cached", nil, start)
			return &resp, nil
		}
		// 反序列化失败视为未命中，重新生成并覆盖坏条目
		s.logger.Warnf("缓存条目损坏，按未命中处理: hash=%s", requestHash[:12])
	}
	s.metrics.CacheMisses.Inc()

	// 3. 链下预验签
	if err := s.preverify.Verify(parsed); err != nil {
		s.metrics.PreverifyReject.Inc()
		s.finish(requestHash, clientID, "rejected", err, start)
		return nil, err
	}

	// 4. 证明生成与自检
	artifact, err := s.engine.Prove(ctx, parsed.circuitAssignment())
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrProofTimeout) {
			outcome = "timeout"
		}
		s.finish(requestHash, clientID, outcome, err, start)
		return nil, err
	}
	s.metrics.ProofDuration.Observe(artifact.elapsed.Seconds())
	s.metrics.ProofSizeBytes.Observe(float64(len(artifact.proof)))

	resp := &ProofResponse{
		Proof:            hex.EncodeToString(artifact.proof),
		PublicInputs:     req.publicInputs(),
		VKHash:           hex.EncodeToString(s.circuits.VKHash()),
		ConstraintCount:  artifact.constraintCount,
		GenerationTimeMs: artifact.elapsed.Milliseconds(),
		Cached:           false,
		RequestHash:      requestHash,
	}

	// 5. 缓存写入。失败只记日志，响应照常返回
	if data, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(requestHash, data); err != nil {
			s.logger.Warnf("缓存写入失败: hash=%s err=%v", requestHash[:12], err)
		}
	}

	s.logger.Infof("证明生成成功: hash=%s 耗时=%dms 大小=%d字节",
		requestHash[:12], resp.GenerationTimeMs, len(artifact.proof))
	s.finish(requestHash, clientID, "completed", nil, start)
	return resp, nil
}

// CacheStats 返回缓存统计
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// CircuitInfo 返回电路元信息
func (s *Service) CircuitInfo() map[string]interface{} {
	return map[string]interface{}{
		"circuitId":       CircuitID,
		"circuitVersion":  CircuitVersion,
		"provingScheme":   "groth16",
		"curve":           "bn254",
		"constraintCount": s.circuits.ConstraintCount(),
		"vkHash":          hex.EncodeToString(s.circuits.VKHash()),
	}
}

// Ready 服务是否可以受理请求（可信设置已就绪）
func (s *Service) Ready() bool {
	_, _, _, err := s.circuits.TrustedSetup()
	return err == nil
}

// finish 统一出口：记指标并写审计
func (s *Service) finish(requestHash, clientID, outcome string, cause error, start time.Time) {
	s.metrics.RequestsTotal.WithLabelValues(outcome).Inc()

	if s.audit == nil {
		return
	}
	rec := &auditstore.Record{
		RequestHash: requestHash,
		ClientID:    clientID,
		Outcome:     outcome,
		DurationMs:  time.Since(start).Milliseconds(),
		Timestamp:   time.Now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := s.audit.Append(rec); err != nil {
		s.logger.Warnf("审计写入失败: hash=%s err=%v", requestHash[:12], err)
	}
}
