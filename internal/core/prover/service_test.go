package prover

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/internal/core/cache"
	logimpl "github.com/umbra-protocol/prover/internal/core/infrastructure/log"
	auditstore "github.com/umbra-protocol/prover/internal/core/infrastructure/storage/badger"
)

// memAudit 内存审计sink，记录全部Append调用
type memAudit struct {
	mu      sync.Mutex
	records []*auditstore.Record
}

func (m *memAudit) Append(rec *auditstore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memAudit) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.Outcome
	}
	return out
}

// newTestService 组装一套使用共享可信设置的服务
func newTestService(t *testing.T, audit AuditSink) *Service {
	t.Helper()
	logger := logimpl.NewNop()
	circuits := testCircuitManager(t)

	engine := NewEngine(logger, circuits, config.ProverOptions{
		ProofTimeout:  2 * time.Minute,
		MaxConcurrent: 2,
	})

	proofCache, err := cache.New(logger, config.CacheOptions{
		TTL:          time.Hour,
		MaxSizeMB:    8,
		CleanWindow:  time.Minute,
		MaxEntrySize: 4096,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = proofCache.Close() })

	return NewService(
		logger,
		NewValidator(),
		NewPreVerifier(),
		engine,
		circuits,
		proofCache,
		audit,
		NewMetricsWith(prometheus.NewRegistry()),
	)
}

func TestService_GenerateProof(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 proving in short mode")
	}

	audit := &memAudit{}
	svc := newTestService(t, audit)
	payment := newSignedPayment(t, 100, 250)

	resp, err := svc.GenerateProof(context.Background(), payment.req, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Greater(t, resp.GenerationTimeMs, int64(0))
	require.Equal(t, payment.req.CacheKey(), resp.RequestHash)
	require.Len(t, resp.PublicInputs, 5)

	proofBytes, err := hex.DecodeString(resp.Proof)
	require.NoError(t, err)
	require.NotEmpty(t, proofBytes)

	vkHash, err := hex.DecodeString(resp.VKHash)
	require.NoError(t, err)
	require.Len(t, vkHash, 32)

	require.Equal(t, []string{"completed"}, audit.outcomes())
}

func TestService_CacheHit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 proving in short mode")
	}

	audit := &memAudit{}
	svc := newTestService(t, audit)
	payment := newSignedPayment(t, 100, 250)

	first, err := svc.GenerateProof(context.Background(), payment.req, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, first.Cached)

	// 公开字段相同但私有见证完全不同的第二笔支付：
	// 缓存键只含公开字段，应命中并返回第一份证明
	other := newSignedPaymentSamePublic(t, payment.req, 600)
	require.Equal(t, payment.req.CacheKey(), other.req.CacheKey())
	require.NotEqual(t, payment.req.SenderKeyX, other.req.SenderKeyX)

	second, err := svc.GenerateProof(context.Background(), other.req, "10.0.0.2")
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Zero(t, second.GenerationTimeMs)
	require.Equal(t, first.Proof, second.Proof)
	require.Equal(t, first.RequestHash, second.RequestHash)

	require.Equal(t, []string{"completed", "cached"}, audit.outcomes())
}

func TestService_InvalidRequest(t *testing.T) {
	audit := &memAudit{}
	svc := newTestService(t, audit)
	payment := newSignedPayment(t, 100, 250)
	payment.req.ActualAmount = "not-a-number"

	_, err := svc.GenerateProof(context.Background(), payment.req, "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Equal(t, []string{"rejected"}, audit.outcomes())
}

func TestService_ForgedSignature(t *testing.T) {
	audit := &memAudit{}
	svc := newTestService(t, audit)
	payment := newSignedPayment(t, 100, 250)
	// 金额被篡改：预验签应在进入证明阶段前拒绝
	payment.req.ActualAmount = "999"

	_, err := svc.GenerateProof(context.Background(), payment.req, "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.Equal(t, []string{"rejected"}, audit.outcomes())
}

func TestService_InsufficientAmount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 proving in short mode")
	}

	svc := newTestService(t, nil)
	// 签名合法但金额低于门槛：预验签通过，电路约束拒绝
	payment := newSignedPayment(t, 1000, 250)

	_, err := svc.GenerateProof(context.Background(), payment.req, "10.0.0.1")
	require.ErrorIs(t, err, ErrWitnessUnsatisfiable)
}

func TestService_ConcurrentRequests(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 proving in short mode")
	}

	svc := newTestService(t, nil)

	// 不同公开输入并发请求，全部成功且互不串扰
	payments := []*signedPayment{
		newSignedPayment(t, 100, 250),
		newSignedPayment(t, 200, 300),
		newSignedPayment(t, 50, 80),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(payments))
	hashes := make([]string, len(payments))
	for i, p := range payments {
		wg.Add(1)
		go func(i int, p *signedPayment) {
			defer wg.Done()
			resp, err := svc.GenerateProof(context.Background(), p.req, "10.0.0.1")
			errs[i] = err
			if err == nil {
				hashes[i] = resp.RequestHash
			}
		}(i, p)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := range payments {
		require.NoError(t, errs[i])
		require.False(t, seen[hashes[i]], "缓存键必须互不相同")
		seen[hashes[i]] = true
	}
}

func TestService_CircuitInfo(t *testing.T) {
	svc := newTestService(t, nil)

	info := svc.CircuitInfo()
	require.Equal(t, CircuitID, info["circuitId"])
	require.Equal(t, CircuitVersion, info["circuitVersion"])
	require.Equal(t, "groth16", info["provingScheme"])
	require.Equal(t, "bn254", info["curve"])
	require.True(t, svc.Ready())
}
