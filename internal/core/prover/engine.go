package prover

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// Engine Groth16证明生成引擎
//
// 🎯 **专门职责**：在固定电路上执行witness构建、证明生成和自检验证
// 🏗️ **技术栈**：基于gnark库实现Groth16证明方案
//
// 并发控制：信号量限制同时运行的Prove数量，超出的请求在
// 信号量上排队，排队期间可被ctx取消。
type Engine struct {
	logger   log.Logger
	circuits *CircuitManager
	timeout  time.Duration
	sem      chan struct{}
}

// proofArtifact 一次证明生成的产物
type proofArtifact struct {
	proof           []byte
	constraintCount uint64
	elapsed         time.Duration
}

// NewEngine 创建证明引擎
func NewEngine(logger log.Logger, circuits *CircuitManager, opts config.ProverOptions) *Engine {
	// ⚠️ **禁用gnark库的日志输出**
	// gnark会输出大量调试信息（compiling circuit, parsed circuit inputs等），
	// 污染结构化日志。gnark使用zerolog，这里全局替换为丢弃输出的实例。
	gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))

	return &Engine{
		logger:   logger.With("module", "engine"),
		circuits: circuits,
		timeout:  opts.ProofTimeout,
		sem:      make(chan struct{}, opts.MaxConcurrent),
	}
}

// Prove 为给定赋值生成证明并做自检验证
//
// 错误映射：
//   - witness不满足约束 → ErrWitnessUnsatisfiable
//   - 超时/取消 → ErrProofTimeout
//   - 自检验证失败 → ErrSanityCheckFailed
//   - 其他 → ErrProverInternal
func (e *Engine) Prove(ctx context.Context, assignment *PaymentCircuit) (*proofArtifact, error) {
	start := time.Now()

	// 并发闸门
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ErrProofTimeout
	}

	cs, pk, vk, err := e.circuits.TrustedSetup()
	if err != nil {
		return nil, err
	}

	// 构建完整witness。不满足语法的赋值（如nil字段）在这里失败
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, WrapProverInternalError("witness", err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		return nil, WrapProverInternalError("public-witness", err)
	}

	// Prove 在独立goroutine中运行，外层按超时/取消放弃等待。
	// 被放弃的Prove仍会运行到结束占用CPU，gnark不支持中途取消，
	// 信号量保证这类僵尸任务的数量有上界。
	type proveResult struct {
		proof groth16.Proof
		err   error
	}
	resultCh := make(chan proveResult, 1)
	go func() {
		proof, err := groth16.Prove(cs, pk, fullWitness)
		resultCh <- proveResult{proof: proof, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	var proof groth16.Proof
	select {
	case res := <-resultCh:
		if res.err != nil {
			if isUnsatisfied(res.err) {
				return nil, WrapWitnessUnsatisfiableError(res.err)
			}
			return nil, WrapProverInternalError("prove", res.err)
		}
		proof = res.proof
	case <-timer.C:
		e.logger.Warnf("证明生成超时: timeout=%v", e.timeout)
		return nil, ErrProofTimeout
	case <-ctx.Done():
		return nil, ErrProofTimeout
	}

	// 自检验证：刚生成的证明必须能通过本地验证，
	// 失败说明可信设置或电路状态被破坏，属于服务端故障
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		e.logger.Errorf("自检验证失败: %v", err)
		return nil, ErrSanityCheckFailed
	}

	proofBytes, err := serializeProof(proof)
	if err != nil {
		return nil, WrapProverInternalError("serialize", err)
	}

	elapsed := time.Since(start)
	e.logger.Debugf("证明生成完成: 耗时=%v, 大小=%d字节", elapsed, len(proofBytes))

	return &proofArtifact{
		proof:           proofBytes,
		constraintCount: uint64(cs.GetNbConstraints()),
		elapsed:         elapsed,
	}, nil
}

// serializeProof 使用gnark内置的WriteTo序列化证明
func serializeProof(proof groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isUnsatisfied 判断Prove错误是否由witness不满足约束引起
// gnark对这类失败没有导出的sentinel，只能匹配错误文本
func isUnsatisfied(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unsatisfied") || strings.Contains(msg, "not satisfied")
}
