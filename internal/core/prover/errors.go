// Package prover implements payment attestation proof generation on Groth16/BN254.
package prover

import (
	"errors"
	"fmt"
)

// ============================================================================
//                            证明服务错误定义
// ============================================================================

var (
	// ErrInvalidRequest 请求字段非法错误（HTTP 400）
	ErrInvalidRequest = errors.New("invalid proof request")

	// ErrInvalidSignature 链下预验签失败错误（HTTP 400）
	ErrInvalidSignature = errors.New("signature verification failed")

	// ErrWitnessUnsatisfiable 输入不满足电路约束错误（HTTP 400）
	// 对外只返回笼统描述，避免泄露是哪一条约束不满足
	ErrWitnessUnsatisfiable = errors.New("invalid payment proof inputs")

	// ErrProofTimeout 证明生成超时错误（HTTP 504）
	ErrProofTimeout = errors.New("proof generation timed out")

	// ErrRateLimited 限流错误（HTTP 429）
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrSanityCheckFailed 自检验证失败错误（HTTP 500）
	// 刚生成的证明无法通过本地验证，说明服务自身状态异常
	ErrSanityCheckFailed = errors.New("generated proof failed sanity verification")

	// ErrProverInternal 证明器内部错误（HTTP 500）
	ErrProverInternal = errors.New("prover internal error")

	// ErrSetupNotReady 可信设置未就绪错误
	ErrSetupNotReady = errors.New("trusted setup not ready")
)

// ============================================================================
//                               错误包装函数
// ============================================================================

// WrapInvalidRequestError 包装请求校验错误
func WrapInvalidRequestError(field, reason string) error {
	return fmt.Errorf("%w: field=%s, reason=%s", ErrInvalidRequest, field, reason)
}

// WrapInvalidSignatureError 包装预验签错误
func WrapInvalidSignatureError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSignature, reason)
}

// WrapWitnessUnsatisfiableError 包装约束不满足错误
// cause 只进日志，不对外暴露
func WrapWitnessUnsatisfiableError(cause error) error {
	return fmt.Errorf("%w: cause=%v", ErrWitnessUnsatisfiable, cause)
}

// WrapProverInternalError 包装内部错误
func WrapProverInternalError(stage string, err error) error {
	return fmt.Errorf("%w: stage=%s, cause=%v", ErrProverInternal, stage, err)
}
