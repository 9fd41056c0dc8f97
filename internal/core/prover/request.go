package prover

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// ProofRequest 支付证明请求（HTTP JSON入参）
//
// 字段元（大整数）一律使用十进制字符串传输，避免JSON number精度丢失；
// 时间戳是Unix秒，int64足够，直接用数字传输。
type ProofRequest struct {
	// 公开输入
	MinAmount     string `json:"minAmount" binding:"required"`
	RecipientKeyX string `json:"recipientKeyX" binding:"required"`
	RecipientKeyY string `json:"recipientKeyY" binding:"required"`
	MaxBlockAge   string `json:"maxBlockAge" binding:"required"`
	CurrentTime   int64  `json:"currentTime" binding:"required"`

	// 私有输入（仅进入witness，服务不落盘）
	ActualAmount string `json:"actualAmount" binding:"required"`
	SenderKeyX   string `json:"senderKeyX" binding:"required"`
	SenderKeyY   string `json:"senderKeyY" binding:"required"`
	PaymentTime  int64  `json:"paymentTime" binding:"required"`
	SignatureR8X string `json:"signatureR8x" binding:"required"`
	SignatureR8Y string `json:"signatureR8y" binding:"required"`
	SignatureS   string `json:"signatureS" binding:"required"`
}

// ProofResponse 支付证明响应
type ProofResponse struct {
	Proof            string   `json:"proof"`        // 序列化证明（hex）
	PublicInputs     []string `json:"publicInputs"` // 公开输入回显（十进制）
	VKHash           string   `json:"vkHash"`       // 验证密钥SHA-256（hex）
	ConstraintCount  uint64   `json:"constraintCount"`
	GenerationTimeMs int64    `json:"generationTimeMs"` // 缓存命中时为0
	Cached           bool     `json:"cached"`
	RequestHash      string   `json:"requestHash"` // 公开输入哈希，同时是缓存键
}

// parsedRequest 校验通过后的请求，全部字段已解析为域元素范围内的大整数
type parsedRequest struct {
	minAmount     *big.Int
	recipientKeyX *big.Int
	recipientKeyY *big.Int
	maxBlockAge   *big.Int
	currentTime   *big.Int

	actualAmount *big.Int
	senderKeyX   *big.Int
	senderKeyY   *big.Int
	paymentTime  *big.Int
	signatureR8X *big.Int
	signatureR8Y *big.Int
	signatureS   *big.Int
}

// CacheKey 计算请求的缓存键
//
// ⚠️ 只对公开输入取哈希：相同公开输入的请求可以复用同一份证明，
// 私有输入不参与键值，也就永远不会离开证明流水线。
func (r *ProofRequest) CacheKey() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d",
		r.MinAmount, r.RecipientKeyX, r.RecipientKeyY, r.MaxBlockAge, r.CurrentTime)
	return hex.EncodeToString(h.Sum(nil))
}

// publicInputs 公开输入的十进制回显，顺序与电路公开变量声明一致
func (r *ProofRequest) publicInputs() []string {
	return []string{
		r.MinAmount,
		r.RecipientKeyX,
		r.RecipientKeyY,
		r.MaxBlockAge,
		fmt.Sprintf("%d", r.CurrentTime),
	}
}

// circuitAssignment 构建完整witness的电路赋值
func (p *parsedRequest) circuitAssignment() *PaymentCircuit {
	return &PaymentCircuit{
		MinAmount:     p.minAmount,
		RecipientKeyX: p.recipientKeyX,
		RecipientKeyY: p.recipientKeyY,
		MaxBlockAge:   p.maxBlockAge,
		CurrentTime:   p.currentTime,

		ActualAmount: p.actualAmount,
		SenderKeyX:   p.senderKeyX,
		SenderKeyY:   p.senderKeyY,
		PaymentTime:  p.paymentTime,
		SignatureR8X: p.signatureR8X,
		SignatureR8Y: p.signatureR8Y,
		SignatureS:   p.signatureS,
	}
}
