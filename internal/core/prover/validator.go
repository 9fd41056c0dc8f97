package prover

import (
	"math/big"
	"strings"
	"time"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// 输入校验常量
const (
	// maxFieldLength 单个数字字段的最大字符数，防御超长输入拖慢big.Int解析
	maxFieldLength = 100

	// clockSkewPast 允许客户端时钟落后的秒数
	clockSkewPast = 300
	// clockSkewFuture 允许客户端时钟超前的秒数
	clockSkewFuture = 60
)

// Validator 请求校验器
//
// 只做廉价的语法和范围检查，签名的密码学验证在 PreVerifier 中进行。
// 校验顺序从廉价到昂贵：存在性 → 长度 → 字符集 → 数值范围 → 时钟窗口。
type Validator struct {
	now func() time.Time // 可注入，测试用
}

// NewValidator 创建请求校验器
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// numericField 命名数字字段，保持确定的校验顺序
type numericField struct {
	name  string
	value string
}

// Validate 校验请求并解析为域元素范围内的大整数
//
// 校验规则：
//  1. 所有字符串字段非空且不超过 maxFieldLength 字符
//  2. 只允许十进制数字字符（无符号、无空白、无前缀）
//  3. 数值为正且小于BN254标量域模数
//  4. currentTime 和 paymentTime 都在服务器时钟的 [-300s, +60s] 窗口内
//  5. paymentTime <= currentTime（否则电路内减法下溢）
func (v *Validator) Validate(req *ProofRequest) (*parsedRequest, error) {
	fields := []numericField{
		{"minAmount", req.MinAmount},
		{"recipientKeyX", req.RecipientKeyX},
		{"recipientKeyY", req.RecipientKeyY},
		{"maxBlockAge", req.MaxBlockAge},
		{"actualAmount", req.ActualAmount},
		{"senderKeyX", req.SenderKeyX},
		{"senderKeyY", req.SenderKeyY},
		{"signatureR8x", req.SignatureR8X},
		{"signatureR8y", req.SignatureR8Y},
		{"signatureS", req.SignatureS},
	}

	// 1-2. 存在性、长度、字符集
	for _, f := range fields {
		if f.value == "" {
			return nil, WrapInvalidRequestError(f.name, "missing")
		}
		if len(f.value) > maxFieldLength {
			return nil, WrapInvalidRequestError(f.name, "too long")
		}
		if !isDecimal(f.value) {
			return nil, WrapInvalidRequestError(f.name, "not a decimal number")
		}
	}

	// 3. 数值解析与范围
	parsed := &parsedRequest{}
	modulus := fr.Modulus()
	targets := map[string]**big.Int{
		"minAmount":     &parsed.minAmount,
		"recipientKeyX": &parsed.recipientKeyX,
		"recipientKeyY": &parsed.recipientKeyY,
		"maxBlockAge":   &parsed.maxBlockAge,
		"actualAmount":  &parsed.actualAmount,
		"senderKeyX":    &parsed.senderKeyX,
		"senderKeyY":    &parsed.senderKeyY,
		"signatureR8x":  &parsed.signatureR8X,
		"signatureR8y":  &parsed.signatureR8Y,
		"signatureS":    &parsed.signatureS,
	}
	for _, f := range fields {
		n, ok := new(big.Int).SetString(f.value, 10)
		if !ok {
			return nil, WrapInvalidRequestError(f.name, "parse failed")
		}
		if n.Sign() <= 0 {
			return nil, WrapInvalidRequestError(f.name, "must be positive")
		}
		if n.Cmp(modulus) >= 0 {
			return nil, WrapInvalidRequestError(f.name, "exceeds field modulus")
		}
		*targets[f.name] = n
	}

	// 金额和时限参与电路内比较约束，限制在64位以内：
	// 接近域模数的值会让AssertIsLessOrEqual的语义失真
	for _, f := range []struct {
		name  string
		value *big.Int
	}{
		{"minAmount", parsed.minAmount},
		{"actualAmount", parsed.actualAmount},
		{"maxBlockAge", parsed.maxBlockAge},
	} {
		if f.value.BitLen() > 64 {
			return nil, WrapInvalidRequestError(f.name, "exceeds 64-bit range")
		}
	}

	// 4. 时间戳基本合法性
	if req.CurrentTime <= 0 {
		return nil, WrapInvalidRequestError("currentTime", "must be positive")
	}
	if req.PaymentTime <= 0 {
		return nil, WrapInvalidRequestError("paymentTime", "must be positive")
	}

	// 5. 时钟窗口：防止重放旧的公开输入或预生成未来的证明
	now := v.now().Unix()
	if req.CurrentTime < now-clockSkewPast || req.CurrentTime > now+clockSkewFuture {
		return nil, WrapInvalidRequestError("currentTime", "outside allowed clock window")
	}

	// 6. paymentTime受同一窗口约束：电路的age约束只限制它与
	// currentTime的差值，宽松的maxBlockAge不能放行陈旧支付
	if req.PaymentTime < now-clockSkewPast || req.PaymentTime > now+clockSkewFuture {
		return nil, WrapInvalidRequestError("paymentTime", "outside allowed clock window")
	}

	// 7. 支付时间不能晚于当前时间
	if req.PaymentTime > req.CurrentTime {
		return nil, WrapInvalidRequestError("paymentTime", "after currentTime")
	}

	parsed.currentTime = big.NewInt(req.CurrentTime)
	parsed.paymentTime = big.NewInt(req.PaymentTime)
	return parsed, nil
}

// isDecimal 判断字符串是否只包含十进制数字
// 不接受符号、空白和进制前缀，strings.TrimSpace 之类的宽容处理留给客户端
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return r < '0' || r > '9'
	}) == -1
}
