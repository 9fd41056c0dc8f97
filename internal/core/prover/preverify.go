package prover

import (
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	gchash "github.com/consensys/gnark-crypto/hash"
)

// PreVerifier 链下签名预验证器
//
// 🎯 **职责**：在进入昂贵的witness构建和Groth16证明之前，
// 用 gnark-crypto 的原生EdDSA实现验证一次签名。无效签名在这里
// 以毫秒级成本被拒绝，而不是在证明阶段以秒级成本失败。
//
// ⚠️ 哈希编码必须与电路内MiMC完全一致：每个输入都规约为
// BN254标量域元素后取32字节大端序，再写入MiMC。
type PreVerifier struct{}

// NewPreVerifier 创建预验证器
func NewPreVerifier() *PreVerifier {
	return &PreVerifier{}
}

// Verify 验证支付消息的EdDSA签名
//
// 消息哈希 = MiMC(actualAmount, senderX, senderY, recipientX, recipientY, paymentTime)
func (pv *PreVerifier) Verify(req *parsedRequest) error {
	// 1. 重建发送方公钥，必须是Baby Jubjub曲线上的点
	var pub eddsa.PublicKey
	pub.A.X.SetBigInt(req.senderKeyX)
	pub.A.Y.SetBigInt(req.senderKeyY)
	if !pub.A.IsOnCurve() {
		return WrapInvalidSignatureError("sender key is not on curve")
	}

	// 2. 重建签名
	var sig eddsa.Signature
	sig.R.X.SetBigInt(req.signatureR8X)
	sig.R.Y.SetBigInt(req.signatureR8Y)
	if !sig.R.IsOnCurve() {
		return WrapInvalidSignatureError("signature R8 is not on curve")
	}
	req.signatureS.FillBytes(sig.S[:])

	sigBin := sig.Bytes()

	// 3. 计算消息哈希，编码方式与电路内一致
	digest := PaymentDigest(
		req.actualAmount,
		req.senderKeyX,
		req.senderKeyY,
		req.recipientKeyX,
		req.recipientKeyY,
		req.paymentTime,
	)

	// 4. 原生EdDSA验签（挑战哈希同样使用MIMC_BN254）
	ok, err := pub.Verify(sigBin, digest, gchash.MIMC_BN254.New())
	if err != nil {
		return WrapInvalidSignatureError(err.Error())
	}
	if !ok {
		return WrapInvalidSignatureError("eddsa verification rejected")
	}
	return nil
}

// PaymentDigest 计算支付消息的MiMC哈希
//
// 每个输入规约为fr元素后按32字节大端序写入，
// 与电路内 mimc.Write 对 frontend.Variable 的编码一致。
func PaymentDigest(values ...*big.Int) []byte {
	h := gchash.MIMC_BN254.New()
	for _, v := range values {
		h.Write(fieldBytes(v))
	}
	return h.Sum(nil)
}

// fieldBytes 将大整数规约为BN254标量域元素的32字节大端序表示
func fieldBytes(v *big.Int) []byte {
	var e fr.Element
	e.SetBigInt(v)
	b := e.Bytes()
	return b[:]
}
