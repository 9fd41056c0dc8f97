package prover

import (
	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/signature/eddsa"
)

// 电路标识。pk/vk 文件名和 /circuit/info 都以此为准，
// 修改电路约束时必须递增版本号，否则会加载旧的可信设置。
const (
	CircuitID      = "payment_attestation"
	CircuitVersion = uint32(1)
)

// PaymentCircuit 支付证明电路
//
// 🎯 **电路语义**：证明存在一笔满足以下条件的支付，而不泄露支付明细：
//  1. 支付金额 >= 公开的最小金额门槛
//  2. 支付时间距当前时间不超过公开的最大时限
//  3. 支付消息由私有发送方密钥签名（EdDSA on Baby Jubjub）
//
// 🏗️ **消息哈希**：MiMC(actualAmount, senderX, senderY, recipientX, recipientY, paymentTime)
// 链下预验签使用 gnark-crypto 的 MIMC_BN254，与电路内哈希逐字节一致，
// 前提是每个输入都按 32 字节大端序 fr 元素编码（见 preverify.go）。
type PaymentCircuit struct {
	// 公开输入（验证方可见）
	MinAmount     frontend.Variable `gnark:",public"`
	RecipientKeyX frontend.Variable `gnark:",public"`
	RecipientKeyY frontend.Variable `gnark:",public"`
	MaxBlockAge   frontend.Variable `gnark:",public"`
	CurrentTime   frontend.Variable `gnark:",public"`

	// 私有输入（只进入witness，不出现在证明中）
	ActualAmount frontend.Variable
	SenderKeyX   frontend.Variable
	SenderKeyY   frontend.Variable
	PaymentTime  frontend.Variable
	SignatureR8X frontend.Variable
	SignatureR8Y frontend.Variable
	SignatureS   frontend.Variable
}

// Define 定义电路约束
func (c *PaymentCircuit) Define(api frontend.API) error {
	// 约束1：金额充足性 minAmount <= actualAmount
	api.AssertIsLessOrEqual(c.MinAmount, c.ActualAmount)

	// 约束2：支付新鲜度 currentTime - paymentTime <= maxBlockAge
	// 输入校验层保证 paymentTime <= currentTime，差值不会下溢
	age := api.Sub(c.CurrentTime, c.PaymentTime)
	api.AssertIsLessOrEqual(age, c.MaxBlockAge)

	// 约束3：EdDSA签名有效性
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}

	// 电路内重建签名消息哈希
	msgHasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	msgHasher.Write(
		c.ActualAmount,
		c.SenderKeyX,
		c.SenderKeyY,
		c.RecipientKeyX,
		c.RecipientKeyY,
		c.PaymentTime,
	)
	message := msgHasher.Sum()

	publicKey := eddsa.PublicKey{
		A: twistededwards.Point{X: c.SenderKeyX, Y: c.SenderKeyY},
	}
	signature := eddsa.Signature{
		R: twistededwards.Point{X: c.SignatureR8X, Y: c.SignatureR8Y},
		S: c.SignatureS,
	}

	// eddsa.Verify 内部用同一个MiMC实例族计算挑战哈希
	sigHasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	return eddsa.Verify(curve, signature, message, publicKey, &sigHasher)
}
