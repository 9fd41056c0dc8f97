package prover

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	gchash "github.com/consensys/gnark-crypto/hash"
	"github.com/stretchr/testify/require"

	"github.com/umbra-protocol/prover/internal/config"
	logimpl "github.com/umbra-protocol/prover/internal/core/infrastructure/log"
)

// signedPayment 一笔签名合法的测试支付及其请求表示
type signedPayment struct {
	req *ProofRequest
}

// newSignedPayment 生成随机密钥对并签出一笔满足所有电路约束的支付
//
// minAmount/actualAmount 可调，签名始终覆盖 actualAmount，
// 因此把 actualAmount 调低到 minAmount 之下得到的是
// "签名合法但约束不满足"的请求。
func newSignedPayment(t *testing.T, minAmount, actualAmount int64) *signedPayment {
	t.Helper()

	sender, err := eddsa.GenerateKey(rand.Reader)
	require.NoError(t, err)
	recipient, err := eddsa.GenerateKey(rand.Reader)
	require.NoError(t, err)

	now := time.Now().Unix()
	paymentTime := now - 30

	senderX, senderY := new(big.Int), new(big.Int)
	sender.PublicKey.A.X.BigInt(senderX)
	sender.PublicKey.A.Y.BigInt(senderY)

	recipientX, recipientY := new(big.Int), new(big.Int)
	recipient.PublicKey.A.X.BigInt(recipientX)
	recipient.PublicKey.A.Y.BigInt(recipientY)

	digest := PaymentDigest(
		big.NewInt(actualAmount),
		senderX, senderY,
		recipientX, recipientY,
		big.NewInt(paymentTime),
	)

	sigBin, err := sender.Sign(digest, gchash.MIMC_BN254.New())
	require.NoError(t, err)

	var sig eddsa.Signature
	_, err = sig.SetBytes(sigBin)
	require.NoError(t, err)

	r8x, r8y := new(big.Int), new(big.Int)
	sig.R.X.BigInt(r8x)
	sig.R.Y.BigInt(r8y)
	s := new(big.Int).SetBytes(sig.S[:])

	return &signedPayment{
		req: &ProofRequest{
			MinAmount:     fmt.Sprintf("%d", minAmount),
			RecipientKeyX: recipientX.String(),
			RecipientKeyY: recipientY.String(),
			MaxBlockAge:   "3600",
			CurrentTime:   now,
			ActualAmount:  fmt.Sprintf("%d", actualAmount),
			SenderKeyX:    senderX.String(),
			SenderKeyY:    senderY.String(),
			PaymentTime:   paymentTime,
			SignatureR8X:  r8x.String(),
			SignatureR8Y:  r8y.String(),
			SignatureS:    s.String(),
		},
	}
}

// newSignedPaymentSamePublic 复用base的全部公开字段签出另一笔支付
//
// 发送方密钥、金额、支付时间、签名全部不同，缓存键与base一致。
func newSignedPaymentSamePublic(t *testing.T, base *ProofRequest, actualAmount int64) *signedPayment {
	t.Helper()

	sender, err := eddsa.GenerateKey(rand.Reader)
	require.NoError(t, err)

	recipientX, ok := new(big.Int).SetString(base.RecipientKeyX, 10)
	require.True(t, ok)
	recipientY, ok := new(big.Int).SetString(base.RecipientKeyY, 10)
	require.True(t, ok)

	paymentTime := base.CurrentTime - 45

	senderX, senderY := new(big.Int), new(big.Int)
	sender.PublicKey.A.X.BigInt(senderX)
	sender.PublicKey.A.Y.BigInt(senderY)

	digest := PaymentDigest(
		big.NewInt(actualAmount),
		senderX, senderY,
		recipientX, recipientY,
		big.NewInt(paymentTime),
	)

	sigBin, err := sender.Sign(digest, gchash.MIMC_BN254.New())
	require.NoError(t, err)

	var sig eddsa.Signature
	_, err = sig.SetBytes(sigBin)
	require.NoError(t, err)

	r8x, r8y := new(big.Int), new(big.Int)
	sig.R.X.BigInt(r8x)
	sig.R.Y.BigInt(r8y)
	s := new(big.Int).SetBytes(sig.S[:])

	return &signedPayment{
		req: &ProofRequest{
			MinAmount:     base.MinAmount,
			RecipientKeyX: base.RecipientKeyX,
			RecipientKeyY: base.RecipientKeyY,
			MaxBlockAge:   base.MaxBlockAge,
			CurrentTime:   base.CurrentTime,
			ActualAmount:  fmt.Sprintf("%d", actualAmount),
			SenderKeyX:    senderX.String(),
			SenderKeyY:    senderY.String(),
			PaymentTime:   paymentTime,
			SignatureR8X:  r8x.String(),
			SignatureR8Y:  r8y.String(),
			SignatureS:    s.String(),
		},
	}
}

// 可信设置fixture：编译+Setup在整个测试二进制里只执行一次
var (
	setupOnce    sync.Once
	setupManager *CircuitManager
	setupErr     error
)

// testCircuitManager 返回共享的、已就绪的电路管理器
func testCircuitManager(t *testing.T) *CircuitManager {
	t.Helper()
	setupOnce.Do(func() {
		dir, err := os.MkdirTemp("", "prover-keys-*")
		if err != nil {
			setupErr = err
			return
		}
		setupManager = NewCircuitManager(logimpl.NewNop(), config.ProverOptions{
			KeysDir:       dir,
			ProofTimeout:  2 * time.Minute,
			MaxConcurrent: 2,
		})
		setupErr = setupManager.Prepare()
	})
	require.NoError(t, setupErr)
	return setupManager
}
