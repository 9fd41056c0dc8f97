package prover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, req *ProofRequest) *parsedRequest {
	t.Helper()
	v := NewValidator()
	v.now = func() time.Time { return time.Unix(req.CurrentTime, 0) }
	parsed, err := v.Validate(req)
	require.NoError(t, err)
	return parsed
}

func TestPreVerifier_ValidSignature(t *testing.T) {
	payment := newSignedPayment(t, 100, 250)
	pv := NewPreVerifier()

	require.NoError(t, pv.Verify(parse(t, payment.req)))
}

func TestPreVerifier_TamperedAmount(t *testing.T) {
	payment := newSignedPayment(t, 100, 250)
	// 签名覆盖actualAmount，改动后消息哈希变化，验签必须失败
	payment.req.ActualAmount = "251"
	pv := NewPreVerifier()

	err := pv.Verify(parse(t, payment.req))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPreVerifier_TamperedRecipient(t *testing.T) {
	payment := newSignedPayment(t, 100, 250)
	other := newSignedPayment(t, 100, 250)
	// 接收方公钥参与消息哈希，换成另一个合法点也必须失败
	payment.req.RecipientKeyX = other.req.RecipientKeyX
	payment.req.RecipientKeyY = other.req.RecipientKeyY
	pv := NewPreVerifier()

	err := pv.Verify(parse(t, payment.req))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPreVerifier_SenderKeyNotOnCurve(t *testing.T) {
	payment := newSignedPayment(t, 100, 250)
	payment.req.SenderKeyX = "12345"
	payment.req.SenderKeyY = "67890"
	pv := NewPreVerifier()

	err := pv.Verify(parse(t, payment.req))
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.Contains(t, err.Error(), "not on curve")
}

func TestPreVerifier_ForgedSignatureS(t *testing.T) {
	payment := newSignedPayment(t, 100, 250)
	payment.req.SignatureS = "987654321"
	pv := NewPreVerifier()

	err := pv.Verify(parse(t, payment.req))
	require.ErrorIs(t, err, ErrInvalidSignature)
}
