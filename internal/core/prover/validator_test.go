package prover

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fixedValidator 返回时钟被固定的校验器
func fixedValidator(now time.Time) *Validator {
	v := NewValidator()
	v.now = func() time.Time { return now }
	return v
}

func validRequest(now time.Time) *ProofRequest {
	return &ProofRequest{
		MinAmount:     "100",
		RecipientKeyX: "12345678901234567890",
		RecipientKeyY: "98765432109876543210",
		MaxBlockAge:   "3600",
		CurrentTime:   now.Unix(),
		ActualAmount:  "250",
		SenderKeyX:    "11111111111111111111",
		SenderKeyY:    "22222222222222222222",
		PaymentTime:   now.Unix() - 60,
		SignatureR8X:  "33333333333333333333",
		SignatureR8Y:  "44444444444444444444",
		SignatureS:    "55555555555555555555",
	}
}

func TestValidator_Accept(t *testing.T) {
	now := time.Now()
	v := fixedValidator(now)

	parsed, err := v.Validate(validRequest(now))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	require.Equal(t, int64(250), parsed.actualAmount.Int64())
	require.Equal(t, now.Unix(), parsed.currentTime.Int64())
}

func TestValidator_FieldErrors(t *testing.T) {
	now := time.Now()
	v := fixedValidator(now)

	tests := []struct {
		name   string
		mutate func(r *ProofRequest)
	}{
		{
			name:   "缺失字段",
			mutate: func(r *ProofRequest) { r.MinAmount = "" },
		},
		{
			name:   "超长字段",
			mutate: func(r *ProofRequest) { r.ActualAmount = strings.Repeat("9", 101) },
		},
		{
			name:   "非数字字符",
			mutate: func(r *ProofRequest) { r.SenderKeyX = "123abc" },
		},
		{
			name:   "十六进制前缀",
			mutate: func(r *ProofRequest) { r.SignatureS = "0x1234" },
		},
		{
			name:   "负号",
			mutate: func(r *ProofRequest) { r.MinAmount = "-5" },
		},
		{
			name:   "零值金额",
			mutate: func(r *ProofRequest) { r.ActualAmount = "0" },
		},
		{
			name: "超出域模数",
			mutate: func(r *ProofRequest) {
				// BN254标量域模数约2^254，100个9远超
				r.RecipientKeyX = strings.Repeat("9", 100)
			},
		},
		{
			name: "金额超出64位",
			mutate: func(r *ProofRequest) {
				// 2^64 = 18446744073709551616，在模数内但超过比较约束的位宽
				r.ActualAmount = "18446744073709551616"
			},
		},
		{
			name:   "currentTime为零",
			mutate: func(r *ProofRequest) { r.CurrentTime = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(now)
			tt.mutate(req)
			_, err := v.Validate(req)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestValidator_ClockWindow(t *testing.T) {
	now := time.Now()
	v := fixedValidator(now)

	tests := []struct {
		name        string
		currentTime int64
		wantErr     bool
	}{
		{"窗口内-过去边界", now.Unix() - 300, false},
		{"窗口内-未来边界", now.Unix() + 60, false},
		{"过去越界", now.Unix() - 301, true},
		{"未来越界", now.Unix() + 61, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(now)
			req.CurrentTime = tt.currentTime
			if req.PaymentTime > req.CurrentTime {
				req.PaymentTime = req.CurrentTime
			}
			_, err := v.Validate(req)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidator_PaymentTimeClockWindow(t *testing.T) {
	now := time.Now()
	v := fixedValidator(now)

	// 一小时前的支付配上宽松的maxBlockAge：电路的age约束满足，
	// 但paymentTime超出时钟窗口，必须在校验层拒绝
	req := validRequest(now)
	req.MaxBlockAge = "7200"
	req.PaymentTime = now.Unix() - 3600
	_, err := v.Validate(req)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Contains(t, err.Error(), "paymentTime")

	// 窗口过去边界本身可以接受
	req = validRequest(now)
	req.PaymentTime = now.Unix() - 300
	_, err = v.Validate(req)
	require.NoError(t, err)
}

func TestValidator_PaymentAfterCurrent(t *testing.T) {
	now := time.Now()
	v := fixedValidator(now)

	req := validRequest(now)
	req.PaymentTime = req.CurrentTime + 1
	_, err := v.Validate(req)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Contains(t, err.Error(), "paymentTime")
}

func TestIsDecimal(t *testing.T) {
	require.True(t, isDecimal("0"))
	require.True(t, isDecimal("123456789012345678901234567890"))
	require.False(t, isDecimal(""))
	require.False(t, isDecimal(" 123"))
	require.False(t, isDecimal("1.5"))
	require.False(t, isDecimal("+7"))
}
