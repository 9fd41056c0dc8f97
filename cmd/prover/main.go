// 证明服务命令行入口
//
// 子命令：
//   - serve:  启动HTTP证明服务
//   - keygen: 预生成电路的可信设置（pk/vk落盘）
//   - sample: 生成一个签名合法的示例请求（联调用）
package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
	gchash "github.com/consensys/gnark-crypto/hash"
	"github.com/spf13/cobra"

	"github.com/umbra-protocol/prover/internal/app"
	"github.com/umbra-protocol/prover/internal/config"
	logimpl "github.com/umbra-protocol/prover/internal/core/infrastructure/log"
	"github.com/umbra-protocol/prover/internal/core/prover"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "prover",
		Short: "Payment attestation proof service (Groth16/BN254)",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（JSON），缺省使用内置默认值")

	rootCmd.AddCommand(serveCmd(), keygenCmd(), sampleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// serveCmd 启动HTTP证明服务
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP证明服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(configPath)
		},
	}
}

// keygenCmd 预生成可信设置
//
// 部署流程建议先在构建机上执行keygen，再把keys目录只读挂载给服务，
// 避免首次启动时在线Setup。
func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "编译电路并生成可信设置（pk/vk落盘）",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logimpl.New(config.LogOptions{Level: "info", ToConsole: true})
			if err != nil {
				return err
			}

			start := time.Now()
			manager := prover.NewCircuitManager(logger, opts.Prover)
			if err := manager.Prepare(); err != nil {
				return err
			}
			fmt.Printf("可信设置就绪: dir=%s constraints=%d 耗时=%v\n",
				opts.Prover.KeysDir, manager.ConstraintCount(), time.Since(start))
			return nil
		},
	}
}

// sampleCmd 生成签名合法的示例请求
func sampleCmd() *cobra.Command {
	var minAmount, actualAmount int64
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "生成一个签名合法的示例请求JSON（联调用）",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildSampleRequest(minAmount, actualAmount)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(req, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().Int64Var(&minAmount, "min-amount", 100, "公开的最小金额门槛")
	cmd.Flags().Int64Var(&actualAmount, "actual-amount", 250, "私有的实际支付金额")
	return cmd
}

// buildSampleRequest 生成随机密钥对并签出一笔满足约束的支付
func buildSampleRequest(minAmount, actualAmount int64) (*prover.ProofRequest, error) {
	sender, err := eddsa.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("生成发送方密钥失败: %w", err)
	}
	recipient, err := eddsa.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("生成接收方密钥失败: %w", err)
	}

	now := time.Now().Unix()
	paymentTime := now - 30

	senderX := new(big.Int)
	senderY := new(big.Int)
	sender.PublicKey.A.X.BigInt(senderX)
	sender.PublicKey.A.Y.BigInt(senderY)

	recipientX := new(big.Int)
	recipientY := new(big.Int)
	recipient.PublicKey.A.X.BigInt(recipientX)
	recipient.PublicKey.A.Y.BigInt(recipientY)

	digest := prover.PaymentDigest(
		big.NewInt(actualAmount),
		senderX, senderY,
		recipientX, recipientY,
		big.NewInt(paymentTime),
	)

	sigBin, err := sender.Sign(digest, gchash.MIMC_BN254.New())
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}

	var sig eddsa.Signature
	if _, err := sig.SetBytes(sigBin); err != nil {
		return nil, fmt.Errorf("解析签名失败: %w", err)
	}

	r8x := new(big.Int)
	r8y := new(big.Int)
	sig.R.X.BigInt(r8x)
	sig.R.Y.BigInt(r8y)
	s := new(big.Int).SetBytes(sig.S[:])

	return &prover.ProofRequest{
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
	}, nil
}
