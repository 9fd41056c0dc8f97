package prover

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/umbra-protocol/prover/internal/config"
	"github.com/umbra-protocol/prover/pkg/interfaces/infrastructure/log"
)

// 可信设置持久化文件名，带电路版本号防止约束变更后误用旧密钥
const (
	provingKeyFile   = "%s_v%d.pk"
	verifyingKeyFile = "%s_v%d.vk"
	constraintFile   = "%s_v%d.r1cs"
)

// CircuitManager 电路与可信设置管理器
//
// 🎯 **专门职责**：编译固定的支付电路，管理Groth16可信设置的
// 生成、持久化和加载。服务启动时预热一次，之后所有读取走内存缓存。
//
// ⚠️ 生产部署应使用多方仪式产出的pk/vk并只读挂载keys目录；
// 本地 groth16.Setup 只适用于开发和测试环境。
type CircuitManager struct {
	logger  log.Logger
	keysDir string

	mu       sync.RWMutex
	cs       constraint.ConstraintSystem
	pk       groth16.ProvingKey
	vk       groth16.VerifyingKey
	vkHash   []byte
	prepared bool
}

// NewCircuitManager 创建电路管理器
func NewCircuitManager(logger log.Logger, opts config.ProverOptions) *CircuitManager {
	return &CircuitManager{
		logger:  logger.With("module", "circuit"),
		keysDir: opts.KeysDir,
	}
}

// Prepare 编译电路并加载（或生成）可信设置
//
// 幂等：重复调用直接返回。由fx生命周期在服务启动时调用，
// 避免首个请求承担数秒的编译+设置成本。
func (m *CircuitManager) Prepare() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.prepared {
		return nil
	}

	m.logger.Infof("编译支付电路: circuit=%s v%d", CircuitID, CircuitVersion)
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &PaymentCircuit{})
	if err != nil {
		return WrapProverInternalError("compile", err)
	}
	m.logger.Infof("电路编译完成: constraints=%d", cs.GetNbConstraints())

	pk, vk, err := m.loadOrSetup(cs)
	if err != nil {
		return err
	}

	vkHash, err := hashVerifyingKey(vk)
	if err != nil {
		return WrapProverInternalError("vk-hash", err)
	}

	m.cs = cs
	m.pk = pk
	m.vk = vk
	m.vkHash = vkHash
	m.prepared = true

	m.logger.Infof("可信设置就绪: vkHash=%x", vkHash[:8])
	return nil
}

// TrustedSetup 返回编译电路和可信设置
func (m *CircuitManager) TrustedSetup() (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.prepared {
		return nil, nil, nil, ErrSetupNotReady
	}
	return m.cs, m.pk, m.vk, nil
}

// VKHash 返回验证密钥的SHA-256哈希
func (m *CircuitManager) VKHash() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vkHash
}

// ConstraintCount 返回电路约束数量，未就绪时返回0
func (m *CircuitManager) ConstraintCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.prepared {
		return 0
	}
	return uint64(m.cs.GetNbConstraints())
}

// loadOrSetup 从磁盘加载可信设置，缺失时执行本地Setup并落盘
func (m *CircuitManager) loadOrSetup(cs constraint.ConstraintSystem) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pkPath := filepath.Join(m.keysDir, fmt.Sprintf(provingKeyFile, CircuitID, CircuitVersion))
	vkPath := filepath.Join(m.keysDir, fmt.Sprintf(verifyingKeyFile, CircuitID, CircuitVersion))

	if fileExists(pkPath) && fileExists(vkPath) {
		pk, vk, err := m.loadKeys(pkPath, vkPath)
		if err == nil {
			m.logger.Infof("已加载持久化可信设置: dir=%s", m.keysDir)
			return pk, vk, nil
		}
		// 密钥文件损坏时重新生成，旧文件会被覆盖
		m.logger.Warnf("加载可信设置失败，将重新生成: %v", err)
	}

	m.logger.Warn("未找到可信设置，执行本地Setup（仅限开发环境）")
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, nil, WrapProverInternalError("setup", err)
	}

	if err := m.persistKeys(pk, vk, pkPath, vkPath); err != nil {
		// 落盘失败不阻塞服务，下次启动会重新Setup
		m.logger.Warnf("持久化可信设置失败: %v", err)
	}
	return pk, vk, nil
}

// loadKeys 从磁盘反序列化pk/vk
func (m *CircuitManager) loadKeys(pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pkFile, err := os.Open(pkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("打开proving key失败: %w", err)
	}
	defer pkFile.Close()

	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(pkFile); err != nil {
		return nil, nil, fmt.Errorf("反序列化proving key失败: %w", err)
	}

	vkFile, err := os.Open(vkPath)
	if err != nil {
		return nil, nil, fmt.Errorf("打开verifying key失败: %w", err)
	}
	defer vkFile.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(vkFile); err != nil {
		return nil, nil, fmt.Errorf("反序列化verifying key失败: %w", err)
	}

	return pk, vk, nil
}

// persistKeys 将pk/vk序列化到磁盘
func (m *CircuitManager) persistKeys(pk groth16.ProvingKey, vk groth16.VerifyingKey, pkPath, vkPath string) error {
	if err := os.MkdirAll(m.keysDir, 0700); err != nil {
		return fmt.Errorf("创建密钥目录失败: %w", err)
	}

	pkFile, err := os.OpenFile(pkPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("创建proving key文件失败: %w", err)
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("序列化proving key失败: %w", err)
	}

	vkFile, err := os.OpenFile(vkPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("创建verifying key文件失败: %w", err)
	}
	defer vkFile.Close()
	if _, err := vk.WriteTo(vkFile); err != nil {
		return fmt.Errorf("序列化verifying key失败: %w", err)
	}

	m.logger.Infof("可信设置已持久化: %s, %s", pkPath, vkPath)
	return nil
}

// hashVerifyingKey 计算验证密钥的SHA-256哈希
func hashVerifyingKey(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("序列化verifying key失败: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
