package keyProvider

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LocalSigner signs with a key held in process memory.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse signing key")
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

func (s *LocalSigner) Address() string {
	return s.address
}

// Sign appends a witness of the form ".<address>:<signature>" over the keccak hash of the body.
func (s *LocalSigner) Sign(ctx context.Context, txHex string) (string, error) {
	body, _, _ := strings.Cut(txHex, ".")
	sig, err := crypto.Sign(crypto.Keccak256([]byte(body)), s.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}
	return fmt.Sprintf("%s.%s:%s", txHex, s.address, hexutil.Encode(sig)), nil
}

// VerifyWitness checks that the witness produced by Sign matches the address.
func VerifyWitness(signedTx string, address string) (bool, error) {
	parts := strings.Split(signedTx, ".")
	if len(parts) < 2 {
		return false, fmt.Errorf("transaction carries no witness")
	}
	body := parts[0]
	for _, w := range parts[1:] {
		addr, sigHex, ok := strings.Cut(w, ":")
		if !ok || !strings.EqualFold(addr, address) {
			continue
		}
		sig, err := hexutil.Decode(sigHex)
		if err != nil {
			return false, errors.Wrap(err, "malformed witness signature")
		}
		pub, err := crypto.SigToPub(crypto.Keccak256([]byte(body)), sig)
		if err != nil {
			return false, errors.Wrap(err, "failed to recover witness key")
		}
		return strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address), nil
	}
	return false, nil
}

// KeyProvider hands out signers for the keys configured under keys.*.
type KeyProvider struct {
	config *config.KeysConfig
	logger *zap.Logger

	mu      sync.Mutex
	signers map[string]*LocalSigner
}

const adminKeyName = "__admin__"

func NewKeyProvider(cfg *config.KeysConfig, l *zap.Logger) *KeyProvider {
	return &KeyProvider{
		config:  cfg,
		logger:  l,
		signers: make(map[string]*LocalSigner),
	}
}

func (kp *KeyProvider) load(name string, hexKey string) (*LocalSigner, error) {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	if s, ok := kp.signers[name]; ok {
		return s, nil
	}
	if hexKey == "" {
		return nil, clientTypes.ErrNoSigningKey
	}
	s, err := NewLocalSigner(hexKey)
	if err != nil {
		kp.logger.Sugar().Errorw("Failed to load signing key", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	kp.signers[name] = s
	return s, nil
}

func (kp *KeyProvider) GetVaultSigner(ctx context.Context, vaultId string) (clientTypes.Signer, error) {
	s, err := kp.load(vaultId, kp.config.VaultKeys[vaultId])
	if err != nil {
		return nil, errors.Wrapf(err, "vault %s", vaultId)
	}
	return s, nil
}

func (kp *KeyProvider) GetAdminSigner(ctx context.Context) (clientTypes.Signer, error) {
	s, err := kp.load(adminKeyName, kp.config.AdminKey)
	if err != nil {
		return nil, errors.Wrap(err, "admin wallet")
	}
	return s, nil
}
