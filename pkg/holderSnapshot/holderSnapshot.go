// Package holderSnapshot captures a vault's governance token holders from the chain indexer
// into an immutable snapshot.
package holderSnapshot

import (
	"context"
	"fmt"
	"math/big"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPageSize = 100

type Builder struct {
	store    storage.GovernanceStore
	indexer  clientTypes.ChainIndexer
	logger   *zap.Logger
	PageSize int
}

func NewBuilder(store storage.GovernanceStore, indexer clientTypes.ChainIndexer, l *zap.Logger) *Builder {
	return &Builder{
		store:    store,
		indexer:  indexer,
		logger:   l,
		PageSize: DefaultPageSize,
	}
}

// CreateSnapshot pages through every holder of the vault token and persists the balances.
// The pool address and zero balances are left out.
func (b *Builder) CreateSnapshot(ctx context.Context, vaultId string) (*storage.Snapshot, error) {
	vault, err := b.store.GetVault(ctx, vaultId)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault %s: %w", vaultId, err)
	}
	if vault.TokenId == "" {
		return nil, fmt.Errorf("vault %s has no governance token", vaultId)
	}

	balances := make(map[string]string)
	for page := 1; ; page++ {
		holders, err := b.indexer.GetTokenHolders(ctx, vault.TokenId, page, b.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch holders page %d: %w", page, err)
		}
		if len(holders) == 0 {
			break
		}
		for _, h := range holders {
			if h.Address == vault.PoolAddress {
				continue
			}
			qty, ok := new(big.Int).SetString(h.Quantity, 10)
			if !ok {
				return nil, fmt.Errorf("holder %s has an invalid quantity %q", h.Address, h.Quantity)
			}
			if qty.Sign() <= 0 {
				continue
			}
			// an address can show up on more than one page while the indexer catches up
			if existing, ok := balances[h.Address]; ok {
				prev, _ := new(big.Int).SetString(existing, 10)
				if prev.Cmp(qty) >= 0 {
					continue
				}
			}
			balances[h.Address] = qty.String()
		}
		b.logger.Sugar().Debugw("Fetched holders page",
			zap.String("vaultId", vaultId),
			zap.Int("page", page),
			zap.Int("holders", len(holders)),
		)
		if len(holders) < b.PageSize {
			break
		}
	}

	snapshot := storage.NewSnapshot(uuid.NewString(), vault.Id, vault.TokenId, balances)
	if err := b.store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	b.logger.Sugar().Infow("Created holder snapshot",
		zap.String("vaultId", vaultId),
		zap.String("snapshotId", snapshot.Id),
		zap.Int("holders", len(balances)),
	)
	return snapshot, nil
}
