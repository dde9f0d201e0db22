package votingPower

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Action string

const (
	Action_CreateProposal Action = "create"
	Action_Vote           Action = "vote"
)

const (
	Reason_NoSnapshot       = "vault has no snapshot"
	Reason_NoBalance        = "address holds no tokens in the snapshot"
	Reason_PoolAddress      = "liquidity pool addresses cannot vote"
	Reason_BelowThreshold   = "share of supply is below the required threshold"
	Reason_EmptyTotalSupply = "snapshot has no voting supply"
)

type VotingPower struct {
	VaultId      string
	Address      string
	SnapshotId   string
	Action       Action
	Power        *big.Int
	TotalPower   *big.Int
	SharePercent decimal.Decimal
	Eligible     bool
	Reason       string
}

type Resolver struct {
	store  storage.GovernanceStore
	cache  *ttlcache.Cache[string, *VotingPower]
	config *config.VotingPowerConfig
	logger *zap.Logger
}

func NewResolver(store storage.GovernanceStore, cfg *config.VotingPowerConfig, l *zap.Logger) *Resolver {
	cache := ttlcache.New[string, *VotingPower](
		ttlcache.WithTTL[string, *VotingPower](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, *VotingPower](),
	)
	return &Resolver{
		store:  store,
		cache:  cache,
		config: cfg,
		logger: l,
	}
}

// Start runs the cache's expiry loop until ctx is done.
func (r *Resolver) Start(ctx context.Context) {
	go r.cache.Start()
	<-ctx.Done()
	r.cache.Stop()
}

func cacheKey(vaultId string, address string, action Action) string {
	return strings.Join([]string{vaultId, address, string(action)}, "|")
}

// GetVotingPower resolves the address's power against the vault's latest snapshot.
func (r *Resolver) GetVotingPower(ctx context.Context, vaultId string, address string, action Action) (*VotingPower, error) {
	inFlight, err := r.hasDistributionInFlight(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	key := cacheKey(vaultId, address, action)
	if !inFlight {
		if item := r.cache.Get(key); item != nil {
			return item.Value(), nil
		}
	}

	vault, err := r.store.GetVault(ctx, vaultId)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault %s: %w", vaultId, err)
	}

	var vp *VotingPower
	snapshot, err := r.store.GetLatestSnapshot(ctx, vaultId)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		vp = &VotingPower{
			VaultId:      vaultId,
			Address:      address,
			Action:       action,
			Power:        big.NewInt(0),
			TotalPower:   big.NewInt(0),
			SharePercent: decimal.Zero,
			Reason:       Reason_NoSnapshot,
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load snapshot for vault %s: %w", vaultId, err)
	default:
		vp, err = Resolve(vault, snapshot, address, action)
		if err != nil {
			return nil, err
		}
	}

	if inFlight {
		r.logger.Sugar().Debugw("Distribution in flight, skipping voting power cache",
			zap.String("vaultId", vaultId),
		)
		return vp, nil
	}
	ttl := r.config.CacheTTL
	if !vp.Eligible {
		ttl = r.config.NegativeCacheTTL
	}
	r.cache.Set(key, vp, ttl)
	return vp, nil
}

// Invalidate drops every cached entry for the vault.
func (r *Resolver) Invalidate(vaultId string) {
	prefix := vaultId + "|"
	for _, key := range r.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Delete(key)
		}
	}
}

func (r *Resolver) hasDistributionInFlight(ctx context.Context, vaultId string) (bool, error) {
	proposals, err := r.store.ListVaultProposals(ctx, vaultId)
	if err != nil {
		return false, fmt.Errorf("failed to list proposals for vault %s: %w", vaultId, err)
	}
	for _, p := range proposals {
		if p.Type == storage.ProposalType_Distribution && p.Status == storage.ProposalStatus_Passed {
			return true, nil
		}
	}
	return false, nil
}

// Resolve computes voting power for an address against a specific snapshot without caching.
func Resolve(vault *storage.Vault, snapshot *storage.Snapshot, address string, action Action) (*VotingPower, error) {
	total, err := snapshot.TotalPower(vault.PoolAddress)
	if err != nil {
		return nil, err
	}
	vp := &VotingPower{
		VaultId:      vault.Id,
		Address:      address,
		SnapshotId:   snapshot.Id,
		Action:       action,
		Power:        big.NewInt(0),
		TotalPower:   total,
		SharePercent: decimal.Zero,
	}

	if vault.PoolAddress != "" && address == vault.PoolAddress {
		vp.Reason = Reason_PoolAddress
		return vp, nil
	}
	vp.Power = snapshot.BalanceOf(address)
	if vp.Power.Sign() == 0 {
		vp.Reason = Reason_NoBalance
		return vp, nil
	}
	if total.Sign() == 0 {
		vp.Reason = Reason_EmptyTotalSupply
		return vp, nil
	}

	share := new(big.Rat).SetFrac(new(big.Int).Mul(vp.Power, big.NewInt(100)), total)
	scaled := new(big.Int).Mul(vp.Power, big.NewInt(1_000_000))
	vp.SharePercent = decimal.NewFromBigInt(scaled.Quo(scaled, total), -4)

	threshold := vault.VoteThresholdPercent
	if action == Action_CreateProposal {
		threshold = vault.CreationThresholdPercent
	}
	if share.Cmp(threshold.Rat()) < 0 {
		vp.Reason = Reason_BelowThreshold
		return vp, nil
	}
	vp.Eligible = true
	return vp, nil
}
