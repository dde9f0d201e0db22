package votingPower

import (
	"context"
	"testing"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*memory.Store, *Resolver) {
	ctx := context.Background()
	store := memory.NewStore()
	err := store.SaveVault(ctx, &storage.Vault{
		Id:                       "vault-1",
		TokenId:                  "token",
		PoolAddress:              "pool",
		CreationThresholdPercent: decimal.NewFromInt(10),
		VoteThresholdPercent:     decimal.RequireFromString("0.5"),
	})
	assert.Nil(t, err)
	err = store.SaveSnapshot(ctx, storage.NewSnapshot("snap-1", "vault-1", "token", map[string]string{
		"whale":  "900",
		"minnow": "6",
		"small":  "94",
		"pool":   "5000",
	}))
	assert.Nil(t, err)

	r := NewResolver(store, &config.VotingPowerConfig{
		CacheTTL:         time.Minute,
		NegativeCacheTTL: 5 * time.Minute,
	}, zap.NewNop())
	return store, r
}

func Test_Resolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Pool tokens are excluded from total power", func(t *testing.T) {
		_, r := setup(t)
		vp, err := r.GetVotingPower(ctx, "vault-1", "whale", Action_Vote)
		assert.Nil(t, err)
		assert.True(t, vp.Eligible)
		assert.Equal(t, "900", vp.Power.String())
		assert.Equal(t, "1000", vp.TotalPower.String())
		assert.True(t, vp.SharePercent.Equal(decimal.NewFromInt(90)))
	})
	t.Run("Pool address has no power", func(t *testing.T) {
		_, r := setup(t)
		vp, err := r.GetVotingPower(ctx, "vault-1", "pool", Action_Vote)
		assert.Nil(t, err)
		assert.False(t, vp.Eligible)
		assert.Equal(t, Reason_PoolAddress, vp.Reason)
	})
	t.Run("Per action thresholds", func(t *testing.T) {
		_, r := setup(t)
		vote, err := r.GetVotingPower(ctx, "vault-1", "minnow", Action_Vote)
		assert.Nil(t, err)
		assert.True(t, vote.Eligible)

		create, err := r.GetVotingPower(ctx, "vault-1", "minnow", Action_CreateProposal)
		assert.Nil(t, err)
		assert.False(t, create.Eligible)
		assert.Equal(t, Reason_BelowThreshold, create.Reason)
	})
	t.Run("Unknown addresses have no power", func(t *testing.T) {
		_, r := setup(t)
		vp, err := r.GetVotingPower(ctx, "vault-1", "stranger", Action_Vote)
		assert.Nil(t, err)
		assert.False(t, vp.Eligible)
		assert.Equal(t, Reason_NoBalance, vp.Reason)
	})
	t.Run("Results are cached with a longer negative TTL", func(t *testing.T) {
		store, r := setup(t)
		_, err := r.GetVotingPower(ctx, "vault-1", "stranger", Action_Vote)
		assert.Nil(t, err)
		_, err = r.GetVotingPower(ctx, "vault-1", "whale", Action_Vote)
		assert.Nil(t, err)

		negative := r.cache.Get(cacheKey("vault-1", "stranger", Action_Vote))
		positive := r.cache.Get(cacheKey("vault-1", "whale", Action_Vote))
		assert.Equal(t, 5*time.Minute, negative.TTL())
		assert.Equal(t, time.Minute, positive.TTL())

		// a newer snapshot is not seen until the cache is invalidated
		snap := storage.NewSnapshot("snap-2", "vault-1", "token", map[string]string{"stranger": "1000"})
		snap.CreatedAt = time.Now().Add(time.Hour)
		assert.Nil(t, store.SaveSnapshot(ctx, snap))

		vp, err := r.GetVotingPower(ctx, "vault-1", "stranger", Action_Vote)
		assert.Nil(t, err)
		assert.False(t, vp.Eligible)

		r.Invalidate("vault-1")
		vp, err = r.GetVotingPower(ctx, "vault-1", "stranger", Action_Vote)
		assert.Nil(t, err)
		assert.True(t, vp.Eligible)
	})
	t.Run("Cache is bypassed while a distribution is in flight", func(t *testing.T) {
		store, r := setup(t)
		assert.Nil(t, store.CreateProposal(ctx, &storage.Proposal{
			Id:      "dist",
			VaultId: "vault-1",
			Type:    storage.ProposalType_Distribution,
			Status:  storage.ProposalStatus_Passed,
			Payload: storage.ProposalPayload{Distribution: &storage.DistributionPayload{Amount: "1"}},
		}))

		_, err := r.GetVotingPower(ctx, "vault-1", "whale", Action_Vote)
		assert.Nil(t, err)
		assert.Nil(t, r.cache.Get(cacheKey("vault-1", "whale", Action_Vote)))
	})
	t.Run("Vault without a snapshot", func(t *testing.T) {
		store, r := setup(t)
		assert.Nil(t, store.SaveVault(ctx, &storage.Vault{Id: "vault-2"}))
		vp, err := r.GetVotingPower(ctx, "vault-2", "whale", Action_Vote)
		assert.Nil(t, err)
		assert.Equal(t, Reason_NoSnapshot, vp.Reason)
	})
}
