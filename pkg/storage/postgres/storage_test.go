package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/tests"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/postgres"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setup(t *testing.T) *PostgresGovernanceStore {
	l := zap.NewNop()
	dbCfg := tests.GetDbConfigFromEnv()
	dbName, _, grm, err := postgres.GetTestPostgresDatabase(*dbCfg, l)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, *dbCfg, grm, l)
	})
	return NewPostgresGovernanceStore(grm, l)
}

func Test_PostgresGovernanceStore(t *testing.T) {
	if !tests.PostgresTestsEnabled() {
		t.Skip("Skipping postgres backed test")
	}
	ctx := context.Background()
	s := setup(t)

	vault := &storage.Vault{
		Id:                            "vault-1",
		Status:                        storage.VaultStatus_Governance,
		TokenId:                       "token",
		ExecutionThresholdPercent:     decimal.NewFromInt(50),
		ParticipationThresholdPercent: decimal.NewFromInt(20),
	}

	t.Run("Vault round trip", func(t *testing.T) {
		assert.Nil(t, s.SaveVault(ctx, vault))
		v, err := s.GetVault(ctx, "vault-1")
		assert.Nil(t, err)
		assert.True(t, v.ExecutionThresholdPercent.Equal(decimal.NewFromInt(50)))

		_, err = s.GetVault(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
	t.Run("Snapshot balances are stored as json", func(t *testing.T) {
		snap := storage.NewSnapshot("snap-1", "vault-1", "token", map[string]string{"addr1": "100"})
		assert.Nil(t, s.SaveSnapshot(ctx, snap))

		got, err := s.GetLatestSnapshot(ctx, "vault-1")
		assert.Nil(t, err)
		assert.Equal(t, "100", got.Balances()["addr1"])
	})
	t.Run("Proposal payload and execution state persist", func(t *testing.T) {
		now := time.Now().UTC()
		p := &storage.Proposal{
			Id:      "proposal-1",
			VaultId: "vault-1",
			Type:    storage.ProposalType_Distribution,
			Status:  storage.ProposalStatus_Active,
			Payload: storage.ProposalPayload{Distribution: &storage.DistributionPayload{Amount: "200000000"}},
			EndDate: &now,
		}
		assert.Nil(t, s.CreateProposal(ctx, p))

		p.Status = storage.ProposalStatus_Passed
		p.Execution.RetryCount = 2
		assert.Nil(t, s.UpdateProposal(ctx, p))

		got, err := s.GetProposal(ctx, "proposal-1")
		assert.Nil(t, err)
		assert.Equal(t, storage.ProposalStatus_Passed, got.Status)
		assert.Equal(t, 2, got.Execution.RetryCount)
		assert.Equal(t, "200000000", got.Payload.Distribution.Amount)

		passed, err := s.ListProposalsByStatus(ctx, storage.ProposalStatus_Passed)
		assert.Nil(t, err)
		assert.Len(t, passed, 1)
	})
	t.Run("Duplicate votes are rejected", func(t *testing.T) {
		assert.Nil(t, s.CreateVote(ctx, &storage.Vote{Id: "vote-1", ProposalId: "proposal-1", VoterAddress: "addr1", VoteWeight: "100", Choice: storage.VoteChoice_Yes}))
		err := s.CreateVote(ctx, &storage.Vote{Id: "vote-2", ProposalId: "proposal-1", VoterAddress: "addr1", VoteWeight: "100", Choice: storage.VoteChoice_No})
		assert.ErrorIs(t, err, storage.ErrDuplicateVote)
	})
	t.Run("Claims update in bulk", func(t *testing.T) {
		assert.Nil(t, s.CreateClaims(ctx, []*storage.Claim{
			{Id: "claim-1", VaultId: "vault-1", ProposalId: "proposal-1", Type: storage.ClaimType_Distribution, Status: storage.ClaimStatus_Pending, Amount: "10", Address: "a"},
			{Id: "claim-2", VaultId: "vault-1", ProposalId: "proposal-1", Type: storage.ClaimType_Distribution, Status: storage.ClaimStatus_Pending, Amount: "20", Address: "b"},
		}))
		assert.Nil(t, s.UpdateClaimsStatus(ctx, []string{"claim-1", "claim-2"}, storage.ClaimStatus_Claimed, "tx-1"))

		claims, err := s.ListClaimsByIds(ctx, []string{"claim-1", "claim-2"})
		assert.Nil(t, err)
		for _, c := range claims {
			assert.Equal(t, storage.ClaimStatus_Claimed, c.Status)
			assert.Equal(t, "tx-1", c.TransactionId)
		}
	})
}
