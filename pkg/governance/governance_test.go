package governance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/tests/fakes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type env struct {
	store        *memory.Store
	flaky        *fakes.FlakyStore
	tx           *fakes.TransactionService
	indexer      *fakes.ChainIndexer
	extraction   *fakes.ExtractionService
	market       *fakes.Marketplace
	bus          *eventBus.EventBus
	clock        *fakes.Clock
	cfg          *config.Config
	executors    map[storage.ProposalType]Executor
	orchestrator *Orchestrator
}

type stubExecutor struct {
	errs    []error
	outcome Outcome
	calls   int
}

func (s *stubExecutor) Execute(_ context.Context, _ *storage.Proposal, _ *storage.Vault) (Outcome, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return s.outcome, err
		}
	}
	return s.outcome, nil
}

func newEnv(t *testing.T) *env {
	ctx := context.Background()
	l := zap.NewNop()
	cfg := config.NewDefaultConfig()
	cfg.BurnAddress = "addr_burn"
	cfg.ExternalServicesConfig.Network = "preprod"
	cfg.DistributionConfig.InterBatchDelay = 0
	cfg.DistributionConfig.BatchSize = 2

	e := &env{
		store:   memory.NewStore(),
		tx:      fakes.NewTransactionService(),
		indexer: fakes.NewChainIndexer(),
		market:  fakes.NewMarketplace(),
		bus:     eventBus.NewEventBus(l),
		clock:   fakes.NewClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		cfg:     cfg,
	}
	e.extraction = &fakes.ExtractionService{Indexer: e.indexer}
	e.flaky = fakes.NewFlakyStore(e.store)

	assert.Nil(t, e.store.SaveVault(ctx, &storage.Vault{
		Id:                            "vault-1",
		Status:                        storage.VaultStatus_Governance,
		TokenId:                       "token-1",
		CustodyAddress:                "addr_custody",
		PoolAddress:                   "addr_pool",
		BaseCurrency:                  "lovelace",
		ExecutionThresholdPercent:     decimal.NewFromInt(50),
		ParticipationThresholdPercent: decimal.NewFromInt(20),
	}))
	assert.Nil(t, e.store.SaveSnapshot(ctx, storage.NewSnapshot("snap-1", "vault-1", "token-1", map[string]string{
		"addr_a":    "300",
		"addr_b":    "100",
		"addr_c":    "600",
		"addr_pool": "5000",
	})))

	ms := metrics.NewNoopMetricsSink()
	keys := fakes.NewKeyProvider()
	engine := distribution.NewEngine(e.flaky, e.tx, keys, &cfg.DistributionConfig, "preprod", ms, l)
	e.executors = NewExecutors(&Dependencies{
		Store:       e.flaky,
		TxService:   e.tx,
		Keys:        keys,
		Indexer:     e.indexer,
		Extraction:  e.extraction,
		Marketplace: e.market,
		EventBus:    e.bus,
		Config:      cfg,
		Logger:      l,
		Now:         e.clock.Now,
	}, engine)
	e.orchestrator = NewOrchestrator(e.flaky, e.executors, engine, e.bus, &cfg.GovernanceConfig, ms, l, e.clock.Now)
	return e
}

func (e *env) proposal(t *testing.T, id string, pType storage.ProposalType, status storage.ProposalStatus, payload storage.ProposalPayload) *storage.Proposal {
	start := e.clock.Now().Add(-48 * time.Hour)
	end := e.clock.Now().Add(-time.Minute)
	p := &storage.Proposal{
		Id:         id,
		VaultId:    "vault-1",
		Type:       pType,
		Status:     status,
		StartDate:  &start,
		EndDate:    &end,
		SnapshotId: "snap-1",
		Payload:    payload,
	}
	assert.Nil(t, e.store.CreateProposal(context.Background(), p))
	return p
}

func (e *env) vote(t *testing.T, proposalId string, address string, weight string, choice storage.VoteChoice) {
	assert.Nil(t, e.store.CreateVote(context.Background(), &storage.Vote{
		Id:           proposalId + address,
		ProposalId:   proposalId,
		VoterAddress: address,
		VoteWeight:   weight,
		Choice:       choice,
	}))
}

func (e *env) get(t *testing.T, id string) *storage.Proposal {
	p, err := e.store.GetProposal(context.Background(), id)
	assert.Nil(t, err)
	return p
}

func stakingPayload() storage.ProposalPayload {
	return storage.ProposalPayload{Staking: &storage.StakingPayload{
		Action:   storage.StakingAction_Stake,
		AssetIds: []string{"asset-1"},
	}}
}

func Test_VoteClose(t *testing.T) {
	ctx := context.Background()

	t.Run("Passing vote executes the proposal", func(t *testing.T) {
		e := newEnv(t)
		stub := &stubExecutor{}
		e.executors[storage.ProposalType_Staking] = stub
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Active, stakingPayload())
		e.vote(t, "p1", "addr_a", "300", storage.VoteChoice_Yes)
		e.vote(t, "p1", "addr_b", "100", storage.VoteChoice_No)

		res, err := e.orchestrator.Tally(ctx, e.get(t, "p1"))
		assert.Nil(t, err)
		assert.True(t, res.ParticipationPercent.Equal(decimal.NewFromInt(40)))
		assert.True(t, res.ExecutionRatioPercent.Equal(decimal.NewFromInt(75)))

		assert.Nil(t, e.orchestrator.CloseVoting(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.NotNil(t, p.Execution.ExecutedAt)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("Low participation rejects regardless of the yes ratio", func(t *testing.T) {
		e := newEnv(t)
		stub := &stubExecutor{}
		e.executors[storage.ProposalType_Staking] = stub
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Active, stakingPayload())
		e.vote(t, "p1", "addr_x", "50", storage.VoteChoice_Yes)

		assert.Nil(t, e.orchestrator.CloseVoting(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Rejected, p.Status)
		assert.Contains(t, p.Execution.RejectionReason, "participation 5%")
		assert.Equal(t, 0, stub.calls)
	})

	t.Run("Voting is not closed before the end date", func(t *testing.T) {
		e := newEnv(t)
		p := e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Active, stakingPayload())
		later := e.clock.Now().Add(time.Hour)
		p.EndDate = &later
		assert.Nil(t, e.store.UpdateProposal(ctx, p))

		assert.Nil(t, e.orchestrator.CloseVoting(ctx, "p1"))
		assert.Equal(t, storage.ProposalStatus_Active, e.get(t, "p1").Status)
	})

	t.Run("Activation opens voting and publishes an event", func(t *testing.T) {
		e := newEnv(t)
		consumer := &eventBusTypes.Consumer{
			Id:      "test",
			Context: ctx,
			Channel: make(chan *eventBusTypes.Event, 10),
			Events:  []string{eventBusTypes.Event_ProposalActivated},
		}
		e.bus.Subscribe(consumer)
		p := e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Upcoming, stakingPayload())
		p.SnapshotId = ""
		assert.Nil(t, e.store.UpdateProposal(ctx, p))

		assert.Nil(t, e.orchestrator.ActivateProposal(ctx, "p1"))
		p = e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Active, p.Status)
		assert.Equal(t, "snap-1", p.SnapshotId)
		assert.Len(t, consumer.Channel, 1)

		// a second trigger is a no-op
		assert.Nil(t, e.orchestrator.ActivateProposal(ctx, "p1"))
		assert.Len(t, consumer.Channel, 1)
	})
}

func Test_ExecutionRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("Transient failure succeeds on the sweep after backoff", func(t *testing.T) {
		e := newEnv(t)
		stub := &stubExecutor{errs: []error{errors.New("connection reset by peer")}}
		e.executors[storage.ProposalType_Staking] = stub
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Passed, stakingPayload())

		err := e.orchestrator.ExecuteProposal(ctx, "p1")
		assert.NotNil(t, err)
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, string(executionErrors.Category_NetworkError), p.Execution.LastError.Category)

		res, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, stub.calls)

		e.clock.Advance(e.cfg.GovernanceConfig.RetryBaseDelay)
		res, err = e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, res.Attempted)
		assert.Equal(t, 1, res.Executed)

		p = e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.Nil(t, p.Execution.LastError)
		assert.Equal(t, 1, p.Execution.RetryCount)
	})

	t.Run("Retries stop at the ceiling and keep the error", func(t *testing.T) {
		e := newEnv(t)
		e.cfg.GovernanceConfig.MaxRetries = 2
		failure := errors.New("service unavailable")
		stub := &stubExecutor{errs: []error{failure, failure, failure, failure}}
		e.executors[storage.ProposalType_Staking] = stub
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Passed, stakingPayload())
		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))

		for i := 0; i < 4; i++ {
			e.clock.Advance(24 * time.Hour)
			_, err := e.orchestrator.RetrySweep(ctx)
			assert.Nil(t, err)
		}
		assert.Equal(t, 3, stub.calls)
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, 2, p.Execution.RetryCount)
		assert.NotNil(t, p.Execution.LastError)
	})

	t.Run("Backoff doubles per retry", func(t *testing.T) {
		e := newEnv(t)
		base := e.cfg.GovernanceConfig.RetryBaseDelay
		assert.Equal(t, base, e.orchestrator.Backoff(0))
		assert.Equal(t, 2*base, e.orchestrator.Backoff(1))
		assert.Equal(t, 8*base, e.orchestrator.Backoff(3))
	})

	t.Run("Handled rejection ends the proposal", func(t *testing.T) {
		e := newEnv(t)
		e.executors[storage.ProposalType_Staking] = &stubExecutor{errs: []error{executionErrors.Reject("listing vanished")}}
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Passed, stakingPayload())

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Rejected, p.Status)
		assert.Equal(t, "listing vanished", p.Execution.RejectionReason)
	})

	t.Run("Payload not matching the type is rejected", func(t *testing.T) {
		e := newEnv(t)
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Passed, storage.ProposalPayload{
			Burning: &storage.BurningPayload{AssetIds: []string{"a"}},
		})
		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		assert.Equal(t, storage.ProposalStatus_Rejected, e.get(t, "p1").Status)
	})
}

func seedAssets(t *testing.T, e *env, assets ...*storage.VaultAsset) {
	for _, a := range assets {
		a.VaultId = "vault-1"
	}
	assert.Nil(t, e.store.SaveVaultAssets(context.Background(), assets))
}

func Test_MarketplaceExecutor(t *testing.T) {
	ctx := context.Background()
	payload := storage.ProposalPayload{Marketplace: &storage.MarketplacePayload{
		Operations: []storage.MarketplaceOperation{
			{AssetId: "asset-1", Market: "jpg", Action: storage.MarketAction_Sell, Price: "100"},
			{AssetId: "asset-2", Market: "wayup", Action: storage.MarketAction_Sell, Price: "50"},
			{AssetId: "asset-3", Market: "jpg", Action: storage.MarketAction_Unlist},
		},
	}}
	assets := func() []*storage.VaultAsset {
		return []*storage.VaultAsset{
			{Id: "asset-1", Kind: storage.AssetKind_NFT, Unit: "unit-1", Quantity: "1", Status: storage.AssetStatus_Locked},
			{Id: "asset-2", Kind: storage.AssetKind_NFT, Unit: "unit-2", Quantity: "1", Status: storage.AssetStatus_Locked},
			{Id: "asset-3", Kind: storage.AssetKind_NFT, Unit: "unit-3", Quantity: "1", Status: storage.AssetStatus_Listed, ListingMarket: "jpg", ListingTxHash: "listing-3"},
		}
	}

	t.Run("Extracts sold assets and submits one grouped transaction", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, assets()...)
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.Equal(t, "hash-market1", p.Execution.Marketplace.TxHash)
		assert.True(t, p.Execution.Marketplace.Extracted)

		assert.Equal(t, 1, e.extraction.Calls)
		assert.Len(t, e.extraction.Extracted, 2)
		assert.Len(t, e.market.MarketTxs, 1)
		ops := e.market.MarketTxs[0].Operations
		assert.Equal(t, 2, ops.Len())
		assert.Equal(t, "jpg", ops.Oldest().Key)
		assert.Len(t, ops.Oldest().Value, 2)
		assert.Equal(t, "listing-3", ops.Oldest().Value[1].ListingId)

		stored, err := e.store.GetVaultAssets(ctx, []string{"asset-1", "asset-3"})
		assert.Nil(t, err)
		assert.Equal(t, storage.AssetStatus_Listed, stored[0].Status)
		assert.Equal(t, "hash-market1", stored[0].ListingTxHash)
		assert.Equal(t, storage.AssetStatus_Extracted, stored[1].Status)
	})

	t.Run("Assets already held in custody are not extracted again", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, assets()...)
		e.indexer.SetHoldings("addr_custody", []clientTypes.AssetAmount{
			{Unit: "unit-1", Quantity: "1"},
			{Unit: "unit-2", Quantity: "1"},
		})
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		assert.Equal(t, 0, e.extraction.Calls)
		assert.Equal(t, storage.ProposalStatus_Executed, e.get(t, "p1").Status)
	})

	t.Run("Conflicting listing rejects the proposal", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, assets()...)
		e.market.Listings["jpg|unit-1"] = &clientTypes.Listing{Market: "jpg", Unit: "unit-1"}
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Rejected, p.Status)
		assert.Contains(t, p.Execution.RejectionReason, "already listed")
		assert.Empty(t, e.market.MarketTxs)
	})

	t.Run("Submitted transaction is settled on retry without a second submission", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, assets()...)
		e.flaky.FailTransactions(1)
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, "hash-market1", p.Execution.Marketplace.TxHash)
		assert.False(t, p.Execution.Marketplace.Settled)

		e.clock.Advance(e.orchestrator.Backoff(0))
		res, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, res.Executed)

		p = e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.True(t, p.Execution.Marketplace.Settled)
		assert.Len(t, e.market.MarketTxs, 1)
		assert.Equal(t, 1, e.extraction.Calls)

		txs, err := e.store.ListProposalTransactions(ctx, "p1")
		assert.Nil(t, err)
		assert.Len(t, txs, 1)
		assert.Equal(t, "hash-market1", txs[0].TxHash)
		stored, err := e.store.GetVaultAssets(ctx, []string{"asset-1"})
		assert.Nil(t, err)
		assert.Equal(t, storage.AssetStatus_Listed, stored[0].Status)
		assert.Equal(t, "hash-market1", stored[0].ListingTxHash)
	})

	t.Run("Listing that vanished before submission rejects the proposal", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, assets()...)
		e.market.MarketError = fmt.Errorf("listing l-9: %w", clientTypes.ErrAssetUnavailable)
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Rejected, p.Status)
		assert.Equal(t, executionErrors.FriendlyMessage(executionErrors.Category_AssetUnavailable), p.Execution.RejectionReason)
		assert.Empty(t, e.tx.Submitted)
	})

	t.Run("Bought assets keep the same id when settled twice", func(t *testing.T) {
		planned := []plannedOperation{{op: storage.MarketplaceOperation{AssetId: "unit-9", Market: "jpg", Action: storage.MarketAction_Buy}}}
		vault := &storage.Vault{Id: "vault-1"}
		first := applyOperations(vault, planned, "hash-market1")
		second := applyOperations(vault, planned, "hash-market1")
		assert.Equal(t, first[0].Id, second[0].Id)
		assert.NotEqual(t, first[0].Id, applyOperations(vault, planned, "hash-market2")[0].Id)
	})

	t.Run("Extraction that does not confirm is retried", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, assets()...)
		e.tx.Unconfirmed["extract-vault-1-1"] = true
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, string(executionErrors.Category_TransactionError), p.Execution.LastError.Category)
	})
}

func Test_SwapExecutor(t *testing.T) {
	ctx := context.Background()
	payload := storage.ProposalPayload{Marketplace: &storage.MarketplacePayload{
		Swaps: []storage.SwapRequest{{Id: "s1", Unit: "tok", Quantity: "60", SlippagePercent: "1"}},
	}}
	ftAssets := func() []*storage.VaultAsset {
		return []*storage.VaultAsset{
			{Id: "ft-1", Kind: storage.AssetKind_FT, Unit: "tok", Quantity: "50", Status: storage.AssetStatus_Locked},
			{Id: "ft-2", Kind: storage.AssetKind_FT, Unit: "tok", Quantity: "30", Status: storage.AssetStatus_Locked},
			{Id: "ft-3", Kind: storage.AssetKind_FT, Unit: "tok", Quantity: "20", Status: storage.AssetStatus_Locked},
		}
	}

	t.Run("Allocates largest holdings first", func(t *testing.T) {
		allocations, err := allocateLargestFirst(ftAssets(), big.NewInt(60))
		assert.Nil(t, err)
		assert.Len(t, allocations, 2)
		assert.Equal(t, "ft-1", allocations[0].asset.Id)
		assert.Equal(t, "50", allocations[0].quantity.String())
		assert.Equal(t, "ft-2", allocations[1].asset.Id)
		assert.Equal(t, "10", allocations[1].quantity.String())

		_, err = allocateLargestFirst(ftAssets(), big.NewInt(101))
		assert.NotNil(t, err)
	})

	t.Run("Swaps and records progress", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, ftAssets()...)
		e.indexer.SetHoldings("addr_custody", []clientTypes.AssetAmount{{Unit: "tok", Quantity: "100"}})
		e.proposal(t, "p1", storage.ProposalType_BuySell, storage.ProposalStatus_Passed, payload)

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.Len(t, p.Execution.Swaps, 1)
		assert.Equal(t, storage.SwapStatus_Completed, p.Execution.Swaps[0].Status)
		assert.Equal(t, []string{"ft-1", "ft-2"}, p.Execution.Swaps[0].AssetIds)

		assert.Len(t, e.market.SwapTxs, 1)
		assert.Equal(t, "lovelace", e.market.SwapTxs[0].OutputUnit)
		assert.Equal(t, "60", e.market.SwapTxs[0].Units[0].Quantity)

		stored, err := e.store.GetVaultAssets(ctx, []string{"ft-1", "ft-2", "ft-3"})
		assert.Nil(t, err)
		assert.Equal(t, storage.AssetStatus_Sold, stored[0].Status)
		assert.Equal(t, "20", stored[1].Quantity)
		assert.Equal(t, storage.AssetStatus_Locked, stored[1].Status)
		assert.Equal(t, "20", stored[2].Quantity)
	})

	t.Run("Submitted swap is settled on retry without swapping again", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, ftAssets()...)
		e.indexer.SetHoldings("addr_custody", []clientTypes.AssetAmount{{Unit: "tok", Quantity: "100"}})
		e.flaky.FailTransactions(1)
		e.proposal(t, "p1", storage.ProposalType_BuySell, storage.ProposalStatus_Passed, payload)

		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, storage.SwapStatus_Submitted, p.Execution.Swaps[0].Status)
		assert.Equal(t, "hash-swap1", p.Execution.Swaps[0].TxHash)
		assert.Len(t, p.Execution.Swaps[0].Allocations, 2)

		e.clock.Advance(e.orchestrator.Backoff(0))
		_, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)

		p = e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.Equal(t, storage.SwapStatus_Completed, p.Execution.Swaps[0].Status)
		assert.Len(t, e.market.SwapTxs, 1)

		txs, err := e.store.ListProposalTransactions(ctx, "p1")
		assert.Nil(t, err)
		assert.Len(t, txs, 1)
		assert.Equal(t, "hash-swap1", txs[0].TxHash)

		stored, err := e.store.GetVaultAssets(ctx, []string{"ft-1", "ft-2", "ft-3"})
		assert.Nil(t, err)
		assert.Equal(t, storage.AssetStatus_Sold, stored[0].Status)
		assert.Equal(t, "20", stored[1].Quantity)
		assert.Equal(t, "20", stored[2].Quantity)
	})

	t.Run("Missing pool is rejected once confirmed on retry", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, ftAssets()...)
		e.indexer.SetHoldings("addr_custody", []clientTypes.AssetAmount{{Unit: "tok", Quantity: "100"}})
		e.market.SwapErrors = []error{clientTypes.ErrPoolNotFound, clientTypes.ErrPoolNotFound}
		e.proposal(t, "p1", storage.ProposalType_MarketplaceAction, storage.ProposalStatus_Passed, payload)

		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, string(executionErrors.Category_PoolNotFound), p.Execution.LastError.Category)

		e.clock.Advance(e.orchestrator.Backoff(0))
		_, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		p = e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Rejected, p.Status)
		assert.Equal(t, executionErrors.FriendlyMessage(executionErrors.Category_PoolNotFound), p.Execution.RejectionReason)
	})
}

func Test_AssetExecutors(t *testing.T) {
	ctx := context.Background()

	t.Run("Burning sends assets to the burn address", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e,
			&storage.VaultAsset{Id: "asset-1", Unit: "unit-1", Quantity: "1", Status: storage.AssetStatus_Locked},
			&storage.VaultAsset{Id: "asset-2", Unit: "unit-2", Quantity: "1", Status: storage.AssetStatus_Extracted},
		)
		e.indexer.SetHoldings("addr_custody", []clientTypes.AssetAmount{{Unit: "unit-2", Quantity: "1"}})
		e.proposal(t, "p1", storage.ProposalType_Burning, storage.ProposalStatus_Passed, storage.ProposalPayload{
			Burning: &storage.BurningPayload{AssetIds: []string{"asset-1", "asset-2"}},
		})

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		assert.Equal(t, storage.ProposalStatus_Executed, e.get(t, "p1").Status)
		assert.Equal(t, []clientTypes.AssetAmount{{Unit: "unit-1", Quantity: "1"}}, e.extraction.Extracted)

		assert.Equal(t, 1, e.tx.BuildCount())
		out := e.tx.Built[0].Outputs[0]
		assert.Equal(t, "addr_burn", out.Address)
		assert.Len(t, out.Assets, 2)

		stored, err := e.store.GetVaultAssets(ctx, []string{"asset-1", "asset-2"})
		assert.Nil(t, err)
		for _, a := range stored {
			assert.Equal(t, storage.AssetStatus_Burned, a.Status)
		}
		txs, err := e.store.ListProposalTransactions(ctx, "p1")
		assert.Nil(t, err)
		assert.Equal(t, storage.TransactionType_Burn, txs[0].Type)
	})

	t.Run("Burning an already listed asset is rejected", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, &storage.VaultAsset{Id: "asset-1", Unit: "unit-1", Quantity: "1", Status: storage.AssetStatus_Listed})
		e.proposal(t, "p1", storage.ProposalType_Burning, storage.ProposalStatus_Passed, storage.ProposalPayload{
			Burning: &storage.BurningPayload{AssetIds: []string{"asset-1"}},
		})
		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		assert.Equal(t, storage.ProposalStatus_Rejected, e.get(t, "p1").Status)
		assert.Equal(t, 0, e.tx.BuildCount())
	})

	t.Run("Staking flips asset status", func(t *testing.T) {
		e := newEnv(t)
		seedAssets(t, e, &storage.VaultAsset{Id: "asset-1", Unit: "unit-1", Quantity: "1", Status: storage.AssetStatus_Locked})
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Passed, stakingPayload())

		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		assert.Equal(t, storage.ProposalStatus_Executed, e.get(t, "p1").Status)
		assert.Equal(t, "stake", e.tx.Built[0].Metadata["action"])
		stored, err := e.store.GetVaultAssets(ctx, []string{"asset-1"})
		assert.Nil(t, err)
		assert.Equal(t, storage.AssetStatus_Staked, stored[0].Status)
	})

	t.Run("Expansion opens the vault", func(t *testing.T) {
		e := newEnv(t)
		e.proposal(t, "p1", storage.ProposalType_Expansion, storage.ProposalStatus_Passed, storage.ProposalPayload{
			Expansion: &storage.ExpansionPayload{MaxAssets: 10, Duration: 72 * time.Hour},
		})
		assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		assert.Equal(t, storage.ProposalStatus_Executed, e.get(t, "p1").Status)
		vault, err := e.store.GetVault(ctx, "vault-1")
		assert.Nil(t, err)
		assert.Equal(t, storage.VaultStatus_Expansion, vault.Status)
	})
}

func Test_TerminationExecutor(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	consumer := &eventBusTypes.Consumer{
		Id:      "test",
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 10),
		Events:  []string{eventBusTypes.Event_ProposalTerminationComplete},
	}
	e.bus.Subscribe(consumer)
	seedAssets(t, e, &storage.VaultAsset{Id: "asset-1", Unit: "unit-1", Quantity: "1", Status: storage.AssetStatus_Locked})
	e.proposal(t, "p1", storage.ProposalType_Termination, storage.ProposalStatus_Passed, storage.ProposalPayload{
		Termination: &storage.TerminationPayload{Reason: "wind down"},
	})

	assert.Nil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
	p := e.get(t, "p1")
	assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
	assert.True(t, p.Execution.AwaitingCompletion)
	assert.Equal(t, storage.TerminationPhase_AwaitingSettlement, p.Execution.Termination.Phase)

	select {
	case event := <-consumer.Channel:
		assert.Equal(t, "p1", event.Data.(*eventBusTypes.ProposalEventData).ProposalId)
	case <-time.After(5 * time.Second):
		t.Fatal("termination completion was not published")
	}

	assert.Nil(t, e.orchestrator.CompleteTermination(ctx, "p1"))
	p = e.get(t, "p1")
	assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
	assert.Equal(t, storage.TerminationPhase_Completed, p.Execution.Termination.Phase)

	vault, err := e.store.GetVault(ctx, "vault-1")
	assert.Nil(t, err)
	assert.Equal(t, storage.VaultStatus_Terminated, vault.Status)
	stored, err := e.store.GetVaultAssets(ctx, []string{"asset-1"})
	assert.Nil(t, err)
	assert.Equal(t, storage.AssetStatus_Released, stored[0].Status)
}

func Test_AwaitingSettlement(t *testing.T) {
	ctx := context.Background()
	awaiting := func(t *testing.T, e *env) *terminationExecutor {
		p := e.proposal(t, "p1", storage.ProposalType_Termination, storage.ProposalStatus_Passed, storage.ProposalPayload{
			Termination: &storage.TerminationPayload{Reason: "wind down"},
		})
		attempt := e.clock.Now()
		p.Execution.LastAttempt = &attempt
		p.Execution.AwaitingCompletion = true
		p.Execution.Termination = &storage.TerminationState{
			Phase:  storage.TerminationPhase_AwaitingSettlement,
			TxHash: "hash-release",
		}
		assert.Nil(t, e.store.UpdateProposal(ctx, p))
		return e.executors[storage.ProposalType_Termination].(*terminationExecutor)
	}

	t.Run("Sweep watches settlement again without spending retries", func(t *testing.T) {
		e := newEnv(t)
		consumer := &eventBusTypes.Consumer{
			Id:      "test",
			Context: ctx,
			Channel: make(chan *eventBusTypes.Event, 10),
			Events:  []string{eventBusTypes.Event_ProposalTerminationComplete},
		}
		e.bus.Subscribe(consumer)
		e.tx.Unconfirmed["hash-release"] = true
		term := awaiting(t, e)

		e.clock.Advance(24 * time.Hour)
		res, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, res.Awaiting)
		assert.Equal(t, 0, res.Attempted)
		assert.Eventually(t, func() bool { return !term.isWatching("p1") }, 5*time.Second, 10*time.Millisecond)

		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, 0, p.Execution.RetryCount)
		assert.Nil(t, p.Execution.LastError)

		e.tx.Unconfirmed["hash-release"] = false
		res, err = e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, res.Awaiting)
		select {
		case event := <-consumer.Channel:
			assert.Equal(t, "p1", event.Data.(*eventBusTypes.ProposalEventData).ProposalId)
		case <-time.After(5 * time.Second):
			t.Fatal("termination completion was not published")
		}
		assert.Equal(t, 0, e.get(t, "p1").Execution.RetryCount)
	})

	t.Run("Stopped orchestrator starts no watchers", func(t *testing.T) {
		e := newEnv(t)
		term := awaiting(t, e)
		e.orchestrator.Stop()

		res, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, res.Awaiting)
		assert.False(t, term.isWatching("p1"))
	})
}

func Test_DistributionExecution(t *testing.T) {
	ctx := context.Background()
	payload := storage.ProposalPayload{Distribution: &storage.DistributionPayload{Amount: "1000000000"}}

	t.Run("Failed batch is retried by the sweep and the proposal promoted", func(t *testing.T) {
		e := newEnv(t)
		e.tx.SubmitErrors = []error{nil, errors.New("connection reset")}
		e.proposal(t, "p1", storage.ProposalType_Distribution, storage.ProposalStatus_Passed, payload)

		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))
		p := e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Passed, p.Status)
		assert.Equal(t, 2, p.Execution.Distribution.TotalBatches)
		assert.Equal(t, storage.BatchStatus_Completed, p.Execution.Distribution.Batches[0].Status)
		assert.Equal(t, storage.BatchStatus_RetryPending, p.Execution.Distribution.Batches[1].Status)

		e.clock.Advance(e.orchestrator.Backoff(0))
		_, err := e.orchestrator.RetrySweep(ctx)
		assert.Nil(t, err)
		p = e.get(t, "p1")
		assert.Equal(t, storage.ProposalStatus_Executed, p.Status)
		assert.Equal(t, 3, e.tx.BuildCount())
	})

	t.Run("Operator retry completes the distribution", func(t *testing.T) {
		e := newEnv(t)
		e.tx.SubmitErrors = []error{nil, errors.New("connection reset")}
		e.proposal(t, "p1", storage.ProposalType_Distribution, storage.ProposalStatus_Passed, payload)
		assert.NotNil(t, e.orchestrator.ExecuteProposal(ctx, "p1"))

		report, retried, err := e.orchestrator.RetryFailedBatches(ctx, "p1")
		assert.Nil(t, err)
		assert.Equal(t, 1, retried)
		assert.Equal(t, string(storage.DistributionStatus_Completed), report.Status)
		assert.Equal(t, storage.ProposalStatus_Executed, e.get(t, "p1").Status)

		_, retried, err = e.orchestrator.RetryFailedBatches(ctx, "p1")
		assert.Nil(t, err)
		assert.Equal(t, 0, retried)
		assert.Equal(t, 3, e.tx.BuildCount())
	})

	t.Run("Operator retry only applies to distributions", func(t *testing.T) {
		e := newEnv(t)
		e.proposal(t, "p1", storage.ProposalType_Staking, storage.ProposalStatus_Passed, stakingPayload())
		_, _, err := e.orchestrator.RetryFailedBatches(ctx, "p1")
		assert.ErrorIs(t, err, ErrNotDistribution)
	})
}
