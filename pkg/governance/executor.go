package governance

import (
	"context"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
)

type Outcome int

const (
	// Outcome_Executed moves the proposal to EXECUTED
	Outcome_Executed Outcome = iota
	// Outcome_AwaitingCompletion keeps the proposal PASSED until a completion event arrives
	Outcome_AwaitingCompletion
)

// Executor carries out a PASSED proposal of one type. Executors must be re-enterable: a retry
// after a partial failure resumes from the progress recorded in the proposal's execution state.
// A *executionErrors.RejectionError ends the proposal as REJECTED, any other error leaves it
// PASSED for the retry sweep.
type Executor interface {
	Execute(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) (Outcome, error)
}

// settlementWatcher is implemented by executors that finish in the background after reporting
// Outcome_AwaitingCompletion.
type settlementWatcher interface {
	Rearm(proposal *storage.Proposal) bool
	Stop()
}

type Dependencies struct {
	Store       storage.GovernanceStore
	TxService   clientTypes.TransactionService
	Keys        clientTypes.KeyProvider
	Indexer     clientTypes.ChainIndexer
	Extraction  clientTypes.ExtractionService
	Marketplace clientTypes.MarketplaceAdapter
	EventBus    eventBusTypes.IEventBus
	Config      *config.Config
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewExecutors returns one executor per proposal type.
func NewExecutors(deps *Dependencies, engine *distribution.Engine) map[storage.ProposalType]Executor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	w := &wallet{deps: deps}
	market := &marketplaceExecutor{wallet: w}
	return map[storage.ProposalType]Executor{
		storage.ProposalType_Distribution:      &distributionExecutor{engine: engine},
		storage.ProposalType_MarketplaceAction: market,
		storage.ProposalType_BuySell:           market,
		storage.ProposalType_Burning:           &burningExecutor{wallet: w},
		storage.ProposalType_Staking:           &stakingExecutor{wallet: w},
		storage.ProposalType_Termination:       newTerminationExecutor(w),
		storage.ProposalType_Expansion:         &expansionExecutor{deps: deps},
	}
}
