package governance

import (
	"context"
	"sync"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// terminationExecutor winds a vault down in phases. It never reports the proposal executed
// itself: once assets are released it waits for settlement in the background and publishes
// proposal.termination.completed, which the orchestrator turns into EXECUTED.
type terminationExecutor struct {
	wallet *wallet

	// ctx bounds the settlement watchers and is cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	watching map[string]struct{}
}

func newTerminationExecutor(w *wallet) *terminationExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	return &terminationExecutor{
		wallet:   w,
		ctx:      ctx,
		cancel:   cancel,
		watching: make(map[string]struct{}),
	}
}

// Stop cancels every settlement watcher.
func (e *terminationExecutor) Stop() {
	e.cancel()
}

// Rearm starts a settlement watcher for a proposal awaiting settlement when none is running. It
// reports whether a watcher was started.
func (e *terminationExecutor) Rearm(proposal *storage.Proposal) bool {
	state := proposal.Execution.Termination
	if state == nil || state.Phase != storage.TerminationPhase_AwaitingSettlement {
		return false
	}
	return e.watch(proposal.Id, proposal.VaultId, state.TxHash)
}

func (e *terminationExecutor) watch(proposalId string, vaultId string, txHash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.watching[proposalId]; ok || e.ctx.Err() != nil {
		return false
	}
	e.watching[proposalId] = struct{}{}
	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.watching, proposalId)
			e.mu.Unlock()
		}()
		e.awaitSettlement(e.ctx, proposalId, vaultId, txHash)
	}()
	return true
}

func (e *terminationExecutor) isWatching(proposalId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.watching[proposalId]
	return ok
}

func (e *terminationExecutor) Execute(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) (Outcome, error) {
	deps := e.wallet.deps
	if proposal.Execution.Termination == nil {
		proposal.Execution.Termination = &storage.TerminationState{}
	}
	state := proposal.Execution.Termination

	if state.Phase == "" {
		vault.Status = storage.VaultStatus_Terminating
		if err := deps.Store.SaveVault(ctx, vault); err != nil {
			return Outcome_Executed, err
		}
		state.Phase = storage.TerminationPhase_Started
		if err := deps.Store.UpdateProposal(ctx, proposal); err != nil {
			return Outcome_Executed, err
		}
	}

	if state.Phase == storage.TerminationPhase_Started {
		if err := e.releaseAssets(ctx, proposal, vault); err != nil {
			return Outcome_Executed, err
		}
	}

	if state.Phase == storage.TerminationPhase_AssetsReleased || state.Phase == storage.TerminationPhase_AwaitingSettlement {
		state.Phase = storage.TerminationPhase_AwaitingSettlement
		if err := deps.Store.UpdateProposal(ctx, proposal); err != nil {
			return Outcome_Executed, err
		}
		e.watch(proposal.Id, vault.Id, state.TxHash)
	}
	return Outcome_AwaitingCompletion, nil
}

// releaseAssets moves every asset still locked in the vault into custody for settlement.
func (e *terminationExecutor) releaseAssets(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) error {
	deps := e.wallet.deps
	assets, err := deps.Store.ListVaultAssets(ctx, vault.Id)
	if err != nil {
		return err
	}
	releasable := lo.Filter(assets, func(a *storage.VaultAsset, _ int) bool {
		return inCustodyStatus(a.Status)
	})

	txHash, err := e.wallet.ensureInCustody(ctx, vault, assetAmounts(releasable))
	if err != nil {
		return err
	}
	for _, a := range releasable {
		a.Status = storage.AssetStatus_Released
	}
	if err := deps.Store.SaveVaultAssets(ctx, releasable); err != nil {
		return err
	}
	if txHash != "" {
		if err := e.wallet.recordTransaction(ctx, proposal, storage.TransactionType_Termination, txHash, map[string]any{
			"assets": len(releasable),
		}); err != nil {
			return err
		}
	}

	state := proposal.Execution.Termination
	state.Phase = storage.TerminationPhase_AssetsReleased
	state.TxHash = txHash
	proposal.Execution.TxHash = txHash
	e.wallet.logger().Sugar().Infow("Released vault assets for termination",
		zap.String("proposalId", proposal.Id),
		zap.String("vaultId", vault.Id),
		zap.Int("assets", len(releasable)),
	)
	return deps.Store.UpdateProposal(ctx, proposal)
}

func (e *terminationExecutor) awaitSettlement(ctx context.Context, proposalId string, vaultId string, txHash string) {
	deps := e.wallet.deps
	if txHash != "" {
		confirmed, err := deps.TxService.AwaitConfirmation(ctx, txHash, deps.Config.DistributionConfig.ConfirmationTimeout)
		if err != nil || !confirmed {
			e.wallet.logger().Sugar().Warnw("Termination settlement not confirmed, the retry sweep will watch again",
				zap.String("proposalId", proposalId),
				zap.String("txHash", txHash),
				zap.Error(err),
			)
			return
		}
	}
	deps.EventBus.PublishProposalEvent(eventBusTypes.Event_ProposalTerminationComplete, &eventBusTypes.ProposalEventData{
		ProposalId: proposalId,
		VaultId:    vaultId,
		Type:       string(storage.ProposalType_Termination),
		Status:     string(storage.ProposalStatus_Passed),
	})
}
