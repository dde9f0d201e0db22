package governance

import (
	"context"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
)

type expansionExecutor struct {
	deps *Dependencies
}

// Execute reopens the vault for contributions.
func (e *expansionExecutor) Execute(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) (Outcome, error) {
	payload := proposal.Payload.Expansion
	if payload == nil {
		return Outcome_Executed, executionErrors.Reject("expansion proposal has no expansion settings")
	}
	switch vault.Status {
	case storage.VaultStatus_Terminating, storage.VaultStatus_Terminated:
		return Outcome_Executed, executionErrors.Reject("vault is being terminated")
	}
	if payload.MaxAssets <= 0 && len(payload.AssetWhitelist) == 0 {
		proposal.Execution.Warnings = append(proposal.Execution.Warnings, "expansion accepts any asset with no cap")
	}
	vault.Status = storage.VaultStatus_Expansion
	if err := e.deps.Store.SaveVault(ctx, vault); err != nil {
		return Outcome_Executed, err
	}
	e.deps.Logger.Sugar().Infow("Vault opened for expansion",
		zap.String("proposalId", proposal.Id),
		zap.String("vaultId", vault.Id),
		zap.Int("maxAssets", payload.MaxAssets),
		zap.Duration("duration", payload.Duration),
	)
	return Outcome_Executed, nil
}
