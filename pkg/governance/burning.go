package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
)

var errNoBurnAddress = errors.New("burn address is not configured")

type burningExecutor struct {
	wallet *wallet
}

// Execute sends every asset in one transaction to the burn address and flips them to burned.
func (e *burningExecutor) Execute(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) (Outcome, error) {
	payload := proposal.Payload.Burning
	if payload == nil || len(payload.AssetIds) == 0 {
		return Outcome_Executed, executionErrors.Reject("no assets to burn")
	}
	burnAddress := e.wallet.deps.Config.BurnAddress
	if burnAddress == "" {
		return Outcome_Executed, errNoBurnAddress
	}
	assets, err := e.wallet.loadAssets(ctx, vault, payload.AssetIds)
	if err != nil {
		return Outcome_Executed, err
	}

	if proposal.Execution.TxHash == "" {
		for _, a := range assets {
			if !inCustodyStatus(a.Status) {
				return Outcome_Executed, executionErrors.Reject(fmt.Sprintf("asset %s is %s and cannot be burned", a.Id, a.Status))
			}
		}
		units := assetAmounts(assets)
		if _, err := e.wallet.ensureInCustody(ctx, vault, units); err != nil {
			return Outcome_Executed, err
		}
		txHash, err := e.wallet.buildAndSubmit(ctx, vault, []clientTypes.TxOutput{{
			Address: burnAddress,
			Amount:  "0",
			Assets:  units,
		}}, map[string]string{"proposalId": proposal.Id, "action": "burn"})
		if err != nil {
			return Outcome_Executed, err
		}
		proposal.Execution.TxHash = txHash
		if err := e.wallet.deps.Store.UpdateProposal(ctx, proposal); err != nil {
			return Outcome_Executed, err
		}
		if err := e.wallet.recordTransaction(ctx, proposal, storage.TransactionType_Burn, txHash, map[string]any{
			"assets": len(assets),
		}); err != nil {
			return Outcome_Executed, err
		}
		e.wallet.logger().Sugar().Infow("Burned vault assets",
			zap.String("proposalId", proposal.Id),
			zap.Int("assets", len(assets)),
			zap.String("txHash", txHash),
		)
	}

	for _, a := range assets {
		a.Status = storage.AssetStatus_Burned
	}
	return Outcome_Executed, e.wallet.deps.Store.SaveVaultAssets(ctx, assets)
}
