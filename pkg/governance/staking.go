package governance

import (
	"context"
	"fmt"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
)

type stakingExecutor struct {
	wallet *wallet
}

func (e *stakingExecutor) Execute(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) (Outcome, error) {
	payload := proposal.Payload.Staking
	if payload == nil || len(payload.AssetIds) == 0 {
		return Outcome_Executed, executionErrors.Reject("no assets to stake")
	}
	assets, err := e.wallet.loadAssets(ctx, vault, payload.AssetIds)
	if err != nil {
		return Outcome_Executed, err
	}

	var from, to storage.AssetStatus
	switch payload.Action {
	case storage.StakingAction_Stake:
		from, to = storage.AssetStatus_Locked, storage.AssetStatus_Staked
	case storage.StakingAction_Unstake:
		from, to = storage.AssetStatus_Staked, storage.AssetStatus_Locked
	default:
		return Outcome_Executed, executionErrors.Reject(fmt.Sprintf("unknown staking action %s", payload.Action))
	}

	if proposal.Execution.TxHash == "" {
		for _, a := range assets {
			if a.Status != from {
				return Outcome_Executed, executionErrors.Reject(fmt.Sprintf("asset %s is %s, expected %s", a.Id, a.Status, from))
			}
		}
		txHash, err := e.wallet.buildAndSubmit(ctx, vault, []clientTypes.TxOutput{{
			Address: vault.CustodyAddress,
			Amount:  "0",
			Assets:  assetAmounts(assets),
		}}, map[string]string{"proposalId": proposal.Id, "action": string(payload.Action)})
		if err != nil {
			return Outcome_Executed, err
		}
		proposal.Execution.TxHash = txHash
		if err := e.wallet.deps.Store.UpdateProposal(ctx, proposal); err != nil {
			return Outcome_Executed, err
		}
		if err := e.wallet.recordTransaction(ctx, proposal, storage.TransactionType_Stake, txHash, map[string]any{
			"action": string(payload.Action),
			"assets": len(assets),
		}); err != nil {
			return Outcome_Executed, err
		}
		e.wallet.logger().Sugar().Infow("Submitted staking transaction",
			zap.String("proposalId", proposal.Id),
			zap.String("action", string(payload.Action)),
			zap.String("txHash", txHash),
		)
	}

	for _, a := range assets {
		a.Status = to
	}
	return Outcome_Executed, e.wallet.deps.Store.SaveVaultAssets(ctx, assets)
}
