package governance

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type allocation struct {
	asset    *storage.VaultAsset
	quantity *big.Int
}

// allocateLargestFirst covers quantity from the largest holdings down. The last holding used may
// be only partly consumed.
func allocateLargestFirst(assets []*storage.VaultAsset, quantity *big.Int) ([]allocation, error) {
	type holding struct {
		asset    *storage.VaultAsset
		quantity *big.Int
	}
	holdings := make([]holding, 0, len(assets))
	available := big.NewInt(0)
	for _, a := range assets {
		q, ok := new(big.Int).SetString(a.Quantity, 10)
		if !ok || q.Sign() <= 0 {
			continue
		}
		holdings = append(holdings, holding{asset: a, quantity: q})
		available.Add(available, q)
	}
	if available.Cmp(quantity) < 0 {
		return nil, fmt.Errorf("holds %s, needs %s", available.String(), quantity.String())
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		if c := holdings[i].quantity.Cmp(holdings[j].quantity); c != 0 {
			return c > 0
		}
		return holdings[i].asset.Id < holdings[j].asset.Id
	})

	remaining := new(big.Int).Set(quantity)
	out := make([]allocation, 0)
	for _, h := range holdings {
		if remaining.Sign() == 0 {
			break
		}
		take := new(big.Int).Set(h.quantity)
		if take.Cmp(remaining) > 0 {
			take.Set(remaining)
		}
		remaining.Sub(remaining, take)
		out = append(out, allocation{asset: h.asset, quantity: take})
	}
	return out, nil
}

func swapProgress(proposal *storage.Proposal, swapId string) *storage.SwapProgress {
	for i := range proposal.Execution.Swaps {
		if proposal.Execution.Swaps[i].SwapId == swapId {
			return &proposal.Execution.Swaps[i]
		}
	}
	proposal.Execution.Swaps = append(proposal.Execution.Swaps, storage.SwapProgress{
		SwapId: swapId,
		Status: storage.SwapStatus_Pending,
	})
	return &proposal.Execution.Swaps[len(proposal.Execution.Swaps)-1]
}

// executeSwaps exchanges fungible holdings for the vault's base currency, one transaction per
// swap. Progress is persisted after every swap so retries skip completed ones, and a swap that
// was submitted but not settled is only settled.
func (e *marketplaceExecutor) executeSwaps(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault, swaps []storage.SwapRequest) error {
	for _, swap := range swaps {
		switch swapProgress(proposal, swap.Id).Status {
		case storage.SwapStatus_Completed:
			continue
		case storage.SwapStatus_Submitted:
			if err := e.settleSwap(ctx, proposal, swap); err != nil {
				return err
			}
			continue
		}
		if err := e.executeSwap(ctx, proposal, vault, swap); err != nil {
			return err
		}
	}
	return nil
}

func (e *marketplaceExecutor) executeSwap(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault, swap storage.SwapRequest) error {
	quantity, ok := new(big.Int).SetString(swap.Quantity, 10)
	if !ok || quantity.Sign() <= 0 {
		return executionErrors.Reject(fmt.Sprintf("swap %s has an invalid quantity '%s'", swap.Id, swap.Quantity))
	}
	assets, err := e.wallet.deps.Store.ListVaultAssets(ctx, vault.Id)
	if err != nil {
		return err
	}
	candidates := lo.Filter(assets, func(a *storage.VaultAsset, _ int) bool {
		return a.Kind == storage.AssetKind_FT && a.Unit == swap.Unit && inCustodyStatus(a.Status)
	})
	allocations, err := allocateLargestFirst(candidates, quantity)
	if err != nil {
		return executionErrors.Reject(fmt.Sprintf("vault cannot cover swap of %s: %s", swap.Unit, err.Error()))
	}

	units := []clientTypes.AssetAmount{{Unit: swap.Unit, Quantity: quantity.String()}}
	if _, err := e.wallet.ensureInCustody(ctx, vault, units); err != nil {
		return err
	}

	custody, _, err := e.wallet.signers(ctx, vault.Id)
	if err != nil {
		return err
	}
	unsigned, err := e.wallet.deps.Marketplace.BuildSwapTransaction(ctx, &clientTypes.SwapQuoteRequest{
		Address:         custody.Address(),
		Units:           units,
		OutputUnit:      vault.BaseCurrency,
		SlippagePercent: swap.SlippagePercent,
		Network:         e.wallet.deps.Config.ExternalServicesConfig.Network,
	})
	if err != nil {
		return fmt.Errorf("failed to build swap %s: %w", swap.Id, err)
	}
	txHash, err := e.wallet.signAndSubmit(ctx, vault, unsigned)
	if err != nil {
		return err
	}

	progress := swapProgress(proposal, swap.Id)
	progress.Status = storage.SwapStatus_Submitted
	progress.TxHash = txHash
	progress.AssetIds = make([]string, 0, len(allocations))
	progress.Allocations = make([]storage.SwapAllocation, 0, len(allocations))
	for _, a := range allocations {
		held, _ := new(big.Int).SetString(a.asset.Quantity, 10)
		progress.AssetIds = append(progress.AssetIds, a.asset.Id)
		progress.Allocations = append(progress.Allocations, storage.SwapAllocation{
			AssetId:   a.asset.Id,
			Quantity:  a.quantity.String(),
			Remaining: new(big.Int).Sub(held, a.quantity).String(),
		})
	}
	e.wallet.logger().Sugar().Infow("Swap submitted",
		zap.String("proposalId", proposal.Id),
		zap.String("swapId", swap.Id),
		zap.String("txHash", txHash),
	)
	if err := e.wallet.deps.Store.UpdateProposal(ctx, proposal); err != nil {
		return err
	}
	return e.settleSwap(ctx, proposal, swap)
}

// settleSwap applies a submitted swap to the vault's holdings and records its transaction. The
// holdings are set to the remaining quantities captured at submission, so settling twice is safe.
func (e *marketplaceExecutor) settleSwap(ctx context.Context, proposal *storage.Proposal, swap storage.SwapRequest) error {
	progress := swapProgress(proposal, swap.Id)
	remaining := make(map[string]string, len(progress.Allocations))
	for _, a := range progress.Allocations {
		remaining[a.AssetId] = a.Remaining
	}
	assets, err := e.wallet.deps.Store.GetVaultAssets(ctx, progress.AssetIds)
	if err != nil {
		return err
	}
	for _, a := range assets {
		left, ok := remaining[a.Id]
		if !ok {
			continue
		}
		if left == "0" {
			a.Status = storage.AssetStatus_Sold
		} else {
			a.Quantity = left
		}
	}
	if err := e.wallet.deps.Store.SaveVaultAssets(ctx, assets); err != nil {
		return err
	}
	if err := e.wallet.recordTransactionOnce(ctx, proposal, storage.TransactionType_Swap, progress.TxHash, map[string]any{
		"swapId":   swap.Id,
		"unit":     swap.Unit,
		"quantity": swap.Quantity,
	}); err != nil {
		return fmt.Errorf("failed to record swap %s: %w", swap.Id, err)
	}

	progress = swapProgress(proposal, swap.Id)
	progress.Status = storage.SwapStatus_Completed
	return e.wallet.deps.Store.UpdateProposal(ctx, proposal)
}
