package governance

import (
	"context"
	"fmt"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

type marketplaceExecutor struct {
	wallet *wallet
}

func (e *marketplaceExecutor) Execute(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault) (Outcome, error) {
	payload := proposal.Payload.Marketplace
	if payload == nil || (len(payload.Operations) == 0 && len(payload.Swaps) == 0) {
		return Outcome_Executed, executionErrors.Reject("no marketplace operations were requested")
	}
	if len(payload.Operations) > 0 {
		if err := e.executeOperations(ctx, proposal, vault, payload.Operations); err != nil {
			return Outcome_Executed, err
		}
	}
	if len(payload.Swaps) > 0 {
		if err := e.executeSwaps(ctx, proposal, vault, payload.Swaps); err != nil {
			return Outcome_Executed, err
		}
	}
	return Outcome_Executed, nil
}

type plannedOperation struct {
	op    storage.MarketplaceOperation
	asset *storage.VaultAsset
}

// planOperations checks every operation against local asset state and the markets, rejecting
// the proposal when one of them can no longer be carried out.
func (e *marketplaceExecutor) planOperations(ctx context.Context, vault *storage.Vault, ops []storage.MarketplaceOperation) ([]plannedOperation, error) {
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Action != storage.MarketAction_Buy {
			ids = append(ids, op.AssetId)
		}
	}
	assets, err := e.wallet.loadAssets(ctx, vault, ids)
	if err != nil {
		return nil, err
	}

	planned := make([]plannedOperation, 0, len(ops))
	next := 0
	for _, op := range ops {
		if op.Market == "" {
			return nil, executionErrors.Reject(fmt.Sprintf("operation on %s has no market", op.AssetId))
		}
		if op.Action == storage.MarketAction_Buy {
			if op.ListingId == "" || op.Price == "" {
				return nil, executionErrors.Reject(fmt.Sprintf("buy of %s needs a listing and a price", op.AssetId))
			}
			planned = append(planned, plannedOperation{op: op})
			continue
		}

		asset := assets[next]
		next++
		switch op.Action {
		case storage.MarketAction_Sell:
			if !inCustodyStatus(asset.Status) {
				return nil, executionErrors.Reject(fmt.Sprintf("asset %s is %s and cannot be listed", asset.Id, asset.Status))
			}
			listing, err := e.wallet.deps.Marketplace.GetListing(ctx, op.Market, asset.Unit)
			if err != nil {
				return nil, err
			}
			if listing != nil {
				return nil, executionErrors.Reject(fmt.Sprintf("asset %s is already listed on %s", asset.Unit, op.Market))
			}
		case storage.MarketAction_Unlist, storage.MarketAction_Update:
			if asset.Status != storage.AssetStatus_Listed {
				return nil, executionErrors.Reject(fmt.Sprintf("asset %s is %s, not listed", asset.Id, asset.Status))
			}
			if op.Action == storage.MarketAction_Update && op.Price == "" {
				return nil, executionErrors.Reject(fmt.Sprintf("price update of %s has no price", asset.Id))
			}
		default:
			return nil, executionErrors.Reject(fmt.Sprintf("unknown marketplace action %s", op.Action))
		}
		planned = append(planned, plannedOperation{op: op, asset: asset})
	}
	return planned, nil
}

func (e *marketplaceExecutor) executeOperations(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault, ops []storage.MarketplaceOperation) error {
	if proposal.Execution.Marketplace == nil {
		proposal.Execution.Marketplace = &storage.MarketplaceState{}
	}
	state := proposal.Execution.Marketplace
	if state.TxHash == "" {
		if err := e.submitOperations(ctx, proposal, vault, ops); err != nil {
			return err
		}
	}
	if state.Settled {
		return nil
	}
	return e.settleOperations(ctx, proposal, vault, ops)
}

// submitOperations plans, extracts and submits the grouped marketplace transaction. The hash is
// persisted before anything else so a later failure never leads to a second submission.
func (e *marketplaceExecutor) submitOperations(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault, ops []storage.MarketplaceOperation) error {
	state := proposal.Execution.Marketplace
	planned, err := e.planOperations(ctx, vault, ops)
	if err != nil {
		return err
	}

	sells := make([]*storage.VaultAsset, 0)
	for _, p := range planned {
		if p.op.Action == storage.MarketAction_Sell {
			sells = append(sells, p.asset)
		}
	}
	extractionHash, err := e.wallet.ensureInCustody(ctx, vault, assetAmounts(sells))
	if err != nil {
		return err
	}
	if extractionHash != "" {
		state.ExtractionId = extractionHash
		state.Extracted = true
		for _, a := range sells {
			a.Status = storage.AssetStatus_Extracted
		}
		if err := e.wallet.deps.Store.SaveVaultAssets(ctx, sells); err != nil {
			return err
		}
		if err := e.wallet.deps.Store.UpdateProposal(ctx, proposal); err != nil {
			return err
		}
	}

	grouped := orderedmap.New[string, []clientTypes.MarketOperation]()
	for _, p := range planned {
		unit := p.op.AssetId
		listingId := p.op.ListingId
		if p.asset != nil {
			unit = p.asset.Unit
			if listingId == "" {
				listingId = p.asset.ListingTxHash
			}
		}
		existing, _ := grouped.Get(p.op.Market)
		grouped.Set(p.op.Market, append(existing, clientTypes.MarketOperation{
			Action:    string(p.op.Action),
			Unit:      unit,
			Price:     p.op.Price,
			ListingId: listingId,
		}))
	}

	custody, _, err := e.wallet.signers(ctx, vault.Id)
	if err != nil {
		return err
	}
	unsigned, err := e.wallet.deps.Marketplace.BuildMarketTransaction(ctx, &clientTypes.MarketTransactionRequest{
		Address:    custody.Address(),
		Operations: grouped,
		Network:    e.wallet.deps.Config.ExternalServicesConfig.Network,
	})
	if err != nil {
		return fmt.Errorf("failed to build marketplace transaction: %w", err)
	}
	txHash, err := e.wallet.signAndSubmit(ctx, vault, unsigned)
	if err != nil {
		return err
	}
	state.TxHash = txHash
	proposal.Execution.TxHash = txHash

	e.wallet.logger().Sugar().Infow("Submitted marketplace transaction",
		zap.String("proposalId", proposal.Id),
		zap.Int("markets", grouped.Len()),
		zap.Int("operations", len(planned)),
		zap.String("txHash", txHash),
	)
	return e.wallet.deps.Store.UpdateProposal(ctx, proposal)
}

// settleOperations records the submitted transaction and applies it to local asset state. Both
// steps are idempotent, so a settlement interrupted halfway is simply repeated.
func (e *marketplaceExecutor) settleOperations(ctx context.Context, proposal *storage.Proposal, vault *storage.Vault, ops []storage.MarketplaceOperation) error {
	state := proposal.Execution.Marketplace
	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Action != storage.MarketAction_Buy {
			ids = append(ids, op.AssetId)
		}
	}
	assets, err := e.wallet.loadAssets(ctx, vault, ids)
	if err != nil {
		return err
	}
	planned := make([]plannedOperation, 0, len(ops))
	next := 0
	markets := map[string]struct{}{}
	for _, op := range ops {
		markets[op.Market] = struct{}{}
		if op.Action == storage.MarketAction_Buy {
			planned = append(planned, plannedOperation{op: op})
			continue
		}
		planned = append(planned, plannedOperation{op: op, asset: assets[next]})
		next++
	}

	if err := e.wallet.recordTransactionOnce(ctx, proposal, storage.TransactionType_Marketplace, state.TxHash, map[string]any{
		"operations": len(planned),
		"markets":    len(markets),
	}); err != nil {
		return fmt.Errorf("failed to record marketplace transaction: %w", err)
	}
	if err := e.wallet.deps.Store.SaveVaultAssets(ctx, applyOperations(vault, planned, state.TxHash)); err != nil {
		return err
	}
	state.Settled = true
	return e.wallet.deps.Store.UpdateProposal(ctx, proposal)
}

// applyOperations updates local asset state for a submitted marketplace transaction and returns
// the assets to save.
func applyOperations(vault *storage.Vault, planned []plannedOperation, txHash string) []*storage.VaultAsset {
	changed := make([]*storage.VaultAsset, 0, len(planned))
	for i, p := range planned {
		switch p.op.Action {
		case storage.MarketAction_Sell:
			p.asset.Status = storage.AssetStatus_Listed
			p.asset.ListingMarket = p.op.Market
			p.asset.ListingPrice = p.op.Price
			p.asset.ListingTxHash = txHash
		case storage.MarketAction_Unlist:
			p.asset.Status = storage.AssetStatus_Extracted
			p.asset.ListingMarket = ""
			p.asset.ListingPrice = ""
			p.asset.ListingTxHash = ""
		case storage.MarketAction_Update:
			p.asset.ListingPrice = p.op.Price
			p.asset.ListingTxHash = txHash
		case storage.MarketAction_Buy:
			p.asset = &storage.VaultAsset{
				Id:       boughtAssetId(txHash, i),
				VaultId:  vault.Id,
				Kind:     storage.AssetKind_NFT,
				Unit:     p.op.AssetId,
				Quantity: "1",
				Status:   storage.AssetStatus_Extracted,
			}
		}
		changed = append(changed, p.asset)
	}
	return changed
}

// boughtAssetId derives the id of an asset bought by the operation at index in the transaction.
func boughtAssetId(txHash string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", txHash, index))).String()
}
