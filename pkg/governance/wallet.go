package governance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// wallet holds the custody wallet operations shared by the executors.
type wallet struct {
	deps *Dependencies
}

func (w *wallet) logger() *zap.Logger {
	return w.deps.Logger
}

// signers returns the vault custody signer and the admin fee payer.
func (w *wallet) signers(ctx context.Context, vaultId string) (clientTypes.Signer, clientTypes.Signer, error) {
	custody, err := w.deps.Keys.GetVaultSigner(ctx, vaultId)
	if err != nil {
		return nil, nil, err
	}
	admin, err := w.deps.Keys.GetAdminSigner(ctx)
	if err != nil {
		return nil, nil, err
	}
	return custody, admin, nil
}

func (w *wallet) signAndSubmit(ctx context.Context, vault *storage.Vault, unsigned *clientTypes.UnsignedTransaction) (string, error) {
	custody, admin, err := w.signers(ctx, vault.Id)
	if err != nil {
		return "", err
	}
	signed, err := custody.Sign(ctx, unsigned.TxHex)
	if err != nil {
		return "", fmt.Errorf("custody signature failed: %w", err)
	}
	signed, err = admin.Sign(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("admin signature failed: %w", err)
	}
	txHash, err := w.deps.TxService.Submit(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	return txHash, nil
}

// buildAndSubmit builds a transaction from the custody wallet with the custody and admin keys as
// signers, then signs and submits it.
func (w *wallet) buildAndSubmit(ctx context.Context, vault *storage.Vault, outputs []clientTypes.TxOutput, metadata map[string]string) (string, error) {
	custody, admin, err := w.signers(ctx, vault.Id)
	if err != nil {
		return "", err
	}
	unsigned, err := w.deps.TxService.Build(ctx, &clientTypes.BuildTransactionRequest{
		Outputs:       outputs,
		ChangeAddress: vault.CustodyAddress,
		Signers:       []string{custody.Address(), admin.Address()},
		Network:       w.deps.Config.ExternalServicesConfig.Network,
		Metadata:      metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}
	return w.signAndSubmit(ctx, vault, unsigned)
}

func (w *wallet) recordTransaction(ctx context.Context, proposal *storage.Proposal, txType storage.TransactionType, txHash string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return w.deps.Store.CreateTransaction(ctx, &storage.Transaction{
		Id:         uuid.NewString(),
		VaultId:    proposal.VaultId,
		ProposalId: proposal.Id,
		Type:       txType,
		TxHash:     txHash,
		Metadata:   datatypes.JSON(raw),
	})
}

// recordTransactionOnce records txHash unless the proposal already has a record for it.
func (w *wallet) recordTransactionOnce(ctx context.Context, proposal *storage.Proposal, txType storage.TransactionType, txHash string, metadata map[string]any) error {
	existing, err := w.deps.Store.ListProposalTransactions(ctx, proposal.Id)
	if err != nil {
		return err
	}
	for _, tx := range existing {
		if tx.TxHash == txHash {
			return nil
		}
	}
	return w.recordTransaction(ctx, proposal, txType, txHash, metadata)
}

func sumHoldings(assets []clientTypes.AssetAmount) map[string]*big.Int {
	held := make(map[string]*big.Int, len(assets))
	for _, a := range assets {
		q, ok := new(big.Int).SetString(a.Quantity, 10)
		if !ok {
			continue
		}
		if existing, ok := held[a.Unit]; ok {
			existing.Add(existing, q)
		} else {
			held[a.Unit] = q
		}
	}
	return held
}

// ensureInCustody moves whatever part of units the custody wallet does not hold yet, judged by
// live chain holdings rather than local asset status. It returns the extraction tx hash, empty
// when nothing had to move.
func (w *wallet) ensureInCustody(ctx context.Context, vault *storage.Vault, units []clientTypes.AssetAmount) (string, error) {
	if len(units) == 0 {
		return "", nil
	}
	live, err := w.deps.Indexer.GetAddressAssets(ctx, vault.CustodyAddress)
	if err != nil {
		return "", fmt.Errorf("failed to query custody holdings: %w", err)
	}
	held := sumHoldings(live)
	needed := sumHoldings(units)

	missing := make([]clientTypes.AssetAmount, 0)
	for _, u := range units {
		want, ok := needed[u.Unit]
		if !ok {
			continue
		}
		delete(needed, u.Unit)
		have := held[u.Unit]
		if have == nil {
			have = big.NewInt(0)
		}
		if have.Cmp(want) >= 0 {
			continue
		}
		missing = append(missing, clientTypes.AssetAmount{
			Unit:     u.Unit,
			Quantity: new(big.Int).Sub(want, have).String(),
		})
	}
	if len(missing) == 0 {
		w.logger().Sugar().Debugw("Assets already in custody", zap.String("vaultId", vault.Id))
		return "", nil
	}

	txHash, err := w.deps.Extraction.ExtractAssets(ctx, vault.Id, missing, vault.CustodyAddress)
	if err != nil {
		return "", fmt.Errorf("failed to extract assets: %w", err)
	}
	w.logger().Sugar().Infow("Extracting assets into custody",
		zap.String("vaultId", vault.Id),
		zap.Int("units", len(missing)),
		zap.String("txHash", txHash),
	)
	confirmed, err := w.deps.TxService.AwaitConfirmation(ctx, txHash, w.deps.Config.DistributionConfig.ConfirmationTimeout)
	if err != nil {
		return txHash, fmt.Errorf("failed to await extraction transaction %s: %w", txHash, err)
	}
	if !confirmed {
		return txHash, fmt.Errorf("extraction transaction %s was not confirmed in time", txHash)
	}
	return txHash, nil
}

// loadAssets returns the vault's assets for ids in the same order, rejecting ids that do not
// belong to the vault.
func (w *wallet) loadAssets(ctx context.Context, vault *storage.Vault, ids []string) ([]*storage.VaultAsset, error) {
	assets, err := w.deps.Store.GetVaultAssets(ctx, ids)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, executionErrors.Reject("one or more assets no longer exist in the vault")
		}
		return nil, err
	}
	byId := make(map[string]*storage.VaultAsset, len(assets))
	for _, a := range assets {
		byId[a.Id] = a
	}
	out := make([]*storage.VaultAsset, 0, len(ids))
	for _, id := range ids {
		a, ok := byId[id]
		if !ok || a.VaultId != vault.Id {
			return nil, executionErrors.Reject(fmt.Sprintf("asset %s does not belong to vault %s", id, vault.Id))
		}
		out = append(out, a)
	}
	return out, nil
}

func inCustodyStatus(s storage.AssetStatus) bool {
	return s == storage.AssetStatus_Locked || s == storage.AssetStatus_Extracted
}

func assetAmounts(assets []*storage.VaultAsset) []clientTypes.AssetAmount {
	out := make([]clientTypes.AssetAmount, 0, len(assets))
	for _, a := range assets {
		out = append(out, clientTypes.AssetAmount{Unit: a.Unit, Quantity: a.Quantity})
	}
	return out
}
