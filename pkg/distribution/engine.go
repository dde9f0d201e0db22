package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var ErrDistributionIncomplete = errors.New("distribution has batches that did not complete")

type Engine struct {
	store     storage.GovernanceStore
	txService clientTypes.TransactionService
	keys      clientTypes.KeyProvider
	config    *config.DistributionConfig
	network   string
	metrics   *metrics.MetricsSink
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(
	store storage.GovernanceStore,
	txService clientTypes.TransactionService,
	keys clientTypes.KeyProvider,
	cfg *config.DistributionConfig,
	network string,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Engine {
	return &Engine{
		store:     store,
		txService: txService,
		keys:      keys,
		config:    cfg,
		network:   network,
		metrics:   ms,
		logger:    l,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) minimum() *big.Int {
	return new(big.Int).SetUint64(e.config.MinimumTransferAmount)
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid distribution amount '%s'", raw)
	}
	return amount, nil
}

// Preview computes the payout split against a snapshot without creating anything.
func (e *Engine) Preview(vault *storage.Vault, snapshot *storage.Snapshot, amount string) (*Plan, error) {
	total, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	return CalculateShares(total, snapshot.Balances(), []string{vault.PoolAddress}, e.minimum())
}

// EstimatedBatches returns how many transactions a plan needs.
func (e *Engine) EstimatedBatches(plan *Plan) int {
	if e.config.BatchSize <= 0 || len(plan.Shares) == 0 {
		return 0
	}
	return (len(plan.Shares) + e.config.BatchSize - 1) / e.config.BatchSize
}

// Execute pays out a DISTRIBUTION proposal. It is re-entrant: claims and batches are created on
// the first call and later calls only process batches that are still pending. The proposal's
// execution state is updated in place and persisted after every batch.
func (e *Engine) Execute(ctx context.Context, proposal *storage.Proposal) error {
	if proposal.Payload.Distribution == nil {
		return executionErrors.Reject("distribution proposal has no distribution payload")
	}
	if err := e.prepare(ctx, proposal); err != nil {
		return err
	}

	state := proposal.Execution.Distribution
	indexes := make([]int, 0)
	interrupted := false
	for i, b := range state.Batches {
		switch b.Status {
		case storage.BatchStatus_Pending:
			indexes = append(indexes, i)
		case storage.BatchStatus_Processing:
			// left behind by an interrupted run
			state.Batches[i].Status = storage.BatchStatus_RetryPending
			state.Batches[i].Error = "interrupted while processing"
			interrupted = true
		}
	}
	if interrupted {
		if err := e.store.UpdateProposal(ctx, proposal); err != nil {
			return err
		}
	}
	return e.processBatches(ctx, proposal, indexes)
}

// RetryFailedBatches reprocesses batches that are RETRY_PENDING, or FAILED but still under the
// retry ceiling. Completed batches are never touched.
func (e *Engine) RetryFailedBatches(ctx context.Context, proposal *storage.Proposal) (int, error) {
	state := proposal.Execution.Distribution
	if state == nil {
		return 0, nil
	}
	indexes := make([]int, 0)
	reopened := make([]string, 0)
	for i, b := range state.Batches {
		switch {
		case b.Status == storage.BatchStatus_RetryPending:
			indexes = append(indexes, i)
		case b.Status == storage.BatchStatus_Failed && b.RetryCount < e.config.MaxBatchRetries:
			indexes = append(indexes, i)
			reopened = append(reopened, b.ClaimIds...)
		}
	}
	if len(indexes) == 0 {
		return 0, nil
	}
	if len(reopened) > 0 {
		if err := e.store.UpdateClaimsStatus(ctx, reopened, storage.ClaimStatus_Pending, ""); err != nil {
			return 0, err
		}
	}
	err := e.processBatches(ctx, proposal, indexes)
	return len(indexes), err
}

// HasRetryableBatches reports whether RetryFailedBatches has anything to do.
func (e *Engine) HasRetryableBatches(proposal *storage.Proposal) bool {
	state := proposal.Execution.Distribution
	if state == nil {
		return false
	}
	for _, b := range state.Batches {
		if b.Status == storage.BatchStatus_RetryPending ||
			(b.Status == storage.BatchStatus_Failed && b.RetryCount < e.config.MaxBatchRetries) {
			return true
		}
	}
	return false
}

func (e *Engine) prepare(ctx context.Context, proposal *storage.Proposal) error {
	if proposal.Execution.Distribution != nil {
		return nil
	}

	existing, err := e.store.ListProposalClaims(ctx, proposal.Id)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		sort.Slice(existing, func(i, j int) bool { return existing[i].Address < existing[j].Address })
		proposal.Execution.Distribution = &storage.DistributionState{
			TotalAmount: proposal.Payload.Distribution.Amount,
			Batches:     rebuildBatches(existing),
		}
		proposal.Execution.Distribution.TotalBatches = len(proposal.Execution.Distribution.Batches)
		return e.store.UpdateProposal(ctx, proposal)
	}

	vault, err := e.store.GetVault(ctx, proposal.VaultId)
	if err != nil {
		return err
	}
	snapshot, err := e.store.GetSnapshot(ctx, proposal.SnapshotId)
	if err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", proposal.SnapshotId, err)
	}
	plan, err := e.Preview(vault, snapshot, proposal.Payload.Distribution.Amount)
	if err != nil {
		return executionErrors.Reject(err.Error())
	}
	if len(plan.Shares) == 0 {
		return executionErrors.Reject("no holder is eligible for the minimum transfer amount")
	}
	for _, ex := range plan.Excluded {
		e.logger.Sugar().Debugw("Skipping holder below minimum transfer amount",
			zap.String("proposalId", proposal.Id),
			zap.String("address", ex.Address),
			zap.String("amount", ex.Amount.String()),
		)
	}

	claims := make([]*storage.Claim, 0, len(plan.Shares))
	for _, s := range plan.Shares {
		claims = append(claims, &storage.Claim{
			Id:         uuid.NewString(),
			VaultId:    proposal.VaultId,
			ProposalId: proposal.Id,
			Type:       storage.ClaimType_Distribution,
			Status:     storage.ClaimStatus_Pending,
			Amount:     s.Amount.String(),
			Address:    s.Address,
		})
	}
	batches := PartitionBatches(claims, e.config.BatchSize)
	if err := e.store.CreateClaims(ctx, claims); err != nil {
		return err
	}

	proposal.Execution.Distribution = &storage.DistributionState{
		TotalAmount:   plan.TotalAmount.String(),
		TotalBatches:  len(batches),
		ExcludedCount: len(plan.Excluded),
		Batches:       batches,
	}
	e.logger.Sugar().Infow("Created distribution claims",
		zap.String("proposalId", proposal.Id),
		zap.Int("claims", len(claims)),
		zap.Int("batches", len(batches)),
		zap.Int("excluded", len(plan.Excluded)),
	)
	return e.store.UpdateProposal(ctx, proposal)
}

// processBatches runs the given batches in ascending batch number with the configured delay between
// submissions. A failed batch does not stop later ones.
func (e *Engine) processBatches(ctx context.Context, proposal *storage.Proposal, indexes []int) error {
	state := proposal.Execution.Distribution
	sort.Slice(indexes, func(i, j int) bool {
		return state.Batches[indexes[i]].BatchNumber < state.Batches[indexes[j]].BatchNumber
	})

	var failures []error
	for n, idx := range indexes {
		if n > 0 {
			if err := e.sleep(ctx, e.config.InterBatchDelay); err != nil {
				return err
			}
		}
		if err := e.processBatch(ctx, proposal, idx); err != nil {
			failures = append(failures, err)
		}
	}

	if RollupStatus(state.Batches) == storage.DistributionStatus_Completed {
		return nil
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", ErrDistributionIncomplete, errors.Join(failures...))
	}
	return ErrDistributionIncomplete
}

func (e *Engine) processBatch(ctx context.Context, proposal *storage.Proposal, idx int) error {
	batch := &proposal.Execution.Distribution.Batches[idx]
	now := e.now()
	batch.LastAttempt = &now

	// A batch with a hash is already on chain and only needs its bookkeeping finished.
	if batch.TxHash == "" {
		batch.Status = storage.BatchStatus_Processing
		if err := e.store.UpdateProposal(ctx, proposal); err != nil {
			return err
		}
		txHash, err := e.sendBatch(ctx, proposal, batch)
		if err != nil {
			return e.failBatch(ctx, proposal, batch, err)
		}
		batch.TxHash = txHash
		if err := e.store.UpdateProposal(ctx, proposal); err != nil {
			return err
		}
	}

	if err := e.settleBatch(ctx, proposal, batch); err != nil {
		return e.deferSettlement(ctx, proposal, batch, err)
	}

	batch.Status = storage.BatchStatus_Completed
	batch.Error = ""
	_ = e.metrics.Incr(metricsTypes.Metric_Incr_BatchCompleted, nil, 1)
	e.logger.Sugar().Infow("Distribution batch completed",
		zap.String("proposalId", proposal.Id),
		zap.Int("batchNumber", batch.BatchNumber),
		zap.Int("totalBatches", batch.TotalBatches),
		zap.String("txHash", batch.TxHash),
	)
	return e.store.UpdateProposal(ctx, proposal)
}

func (e *Engine) failBatch(ctx context.Context, proposal *storage.Proposal, batch *storage.DistributionBatch, cause error) error {
	batch.RetryCount++
	batch.Error = cause.Error()
	if batch.RetryCount < e.config.MaxBatchRetries {
		batch.Status = storage.BatchStatus_RetryPending
	} else {
		batch.Status = storage.BatchStatus_Failed
		if err := e.store.UpdateClaimsStatus(ctx, batch.ClaimIds, storage.ClaimStatus_Failed, ""); err != nil {
			e.logger.Sugar().Errorw("Failed to mark claims as failed", zap.String("proposalId", proposal.Id), zap.Error(err))
		}
	}
	_ = e.metrics.Incr(metricsTypes.Metric_Incr_BatchFailed, nil, 1)
	e.logger.Sugar().Errorw("Distribution batch failed",
		zap.String("proposalId", proposal.Id),
		zap.Int("batchNumber", batch.BatchNumber),
		zap.Int("retryCount", batch.RetryCount),
		zap.String("status", string(batch.Status)),
		zap.Error(cause),
	)
	if err := e.store.UpdateProposal(ctx, proposal); err != nil {
		return err
	}
	return fmt.Errorf("batch %d/%d: %w", batch.BatchNumber, batch.TotalBatches, cause)
}

// deferSettlement parks a submitted batch whose records could not be written. The payout is on
// chain, so the retry budget is left alone and the next attempt only settles.
func (e *Engine) deferSettlement(ctx context.Context, proposal *storage.Proposal, batch *storage.DistributionBatch, cause error) error {
	batch.Status = storage.BatchStatus_RetryPending
	batch.Error = cause.Error()
	e.logger.Sugar().Warnw("Distribution batch submitted but not settled",
		zap.String("proposalId", proposal.Id),
		zap.Int("batchNumber", batch.BatchNumber),
		zap.String("txHash", batch.TxHash),
		zap.Error(cause),
	)
	if err := e.store.UpdateProposal(ctx, proposal); err != nil {
		return err
	}
	return fmt.Errorf("batch %d/%d settlement: %w", batch.BatchNumber, batch.TotalBatches, cause)
}

// sendBatch builds one multi-output transaction for the batch, signs it with the custody and
// admin keys and submits it. It returns the transaction hash.
func (e *Engine) sendBatch(ctx context.Context, proposal *storage.Proposal, batch *storage.DistributionBatch) (string, error) {
	claims, err := e.store.ListClaimsByIds(ctx, batch.ClaimIds)
	if err != nil {
		return "", fmt.Errorf("failed to load claims: %w", err)
	}
	vault, err := e.store.GetVault(ctx, proposal.VaultId)
	if err != nil {
		return "", err
	}
	custody, err := e.keys.GetVaultSigner(ctx, vault.Id)
	if err != nil {
		return "", err
	}
	admin, err := e.keys.GetAdminSigner(ctx)
	if err != nil {
		return "", err
	}

	outputs := make([]clientTypes.TxOutput, 0, len(claims))
	for _, c := range claims {
		outputs = append(outputs, clientTypes.TxOutput{Address: c.Address, Amount: c.Amount})
	}
	unsigned, err := e.txService.Build(ctx, &clientTypes.BuildTransactionRequest{
		Outputs:       outputs,
		ChangeAddress: vault.CustodyAddress,
		Signers:       []string{custody.Address(), admin.Address()},
		Network:       e.network,
		Metadata: map[string]string{
			"proposalId": proposal.Id,
			"batch":      fmt.Sprintf("%d/%d", batch.BatchNumber, batch.TotalBatches),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}
	signed, err := custody.Sign(ctx, unsigned.TxHex)
	if err != nil {
		return "", fmt.Errorf("custody signature failed: %w", err)
	}
	signed, err = admin.Sign(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("admin signature failed: %w", err)
	}
	txHash, err := e.txService.Submit(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	return txHash, nil
}

// settleBatch records the submitted transaction and marks the batch's claims as claimed. Each step
// is skipped when an earlier attempt already completed it.
func (e *Engine) settleBatch(ctx context.Context, proposal *storage.Proposal, batch *storage.DistributionBatch) error {
	if batch.TransactionId == "" {
		metadata, _ := json.Marshal(map[string]string{
			"batchId":     batch.BatchId,
			"batchNumber": strconv.Itoa(batch.BatchNumber),
			"recipients":  strconv.Itoa(len(batch.ClaimIds)),
			"amount":      batch.Amount,
		})
		record := &storage.Transaction{
			Id:         uuid.NewString(),
			VaultId:    proposal.VaultId,
			ProposalId: proposal.Id,
			Type:       storage.TransactionType_Distribution,
			TxHash:     batch.TxHash,
			Metadata:   datatypes.JSON(metadata),
		}
		if err := e.store.CreateTransaction(ctx, record); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		batch.TransactionId = record.Id
		if err := e.store.UpdateProposal(ctx, proposal); err != nil {
			return err
		}
	}
	return e.store.UpdateClaimsStatus(ctx, batch.ClaimIds, storage.ClaimStatus_Claimed, batch.TransactionId)
}
