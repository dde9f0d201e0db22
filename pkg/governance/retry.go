package governance

import (
	"context"
	"errors"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
)

// maxBackoffShift keeps base << retryCount from overflowing.
const maxBackoffShift = 20

type SweepResult struct {
	Attempted int
	Executed  int
	Skipped   int
	Exhausted int
	Awaiting  int
}

// Backoff is the wait after the last attempt before retry number retryCount+1.
func (o *Orchestrator) Backoff(retryCount int) time.Duration {
	shift := min(max(retryCount, 0), maxBackoffShift)
	return o.config.RetryBaseDelay << shift
}

// RetrySweep re-executes PASSED proposals whose backoff window elapsed. Proposals that used up
// their retries stay PASSED with their last error until an operator steps in. Proposals awaiting
// completion are not executed again, only their settlement watcher is restarted if it stopped.
func (o *Orchestrator) RetrySweep(ctx context.Context) (*SweepResult, error) {
	proposals, err := o.store.ListProposalsByStatus(ctx, storage.ProposalStatus_Passed)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{}
	now := o.now()
	for _, p := range proposals {
		if p.Execution.AwaitingCompletion {
			result.Awaiting++
			if w, ok := o.executors[p.Type].(settlementWatcher); ok && w.Rearm(p) {
				o.logger.Sugar().Infow("Watching settlement again", zap.String("proposalId", p.Id))
			}
			continue
		}
		if p.Execution.RetryCount >= o.config.MaxRetries {
			result.Exhausted++
			o.logger.Sugar().Debugw("Proposal exhausted its retries",
				zap.String("proposalId", p.Id),
				zap.Int("retryCount", p.Execution.RetryCount),
			)
			continue
		}
		if p.Execution.LastAttempt != nil && now.Before(p.Execution.LastAttempt.Add(o.Backoff(p.Execution.RetryCount))) {
			result.Skipped++
			continue
		}

		p.Execution.RetryCount++
		result.Attempted++
		o.logger.Sugar().Infow("Retrying proposal execution",
			zap.String("proposalId", p.Id),
			zap.Int("retryCount", p.Execution.RetryCount),
		)
		if err := o.execute(ctx, p); err != nil {
			continue
		}
		if p.Status == storage.ProposalStatus_Executed {
			result.Executed++
		}
	}
	if result.Attempted > 0 || result.Exhausted > 0 {
		o.logger.Sugar().Infow("Retry sweep finished",
			zap.Int("attempted", result.Attempted),
			zap.Int("executed", result.Executed),
			zap.Int("skipped", result.Skipped),
			zap.Int("exhausted", result.Exhausted),
			zap.Int("awaiting", result.Awaiting),
		)
	}
	return result, nil
}

// RetryFailedBatches is the operator entry point for a distribution with failed batches. Only
// RETRY_PENDING and under-ceiling FAILED batches are resubmitted. The proposal is promoted to
// EXECUTED once every batch completed.
func (o *Orchestrator) RetryFailedBatches(ctx context.Context, proposalId string) (*distribution.StatusReport, int, error) {
	p, err := o.store.GetProposal(ctx, proposalId)
	if err != nil {
		return nil, 0, err
	}
	if p.Type != storage.ProposalType_Distribution {
		return nil, 0, ErrNotDistribution
	}
	if p.Status == storage.ProposalStatus_Executed {
		return distribution.Report(p), 0, nil
	}
	if p.Status != storage.ProposalStatus_Passed {
		return nil, 0, ErrNotRetryable
	}

	retried, err := o.engine.RetryFailedBatches(ctx, p)
	if err != nil && !errors.Is(err, distribution.ErrDistributionIncomplete) {
		return nil, retried, err
	}
	if p.Execution.Distribution != nil && distribution.RollupStatus(p.Execution.Distribution.Batches) == storage.DistributionStatus_Completed {
		if err := o.markExecuted(ctx, p); err != nil {
			return nil, retried, err
		}
	}
	o.logger.Sugar().Infow("Retried distribution batches",
		zap.String("proposalId", p.Id),
		zap.Int("retried", retried),
	)
	return distribution.Report(p), retried, nil
}
