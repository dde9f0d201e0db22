package governance

import (
	"context"
	"errors"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
)

type distributionExecutor struct {
	engine *distribution.Engine
}

// Execute retries batches left RETRY_PENDING by an earlier run, then processes anything still
// pending. Completed batches are never resubmitted.
func (e *distributionExecutor) Execute(ctx context.Context, proposal *storage.Proposal, _ *storage.Vault) (Outcome, error) {
	if e.engine.HasRetryableBatches(proposal) {
		if _, err := e.engine.RetryFailedBatches(ctx, proposal); err != nil && !errors.Is(err, distribution.ErrDistributionIncomplete) {
			return Outcome_Executed, err
		}
	}
	return Outcome_Executed, e.engine.Execute(ctx, proposal)
}
