package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionErrors"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/voteTally"
	"go.uber.org/zap"
)

var (
	ErrNotDistribution = errors.New("proposal is not a distribution")
	ErrNotRetryable    = errors.New("proposal is not awaiting execution")
)

// Orchestrator is the proposal state machine. All methods re-read the proposal and no-op when it
// is no longer in the status the transition expects, so duplicate triggers are harmless.
type Orchestrator struct {
	store     storage.GovernanceStore
	executors map[storage.ProposalType]Executor
	engine    *distribution.Engine
	eventBus  eventBusTypes.IEventBus
	config    *config.GovernanceConfig
	metrics   *metrics.MetricsSink
	logger    *zap.Logger

	now func() time.Time
}

func NewOrchestrator(
	store storage.GovernanceStore,
	executors map[storage.ProposalType]Executor,
	engine *distribution.Engine,
	eb eventBusTypes.IEventBus,
	cfg *config.GovernanceConfig,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	now func() time.Time,
) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:     store,
		executors: executors,
		engine:    engine,
		eventBus:  eb,
		config:    cfg,
		metrics:   ms,
		logger:    l,
		now:       now,
	}
}

// Stop cancels background work started by the executors.
func (o *Orchestrator) Stop() {
	for _, executor := range o.executors {
		if w, ok := executor.(settlementWatcher); ok {
			w.Stop()
		}
	}
}

func typeLabel(p *storage.Proposal) []metricsTypes.MetricsLabel {
	return []metricsTypes.MetricsLabel{{Name: "type", Value: string(p.Type)}}
}

func (o *Orchestrator) publish(name string, p *storage.Proposal, reason string) {
	o.eventBus.PublishProposalEvent(name, &eventBusTypes.ProposalEventData{
		ProposalId: p.Id,
		VaultId:    p.VaultId,
		Type:       string(p.Type),
		Status:     string(p.Status),
		Reason:     reason,
	})
}

// ActivateProposal opens voting on an UPCOMING proposal whose start date has passed.
func (o *Orchestrator) ActivateProposal(ctx context.Context, proposalId string) error {
	p, err := o.store.GetProposal(ctx, proposalId)
	if err != nil {
		return err
	}
	if p.Status != storage.ProposalStatus_Upcoming {
		o.logger.Sugar().Debugw("Proposal is not upcoming, skipping activation",
			zap.String("proposalId", p.Id),
			zap.String("status", string(p.Status)),
		)
		return nil
	}
	now := o.now()
	if p.StartDate != nil && p.StartDate.After(now) {
		o.logger.Sugar().Debugw("Proposal start date not reached", zap.String("proposalId", p.Id))
		return nil
	}
	if p.SnapshotId == "" {
		snapshot, err := o.store.GetLatestSnapshot(ctx, p.VaultId)
		if err != nil {
			return fmt.Errorf("failed to load snapshot for vault %s: %w", p.VaultId, err)
		}
		p.SnapshotId = snapshot.Id
	}
	p.Status = storage.ProposalStatus_Active
	if err := o.store.UpdateProposal(ctx, p); err != nil {
		return err
	}
	_ = o.metrics.Incr(metricsTypes.Metric_Incr_ProposalActivated, typeLabel(p), 1)
	o.logger.Sugar().Infow("Proposal activated", zap.String("proposalId", p.Id), zap.String("vaultId", p.VaultId))
	o.publish(eventBusTypes.Event_ProposalActivated, p, "")
	return nil
}

// Tally computes the current vote result of a proposal against its frozen snapshot.
func (o *Orchestrator) Tally(ctx context.Context, p *storage.Proposal) (*voteTally.Result, error) {
	result, _, err := o.tally(ctx, p)
	return result, err
}

func (o *Orchestrator) tally(ctx context.Context, p *storage.Proposal) (*voteTally.Result, voteTally.Thresholds, error) {
	thresholds := voteTally.Thresholds{}
	vault, err := o.store.GetVault(ctx, p.VaultId)
	if err != nil {
		return nil, thresholds, err
	}
	thresholds.ExecutionPercent = vault.ExecutionThresholdPercent
	thresholds.ParticipationPercent = vault.ParticipationThresholdPercent

	snapshot, err := o.store.GetSnapshot(ctx, p.SnapshotId)
	if err != nil {
		return nil, thresholds, fmt.Errorf("failed to load snapshot %s: %w", p.SnapshotId, err)
	}
	total, err := snapshot.TotalPower(vault.PoolAddress)
	if err != nil {
		return nil, thresholds, err
	}
	votes, err := o.store.ListVotes(ctx, p.Id)
	if err != nil {
		return nil, thresholds, err
	}
	weighted, err := voteTally.FromStoredVotes(votes)
	if err != nil {
		return nil, thresholds, err
	}
	result, err := voteTally.Tally(weighted, thresholds, total)
	return result, thresholds, err
}

// CloseVoting tallies an ACTIVE proposal whose end date has passed. Passing proposals are executed
// right away; an execution failure is recorded on the proposal and left to the retry sweep.
func (o *Orchestrator) CloseVoting(ctx context.Context, proposalId string) error {
	p, err := o.store.GetProposal(ctx, proposalId)
	if err != nil {
		return err
	}
	if p.Status != storage.ProposalStatus_Active {
		o.logger.Sugar().Debugw("Proposal is not active, skipping vote close",
			zap.String("proposalId", p.Id),
			zap.String("status", string(p.Status)),
		)
		return nil
	}
	if p.EndDate != nil && p.EndDate.After(o.now()) {
		o.logger.Sugar().Debugw("Proposal end date not reached", zap.String("proposalId", p.Id))
		return nil
	}

	result, thresholds, err := o.tally(ctx, p)
	if err != nil {
		return err
	}
	if !result.Passed {
		reason := fmt.Sprintf("vote thresholds not met: participation %s%% (%s%% required), yes ratio %s%% (%s%% required)",
			result.ParticipationPercent.String(), thresholds.ParticipationPercent.String(),
			result.ExecutionRatioPercent.String(), thresholds.ExecutionPercent.String(),
		)
		return o.reject(ctx, p, reason)
	}

	p.Status = storage.ProposalStatus_Passed
	p.Execution.ResetRetries()
	if err := o.store.UpdateProposal(ctx, p); err != nil {
		return err
	}
	_ = o.metrics.Incr(metricsTypes.Metric_Incr_ProposalPassed, typeLabel(p), 1)
	o.logger.Sugar().Infow("Proposal passed",
		zap.String("proposalId", p.Id),
		zap.String("participation", result.ParticipationPercent.String()),
		zap.String("yesRatio", result.ExecutionRatioPercent.String()),
	)

	if err := o.execute(ctx, p); err != nil {
		o.logger.Sugar().Errorw("Execution failed after vote close, left for retry",
			zap.String("proposalId", p.Id),
			zap.Error(err),
		)
	}
	return nil
}

// ExecuteProposal runs the executor of a PASSED proposal. The returned error is the executor
// failure, already recorded on the proposal.
func (o *Orchestrator) ExecuteProposal(ctx context.Context, proposalId string) error {
	p, err := o.store.GetProposal(ctx, proposalId)
	if err != nil {
		return err
	}
	if p.Status != storage.ProposalStatus_Passed {
		o.logger.Sugar().Debugw("Proposal is not passed, skipping execution",
			zap.String("proposalId", p.Id),
			zap.String("status", string(p.Status)),
		)
		return nil
	}
	return o.execute(ctx, p)
}

func (o *Orchestrator) execute(ctx context.Context, p *storage.Proposal) error {
	vault, err := o.store.GetVault(ctx, p.VaultId)
	if err != nil {
		return err
	}
	executor, ok := o.executors[p.Type]
	if !ok {
		return o.reject(ctx, p, fmt.Sprintf("no executor for proposal type %s", p.Type))
	}
	if err := p.Payload.Validate(p.Type); err != nil {
		return o.reject(ctx, p, err.Error())
	}

	started := o.now()
	p.Execution.LastAttempt = &started
	outcome, execErr := executor.Execute(ctx, p, vault)
	_ = o.metrics.Timing(metricsTypes.Metric_Timing_ExecutionDuration, o.now().Sub(started), typeLabel(p))

	if execErr != nil {
		if r, ok := executionErrors.AsRejection(execErr); ok {
			return o.reject(ctx, p, r.Reason)
		}
		return o.recordFailure(ctx, p, execErr)
	}

	switch outcome {
	case Outcome_AwaitingCompletion:
		p.Execution.AwaitingCompletion = true
		p.Execution.LastError = nil
		o.logger.Sugar().Infow("Proposal awaiting completion", zap.String("proposalId", p.Id))
		return o.store.UpdateProposal(ctx, p)
	default:
		return o.markExecuted(ctx, p)
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, p *storage.Proposal, execErr error) error {
	category := executionErrors.Categorize(execErr)
	p.Execution.LastError = executionErrors.ToExecutionError(execErr, o.now())
	_ = o.metrics.Incr(metricsTypes.Metric_Incr_ProposalExecutionFailed, []metricsTypes.MetricsLabel{
		{Name: "type", Value: string(p.Type)},
		{Name: "category", Value: string(category)},
	}, 1)

	if executionErrors.IsStructural(category, p.Execution.RetryCount) {
		o.logger.Sugar().Warnw("Execution failed with a structural error, rejecting",
			zap.String("proposalId", p.Id),
			zap.String("category", string(category)),
			zap.Error(execErr),
		)
		return o.reject(ctx, p, p.Execution.LastError.FriendlyMessage)
	}

	fields := []interface{}{
		zap.String("proposalId", p.Id),
		zap.String("category", string(category)),
		zap.Int("retryCount", p.Execution.RetryCount),
		zap.Error(execErr),
	}
	if executionErrors.IsTransient(category) {
		o.logger.Sugar().Warnw("Proposal execution failed, retrying after backoff", fields...)
	} else {
		o.logger.Sugar().Errorw("Proposal execution failed", fields...)
	}
	if err := o.store.UpdateProposal(ctx, p); err != nil {
		return errors.Join(execErr, err)
	}
	return execErr
}

func (o *Orchestrator) reject(ctx context.Context, p *storage.Proposal, reason string) error {
	p.Status = storage.ProposalStatus_Rejected
	p.Execution.RejectionReason = reason
	p.Execution.AwaitingCompletion = false
	if err := o.store.UpdateProposal(ctx, p); err != nil {
		return err
	}
	_ = o.metrics.Incr(metricsTypes.Metric_Incr_ProposalRejected, typeLabel(p), 1)
	o.logger.Sugar().Infow("Proposal rejected", zap.String("proposalId", p.Id), zap.String("reason", reason))
	o.publish(eventBusTypes.Event_ProposalRejected, p, reason)
	return nil
}

func (o *Orchestrator) markExecuted(ctx context.Context, p *storage.Proposal) error {
	now := o.now()
	p.Status = storage.ProposalStatus_Executed
	p.Execution.ExecutedAt = &now
	p.Execution.LastError = nil
	p.Execution.AwaitingCompletion = false
	if err := o.store.UpdateProposal(ctx, p); err != nil {
		return err
	}
	_ = o.metrics.Incr(metricsTypes.Metric_Incr_ProposalExecuted, typeLabel(p), 1)
	o.logger.Sugar().Infow("Proposal executed", zap.String("proposalId", p.Id), zap.String("type", string(p.Type)))
	o.publish(eventBusTypes.Event_ProposalExecuted, p, "")
	return nil
}

// CompleteTermination finishes a termination proposal once settlement was confirmed.
func (o *Orchestrator) CompleteTermination(ctx context.Context, proposalId string) error {
	p, err := o.store.GetProposal(ctx, proposalId)
	if err != nil {
		return err
	}
	if p.Type != storage.ProposalType_Termination || p.Status != storage.ProposalStatus_Passed || !p.Execution.AwaitingCompletion {
		o.logger.Sugar().Debugw("Ignoring termination completion",
			zap.String("proposalId", p.Id),
			zap.String("status", string(p.Status)),
		)
		return nil
	}
	vault, err := o.store.GetVault(ctx, p.VaultId)
	if err != nil {
		return err
	}
	vault.Status = storage.VaultStatus_Terminated
	if err := o.store.SaveVault(ctx, vault); err != nil {
		return err
	}
	if p.Execution.Termination == nil {
		p.Execution.Termination = &storage.TerminationState{}
	}
	p.Execution.Termination.Phase = storage.TerminationPhase_Completed
	return o.markExecuted(ctx, p)
}
