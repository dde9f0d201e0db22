package governanceDataService

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionQueue"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/governance"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/voteTally"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/votingPower"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type VotingPowerResolver interface {
	GetVotingPower(ctx context.Context, vaultId string, address string, action votingPower.Action) (*votingPower.VotingPower, error)
}

type DistributionPlanner interface {
	Preview(vault *storage.Vault, snapshot *storage.Snapshot, amount string) (*distribution.Plan, error)
	EstimatedBatches(plan *distribution.Plan) int
}

type Tallier interface {
	Tally(ctx context.Context, p *storage.Proposal) (*voteTally.Result, error)
}

type ExecutionQueue interface {
	EnqueueAndWait(ctx context.Context, data executionQueue.ExecutionData) (*executionQueue.ExecutionResponseData, error)
}

type GovernanceDataService struct {
	store        storage.GovernanceStore
	votingPower  VotingPowerResolver
	planner      DistributionPlanner
	tallier      Tallier
	queue        ExecutionQueue
	txService    clientTypes.TransactionService
	eventBus     eventBusTypes.IEventBus
	metrics      *metrics.MetricsSink
	logger       *zap.Logger
	globalConfig *config.Config
	now          func() time.Time
}

func NewGovernanceDataService(
	store storage.GovernanceStore,
	vp VotingPowerResolver,
	planner DistributionPlanner,
	tallier Tallier,
	queue ExecutionQueue,
	txService clientTypes.TransactionService,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
	logger *zap.Logger,
	globalConfig *config.Config,
	now func() time.Time,
) *GovernanceDataService {
	if now == nil {
		now = time.Now
	}
	return &GovernanceDataService{
		store:        store,
		votingPower:  vp,
		planner:      planner,
		tallier:      tallier,
		queue:        queue,
		txService:    txService,
		eventBus:     eb,
		metrics:      ms,
		logger:       logger,
		globalConfig: globalConfig,
		now:          now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func (gds *GovernanceDataService) publish(name string, p *storage.Proposal) {
	if gds.eventBus == nil {
		return
	}
	gds.eventBus.PublishProposalEvent(name, &eventBusTypes.ProposalEventData{
		ProposalId: p.Id,
		VaultId:    p.VaultId,
		Type:       string(p.Type),
		Status:     string(p.Status),
	})
}

func (gds *GovernanceDataService) latestSnapshot(ctx context.Context, vaultId string) (*storage.Snapshot, error) {
	snapshot, err := gds.store.GetLatestSnapshot(ctx, vaultId)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	return snapshot, err
}

func (gds *GovernanceDataService) proposalFee(t storage.ProposalType) uint64 {
	return gds.globalConfig.ProposalFee(string(t))
}

// openVoting sets the voting window. A start at or before now opens voting right away and pins
// the snapshot, a future start leaves the proposal UPCOMING until activation.
func (gds *GovernanceDataService) openVoting(p *storage.Proposal, window *storage.VotingWindow, snapshot *storage.Snapshot) {
	now := gds.now()
	start := now
	if window.StartDate != nil && window.StartDate.After(now) {
		start = *window.StartDate
	}
	end := start.Add(window.VotingPeriod)
	p.StartDate = &start
	p.EndDate = &end
	p.Execution.RequestedWindow = nil

	if start.After(now) {
		p.Status = storage.ProposalStatus_Upcoming
		return
	}
	p.Status = storage.ProposalStatus_Active
	p.SnapshotId = snapshot.Id
}

func validateCreate(req *CreateProposalRequest) error {
	switch {
	case req.VaultId == "":
		return invalid("vaultId is required")
	case req.CreatorAddress == "":
		return invalid("creatorAddress is required")
	case strings.TrimSpace(req.Title) == "":
		return invalid("title is required")
	case req.VotingPeriod <= 0:
		return invalid("votingPeriod must be positive")
	}
	if err := req.Payload.Validate(req.Type); err != nil {
		return invalid("%s", err.Error())
	}
	return nil
}

// CreateProposal stores a new proposal after checking the creator holds enough of the snapshot
// supply. Proposal types with a creation fee start UNPAID and only open once the fee is submitted.
func (gds *GovernanceDataService) CreateProposal(ctx context.Context, req *CreateProposalRequest) (*CreateProposalResponse, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	vault, err := gds.store.GetVault(ctx, req.VaultId)
	if err != nil {
		return nil, err
	}
	if vault.Status != storage.VaultStatus_Governance {
		return nil, fmt.Errorf("%w: vault %s is %s", ErrVaultNotGoverned, vault.Id, vault.Status)
	}
	snapshot, err := gds.latestSnapshot(ctx, vault.Id)
	if err != nil {
		return nil, err
	}

	vp, err := gds.votingPower.GetVotingPower(ctx, vault.Id, req.CreatorAddress, votingPower.Action_CreateProposal)
	if err != nil {
		return nil, err
	}
	if !vp.Eligible {
		return nil, fmt.Errorf("%w to create proposals: %s", ErrNotEligible, vp.Reason)
	}

	warnings := make([]string, 0)
	if req.Type == storage.ProposalType_Distribution {
		plan, err := gds.planner.Preview(vault, snapshot, req.Payload.Distribution.Amount)
		if err != nil {
			return nil, invalid("%s", err.Error())
		}
		warnings = append(warnings, plan.Warnings...)
	}

	now := gds.now()
	p := &storage.Proposal{
		Id:          uuid.NewString(),
		VaultId:     vault.Id,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        req.Type,
		CreatorId:   req.CreatorId,
		Payload:     req.Payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.Execution.Warnings = warnings
	window := &storage.VotingWindow{StartDate: req.StartDate, VotingPeriod: req.VotingPeriod}

	fee := gds.proposalFee(req.Type)
	if fee > 0 {
		p.Status = storage.ProposalStatus_Unpaid
		p.Execution.RequestedWindow = window
	} else {
		gds.openVoting(p, window, snapshot)
	}

	if err := gds.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}
	gds.logger.Sugar().Infow("Created proposal",
		zap.String("proposalId", p.Id),
		zap.String("vaultId", p.VaultId),
		zap.String("type", string(p.Type)),
		zap.String("status", string(p.Status)),
		zap.Uint64("fee", fee),
	)
	if p.Status != storage.ProposalStatus_Unpaid {
		gds.publish(eventBusTypes.Event_ProposalCreated, p)
	}
	return &CreateProposalResponse{Proposal: p, Fee: fee, Warnings: warnings}, nil
}

func (gds *GovernanceDataService) unpaidProposal(ctx context.Context, proposalId string) (*storage.Proposal, uint64, error) {
	p, err := gds.store.GetProposal(ctx, proposalId)
	if err != nil {
		return nil, 0, err
	}
	fee := gds.proposalFee(p.Type)
	if p.Status != storage.ProposalStatus_Unpaid || fee == 0 {
		return nil, 0, ErrFeeNotRequired
	}
	return p, fee, nil
}

func (gds *GovernanceDataService) discardUnpaid(ctx context.Context, p *storage.Proposal, cause error) error {
	paid, err := gds.feePaid(ctx, p.Id)
	if err != nil {
		return errors.Join(cause, err)
	}
	if paid {
		gds.logger.Sugar().Warnw("Fee payment failed but a fee was already paid, keeping proposal",
			zap.String("proposalId", p.Id),
			zap.Error(cause),
		)
		return cause
	}
	gds.logger.Sugar().Warnw("Fee payment failed, deleting unpaid proposal",
		zap.String("proposalId", p.Id),
		zap.Error(cause),
	)
	if err := gds.store.DeleteProposal(ctx, p.Id); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (gds *GovernanceDataService) feePaid(ctx context.Context, proposalId string) (bool, error) {
	txs, err := gds.store.ListProposalTransactions(ctx, proposalId)
	if err != nil {
		return false, err
	}
	for _, tx := range txs {
		if tx.Type == storage.TransactionType_ProposalFee {
			return true, nil
		}
	}
	return false, nil
}

// recordFee stores the fee transaction. The payment is already on chain, so a failure is only
// logged.
func (gds *GovernanceDataService) recordFee(ctx context.Context, p *storage.Proposal, hash string) {
	if err := gds.store.CreateTransaction(ctx, &storage.Transaction{
		Id:         uuid.NewString(),
		VaultId:    p.VaultId,
		ProposalId: p.Id,
		Type:       storage.TransactionType_ProposalFee,
		TxHash:     hash,
		CreatedAt:  gds.now(),
	}); err != nil {
		gds.logger.Sugar().Warnw("Failed to record proposal fee transaction",
			zap.String("proposalId", p.Id),
			zap.String("txHash", hash),
			zap.Error(err),
		)
	}
}

// BuildProposalFeeTransaction builds the fee payment for the payer to sign.
func (gds *GovernanceDataService) BuildProposalFeeTransaction(ctx context.Context, proposalId string, payerAddress string) (*clientTypes.UnsignedTransaction, error) {
	if payerAddress == "" {
		return nil, invalid("payerAddress is required")
	}
	p, fee, err := gds.unpaidProposal(ctx, proposalId)
	if err != nil {
		return nil, err
	}
	tx, err := gds.txService.Build(ctx, &clientTypes.BuildTransactionRequest{
		Outputs: []clientTypes.TxOutput{
			{Address: gds.globalConfig.GovernanceConfig.FeeAddress, Amount: fmt.Sprintf("%d", fee)},
		},
		ChangeAddress: payerAddress,
		Signers:       []string{payerAddress},
		Network:       gds.globalConfig.ExternalServicesConfig.Network,
		Metadata: map[string]string{
			"proposalId": p.Id,
			"type":       string(storage.TransactionType_ProposalFee),
		},
	})
	if err != nil {
		return nil, gds.discardUnpaid(ctx, p, fmt.Errorf("failed to build fee transaction: %w", err))
	}
	return tx, nil
}

// SubmitProposalFee submits the signed fee payment and opens the proposal.
func (gds *GovernanceDataService) SubmitProposalFee(ctx context.Context, proposalId string, signedTx string) (*storage.Proposal, error) {
	if signedTx == "" {
		return nil, invalid("signedTx is required")
	}
	p, fee, err := gds.unpaidProposal(ctx, proposalId)
	if err != nil {
		return nil, err
	}
	snapshot, err := gds.latestSnapshot(ctx, p.VaultId)
	if err != nil {
		return nil, err
	}
	hash, err := gds.txService.Submit(ctx, signedTx)
	if err != nil {
		return nil, gds.discardUnpaid(ctx, p, fmt.Errorf("failed to submit fee transaction: %w", err))
	}

	window := p.Execution.RequestedWindow
	if window == nil {
		window = &storage.VotingWindow{VotingPeriod: 24 * time.Hour}
	}
	gds.openVoting(p, window, snapshot)
	p.UpdatedAt = gds.now()
	if err := gds.store.UpdateProposal(ctx, p); err != nil {
		gds.recordFee(ctx, p, hash)
		return nil, fmt.Errorf("fee %s was paid but the proposal could not be opened: %w", hash, err)
	}
	gds.recordFee(ctx, p, hash)

	gds.logger.Sugar().Infow("Proposal fee paid",
		zap.String("proposalId", p.Id),
		zap.String("txHash", hash),
		zap.Uint64("fee", fee),
		zap.String("status", string(p.Status)),
	)
	gds.publish(eventBusTypes.Event_ProposalCreated, p)
	return p, nil
}

// CastVote records a vote weighted by the voter's balance in the proposal's snapshot.
func (gds *GovernanceDataService) CastVote(ctx context.Context, req *CastVoteRequest) (*storage.Vote, error) {
	if req.VoterAddress == "" {
		return nil, invalid("voterAddress is required")
	}
	switch req.Choice {
	case storage.VoteChoice_Yes, storage.VoteChoice_No, storage.VoteChoice_Abstain:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidChoice, req.Choice)
	}

	p, err := gds.store.GetProposal(ctx, req.ProposalId)
	if err != nil {
		return nil, err
	}
	now := gds.now()
	if p.Status != storage.ProposalStatus_Active ||
		(p.StartDate != nil && now.Before(*p.StartDate)) ||
		(p.EndDate != nil && !now.Before(*p.EndDate)) {
		return nil, ErrProposalNotActive
	}

	vault, err := gds.store.GetVault(ctx, p.VaultId)
	if err != nil {
		return nil, err
	}
	snapshot, err := gds.store.GetSnapshot(ctx, p.SnapshotId)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", p.SnapshotId, err)
	}
	vp, err := votingPower.Resolve(vault, snapshot, req.VoterAddress, votingPower.Action_Vote)
	if err != nil {
		return nil, err
	}
	if !vp.Eligible {
		return nil, fmt.Errorf("%w to vote: %s", ErrNotEligible, vp.Reason)
	}

	vote := &storage.Vote{
		Id:           uuid.NewString(),
		ProposalId:   p.Id,
		VoterId:      req.VoterId,
		VoterAddress: req.VoterAddress,
		VoteWeight:   vp.Power.String(),
		Choice:       req.Choice,
		CreatedAt:    now,
	}
	if err := gds.store.CreateVote(ctx, vote); err != nil {
		return nil, err
	}
	_ = gds.metrics.Incr(metricsTypes.Metric_Incr_VoteCast, []metricsTypes.MetricsLabel{
		{Name: "choice", Value: string(req.Choice)},
	}, 1)
	gds.logger.Sugar().Infow("Vote cast",
		zap.String("proposalId", p.Id),
		zap.String("voterAddress", req.VoterAddress),
		zap.String("choice", string(req.Choice)),
		zap.String("weight", vote.VoteWeight),
	)
	return vote, nil
}

func summarize(result *voteTally.Result) *TallySummary {
	choice := func(c voteTally.ChoiceResult) VoteSummary {
		return VoteSummary{Total: c.Total.String(), Percent: c.Percent.String()}
	}
	return &TallySummary{
		Yes:                  choice(result.Yes),
		No:                   choice(result.No),
		Abstain:              choice(result.Abstain),
		TotalPower:           result.Denominator.String(),
		ParticipationPercent: result.ParticipationPercent.String(),
		YesRatioPercent:      result.ExecutionRatioPercent.String(),
		Passing:              result.Passed,
	}
}

// GetProposalDetail returns the proposal with its live tally and, for distributions, batch progress.
func (gds *GovernanceDataService) GetProposalDetail(ctx context.Context, proposalId string) (*ProposalDetail, error) {
	p, err := gds.store.GetProposal(ctx, proposalId)
	if err != nil {
		return nil, err
	}
	votes, err := gds.store.ListVotes(ctx, p.Id)
	if err != nil {
		return nil, err
	}
	detail := &ProposalDetail{
		Proposal:  p,
		VoteCount: len(votes),
	}
	if p.SnapshotId != "" {
		result, err := gds.tallier.Tally(ctx, p)
		if err != nil {
			return nil, err
		}
		detail.Tally = summarize(result)
	}
	if p.Execution.LastError != nil {
		detail.LastError = p.Execution.LastError.FriendlyMessage
	}
	if p.Type == storage.ProposalType_Distribution {
		detail.Distribution = distribution.Report(p)
	}
	return detail, nil
}

// ListVaultProposals returns the vault's proposals newest first, optionally filtered by status.
func (gds *GovernanceDataService) ListVaultProposals(ctx context.Context, vaultId string, statuses ...storage.ProposalStatus) ([]*storage.Proposal, error) {
	proposals, err := gds.store.ListVaultProposals(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	if len(statuses) > 0 {
		proposals = lo.Filter(proposals, func(p *storage.Proposal, _ int) bool {
			return lo.Contains(statuses, p.Status)
		})
	}
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
	return proposals, nil
}

func (gds *GovernanceDataService) GetVotingPower(ctx context.Context, vaultId string, address string) (*VotingPowerResponse, error) {
	vote, err := gds.votingPower.GetVotingPower(ctx, vaultId, address, votingPower.Action_Vote)
	if err != nil {
		return nil, err
	}
	create, err := gds.votingPower.GetVotingPower(ctx, vaultId, address, votingPower.Action_CreateProposal)
	if err != nil {
		return nil, err
	}
	res := &VotingPowerResponse{
		VaultId:      vaultId,
		Address:      address,
		SnapshotId:   vote.SnapshotId,
		Power:        vote.Power.String(),
		TotalPower:   vote.TotalPower.String(),
		SharePercent: vote.SharePercent.String(),
		CanVote:      vote.Eligible,
		CanPropose:   create.Eligible,
	}
	if !vote.Eligible {
		res.Reason = vote.Reason
	} else if !create.Eligible {
		res.Reason = create.Reason
	}
	return res, nil
}

func toShareInfo(shares []distribution.Share) []ShareInfo {
	return lo.Map(shares, func(s distribution.Share, _ int) ShareInfo {
		return ShareInfo{Address: s.Address, Balance: s.Balance.String(), Amount: s.Amount.String()}
	})
}

// GetDistributionInfo previews how amount would be split across the vault's latest snapshot.
func (gds *GovernanceDataService) GetDistributionInfo(ctx context.Context, vaultId string, amount string) (*DistributionInfo, error) {
	vault, err := gds.store.GetVault(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	snapshot, err := gds.latestSnapshot(ctx, vault.Id)
	if err != nil {
		return nil, err
	}
	plan, err := gds.planner.Preview(vault, snapshot, amount)
	if err != nil {
		return nil, invalid("%s", err.Error())
	}
	return &DistributionInfo{
		VaultId:          vault.Id,
		SnapshotId:       snapshot.Id,
		TotalAmount:      plan.TotalAmount.String(),
		TotalSupply:      plan.TotalSupply.String(),
		Distributed:      plan.Distributed.String(),
		Remainder:        plan.Remainder.String(),
		RecipientCount:   len(plan.Shares),
		ExcludedCount:    len(plan.Excluded),
		EstimatedBatches: gds.planner.EstimatedBatches(plan),
		Shares:           toShareInfo(plan.Shares),
		Excluded:         toShareInfo(plan.Excluded),
		Warnings:         plan.Warnings,
	}, nil
}

func (gds *GovernanceDataService) GetDistributionStatus(ctx context.Context, proposalId string) (*distribution.StatusReport, error) {
	p, err := gds.store.GetProposal(ctx, proposalId)
	if err != nil {
		return nil, err
	}
	if p.Type != storage.ProposalType_Distribution {
		return nil, governance.ErrNotDistribution
	}
	return distribution.Report(p), nil
}

// RetryFailedBatches reruns the failed batches of a distribution on the execution queue.
func (gds *GovernanceDataService) RetryFailedBatches(ctx context.Context, proposalId string) (*RetryResponse, error) {
	res, err := gds.queue.EnqueueAndWait(ctx, executionQueue.ExecutionData{
		Type:       executionQueue.MessageType_RetryBatches,
		ProposalId: proposalId,
	})
	if err != nil {
		return nil, err
	}
	return &RetryResponse{Retried: res.Retried, Report: res.Report}, nil
}
