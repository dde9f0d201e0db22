package proposalScheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/clock"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/metricsTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
)

type Phase string

const (
	Phase_Activation Phase = "activation"
	Phase_Execution  Phase = "execution"
)

// Handler receives due transitions. Implementations must not block for long since they are
// called from timer goroutines.
type Handler interface {
	ActivateProposal(ctx context.Context, proposalId string) error
	CloseVoting(ctx context.Context, proposalId string) error
}

type armedTimer struct {
	timer      clock.Timer
	generation uint64
	at         time.Time
}

type ProposalScheduler struct {
	store   storage.ProposalStore
	handler Handler
	clock   clock.Clock
	metrics *metrics.MetricsSink
	logger  *zap.Logger

	mu         sync.Mutex
	timers     map[string]*armedTimer
	generation uint64
}

func NewProposalScheduler(
	store storage.ProposalStore,
	handler Handler,
	clk clock.Clock,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *ProposalScheduler {
	return &ProposalScheduler{
		store:   store,
		handler: handler,
		clock:   clk,
		metrics: ms,
		logger:  l,
		timers:  make(map[string]*armedTimer),
	}
}

func timerKey(phase Phase, proposalId string) string {
	return fmt.Sprintf("%s:%s", phase, proposalId)
}

// Schedule arms the timer matching the proposal's current status. UPCOMING proposals get an
// activation timer, ACTIVE ones an execution timer. Other statuses clear any timers.
func (ps *ProposalScheduler) Schedule(proposal *storage.Proposal) error {
	switch proposal.Status {
	case storage.ProposalStatus_Upcoming:
		if proposal.StartDate == nil {
			return fmt.Errorf("upcoming proposal %s has no start date", proposal.Id)
		}
		ps.arm(Phase_Activation, proposal.Id, *proposal.StartDate)
	case storage.ProposalStatus_Active:
		if proposal.EndDate == nil {
			return fmt.Errorf("active proposal %s has no end date", proposal.Id)
		}
		ps.disarm(Phase_Activation, proposal.Id)
		ps.arm(Phase_Execution, proposal.Id, *proposal.EndDate)
	default:
		ps.Cancel(proposal.Id)
	}
	return nil
}

// arm replaces any timer already armed for the key. Due times in the past fire immediately.
func (ps *ProposalScheduler) arm(phase Phase, proposalId string, at time.Time) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	key := timerKey(phase, proposalId)
	if existing, ok := ps.timers[key]; ok {
		existing.timer.Stop()
	}
	ps.generation++
	generation := ps.generation
	delay := at.Sub(ps.clock.Now())
	if delay < 0 {
		delay = 0
	}
	ps.timers[key] = &armedTimer{
		timer: ps.clock.AfterFunc(delay, func() {
			ps.fire(phase, proposalId, generation)
		}),
		generation: generation,
		at:         at,
	}
	ps.logger.Sugar().Debugw("Armed proposal timer",
		zap.String("proposalId", proposalId),
		zap.String("phase", string(phase)),
		zap.Duration("delay", delay),
	)
	_ = ps.metrics.Gauge(metricsTypes.Metric_Gauge_ArmedTimers, float64(len(ps.timers)), nil)
}

func (ps *ProposalScheduler) disarm(phase Phase, proposalId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	key := timerKey(phase, proposalId)
	if existing, ok := ps.timers[key]; ok {
		existing.timer.Stop()
		delete(ps.timers, key)
	}
}

// Cancel stops every timer armed for the proposal.
func (ps *ProposalScheduler) Cancel(proposalId string) {
	ps.disarm(Phase_Activation, proposalId)
	ps.disarm(Phase_Execution, proposalId)
}

func (ps *ProposalScheduler) ArmedCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.timers)
}

// IsArmed reports whether a timer is armed for the proposal and phase.
func (ps *ProposalScheduler) IsArmed(phase Phase, proposalId string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	_, ok := ps.timers[timerKey(phase, proposalId)]
	return ok
}

func (ps *ProposalScheduler) fire(phase Phase, proposalId string, generation uint64) {
	ps.mu.Lock()
	key := timerKey(phase, proposalId)
	current, ok := ps.timers[key]
	if !ok || current.generation != generation {
		// replaced or cancelled after this timer was already running
		ps.mu.Unlock()
		return
	}
	delete(ps.timers, key)
	ps.mu.Unlock()

	ctx := context.Background()
	proposal, err := ps.store.GetProposal(ctx, proposalId)
	if err != nil {
		ps.logger.Sugar().Errorw("Failed to load proposal for timer",
			zap.String("proposalId", proposalId),
			zap.String("phase", string(phase)),
			zap.Error(err),
		)
		return
	}

	switch phase {
	case Phase_Activation:
		if proposal.Status != storage.ProposalStatus_Upcoming {
			ps.logger.Sugar().Debugw("Proposal is no longer upcoming, skipping activation",
				zap.String("proposalId", proposalId),
				zap.String("status", string(proposal.Status)),
			)
			return
		}
		err = ps.handler.ActivateProposal(ctx, proposalId)
	case Phase_Execution:
		if proposal.Status != storage.ProposalStatus_Active {
			ps.logger.Sugar().Debugw("Proposal is no longer active, skipping vote close",
				zap.String("proposalId", proposalId),
				zap.String("status", string(proposal.Status)),
			)
			return
		}
		err = ps.handler.CloseVoting(ctx, proposalId)
	}
	if err != nil {
		ps.logger.Sugar().Errorw("Proposal timer handler failed",
			zap.String("proposalId", proposalId),
			zap.String("phase", string(phase)),
			zap.Error(err),
		)
	}
}

// Recover re-arms timers for every UPCOMING and ACTIVE proposal. Overdue activations fire
// immediately. It returns the number of proposals scheduled.
func (ps *ProposalScheduler) Recover(ctx context.Context) (int, error) {
	proposals, err := ps.store.ListProposalsByStatus(ctx, storage.ProposalStatus_Upcoming, storage.ProposalStatus_Active)
	if err != nil {
		return 0, err
	}
	var errs []error
	scheduled := 0
	for _, p := range proposals {
		if err := ps.Schedule(p); err != nil {
			errs = append(errs, err)
			continue
		}
		scheduled++
	}
	ps.logger.Sugar().Infow("Recovered proposal timers",
		zap.Int("proposals", len(proposals)),
		zap.Int("scheduled", scheduled),
	)
	return scheduled, errors.Join(errs...)
}

// FallbackSweep closes voting on ACTIVE proposals past their end date and activates UPCOMING
// proposals past their start date, in case a timer never fired.
func (ps *ProposalScheduler) FallbackSweep(ctx context.Context) (int, error) {
	proposals, err := ps.store.ListProposalsByStatus(ctx, storage.ProposalStatus_Upcoming, storage.ProposalStatus_Active)
	if err != nil {
		return 0, err
	}
	now := ps.clock.Now()
	var errs []error
	handled := 0
	for _, p := range proposals {
		switch {
		case p.Status == storage.ProposalStatus_Active && p.EndDate != nil && !p.EndDate.After(now):
			ps.disarm(Phase_Execution, p.Id)
			ps.logger.Sugar().Warnw("Closing voting for overdue proposal", zap.String("proposalId", p.Id))
			if err := ps.handler.CloseVoting(ctx, p.Id); err != nil {
				errs = append(errs, err)
				continue
			}
			handled++
		case p.Status == storage.ProposalStatus_Upcoming && p.StartDate != nil && !p.StartDate.After(now):
			ps.disarm(Phase_Activation, p.Id)
			ps.logger.Sugar().Warnw("Activating overdue proposal", zap.String("proposalId", p.Id))
			if err := ps.handler.ActivateProposal(ctx, p.Id); err != nil {
				errs = append(errs, err)
				continue
			}
			handled++
		}
	}
	return handled, errors.Join(errs...)
}

type HealthReport struct {
	Persisted int
	Armed     int
	Rearmed   bool
}

// HealthCheck compares persisted UPCOMING/ACTIVE proposals with armed timers and re-arms
// everything on mismatch.
func (ps *ProposalScheduler) HealthCheck(ctx context.Context) (*HealthReport, error) {
	proposals, err := ps.store.ListProposalsByStatus(ctx, storage.ProposalStatus_Upcoming, storage.ProposalStatus_Active)
	if err != nil {
		return nil, err
	}
	report := &HealthReport{Persisted: len(proposals), Armed: ps.ArmedCount()}
	if report.Persisted == report.Armed {
		return report, nil
	}
	ps.logger.Sugar().Warnw("Timer count does not match persisted proposals, re-arming",
		zap.Int("persisted", report.Persisted),
		zap.Int("armed", report.Armed),
	)
	ps.pruneTimers(proposals)
	if _, err := ps.Recover(ctx); err != nil {
		return report, err
	}
	report.Rearmed = true
	return report, nil
}

// pruneTimers drops timers for proposals that are no longer UPCOMING or ACTIVE.
func (ps *ProposalScheduler) pruneTimers(live []*storage.Proposal) {
	keep := make(map[string]bool, len(live))
	for _, p := range live {
		keep[timerKey(Phase_Activation, p.Id)] = p.Status == storage.ProposalStatus_Upcoming
		keep[timerKey(Phase_Execution, p.Id)] = p.Status == storage.ProposalStatus_Active
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for key, t := range ps.timers {
		if !keep[key] {
			t.timer.Stop()
			delete(ps.timers, key)
		}
	}
}
