package governor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionQueue"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/proposalScheduler"
	"go.uber.org/zap"
)

var ErrNotRecovered = errors.New("scheduler has not recovered persisted proposals yet")

type GovernorConfig struct {
	RetrySweepInterval    time.Duration
	FallbackSweepInterval time.Duration
	HealthCheckInterval   time.Duration
}

func GovernorConfigFromGlobal(cfg *config.Config) *GovernorConfig {
	return &GovernorConfig{
		RetrySweepInterval:    cfg.GovernanceConfig.RetrySweepInterval,
		FallbackSweepInterval: cfg.SchedulerConfig.FallbackSweepInterval,
		HealthCheckInterval:   cfg.SchedulerConfig.HealthCheckInterval,
	}
}

type VotingPowerCache interface {
	Start(ctx context.Context)
	Invalidate(vaultId string)
}

// Governor owns the long running parts of the service: timer recovery, the execution queue,
// event listeners and the periodic sweeps.
type Governor struct {
	Logger       *zap.Logger
	Config       *GovernorConfig
	GlobalConfig *config.Config
	Scheduler    *proposalScheduler.ProposalScheduler
	Queue        *executionQueue.ExecutionQueue
	VotingPower  VotingPowerCache
	EventBus     eventBusTypes.IEventBus
	ShutdownChan chan bool

	recovered      *atomic.Bool
	shouldShutdown *atomic.Bool
}

func NewGovernor(
	cfg *GovernorConfig,
	gCfg *config.Config,
	scheduler *proposalScheduler.ProposalScheduler,
	queue *executionQueue.ExecutionQueue,
	vp VotingPowerCache,
	eb eventBusTypes.IEventBus,
	l *zap.Logger,
) *Governor {
	return &Governor{
		Logger:         l,
		Config:         cfg,
		GlobalConfig:   gCfg,
		Scheduler:      scheduler,
		Queue:          queue,
		VotingPower:    vp,
		EventBus:       eb,
		ShutdownChan:   make(chan bool),
		recovered:      &atomic.Bool{},
		shouldShutdown: &atomic.Bool{},
	}
}

// Ready reports an error until the scheduler has re-armed the persisted proposals.
func (g *Governor) Ready(_ context.Context) error {
	if g.shouldShutdown.Load() {
		return errors.New("governor is shutting down")
	}
	if !g.recovered.Load() {
		return ErrNotRecovered
	}
	return nil
}

func (g *Governor) Start(ctx context.Context) error {
	g.Logger.Info("Starting governor")

	go func() {
		for range g.ShutdownChan {
			g.Logger.Sugar().Infow("Received shutdown signal")
			if g.shouldShutdown.CompareAndSwap(false, true) {
				g.Queue.Close()
			}
		}
	}()

	go g.Queue.Process(ctx)
	go g.Scheduler.ListenForEvents(ctx, g.EventBus)
	go g.listenForEvents(ctx)
	if g.VotingPower != nil {
		go g.VotingPower.Start(ctx)
	}

	armed, err := g.Scheduler.Recover(ctx)
	if err != nil {
		g.Logger.Sugar().Errorw("Failed to recover proposal timers", zap.Error(err))
		return err
	}
	g.recovered.Store(true)
	g.Logger.Sugar().Infow("Recovered proposal timers", zap.Int("armed", armed))

	go g.runTickers(ctx)
	return nil
}

func (g *Governor) listenForEvents(ctx context.Context) {
	consumer := &eventBusTypes.Consumer{
		Id:      "governor",
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 100),
		Events: []string{
			eventBusTypes.Event_ProposalExecuted,
			eventBusTypes.Event_ProposalRejected,
			eventBusTypes.Event_ProposalTerminationComplete,
		},
	}
	g.EventBus.Subscribe(consumer)
	defer g.EventBus.Unsubscribe(consumer)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-consumer.Channel:
			g.handleEvent(event)
		}
	}
}

func (g *Governor) handleEvent(event *eventBusTypes.Event) {
	data, ok := event.Data.(*eventBusTypes.ProposalEventData)
	if !ok {
		return
	}
	switch event.Name {
	case eventBusTypes.Event_ProposalTerminationComplete:
		g.Queue.Enqueue(&executionQueue.ExecutionMessage{
			Data: executionQueue.ExecutionData{
				Type:       executionQueue.MessageType_CompleteTermination,
				ProposalId: data.ProposalId,
			},
		})
	case eventBusTypes.Event_ProposalExecuted, eventBusTypes.Event_ProposalRejected:
		// balances may have moved, drop cached voting power for the vault
		if g.VotingPower != nil && data.VaultId != "" {
			g.VotingPower.Invalidate(data.VaultId)
		}
	}
}

func (g *Governor) runTickers(ctx context.Context) {
	retry := time.NewTicker(g.Config.RetrySweepInterval)
	fallback := time.NewTicker(g.Config.FallbackSweepInterval)
	health := time.NewTicker(g.Config.HealthCheckInterval)
	defer retry.Stop()
	defer fallback.Stop()
	defer health.Stop()

	for {
		if g.shouldShutdown.Load() {
			g.Logger.Sugar().Infow("Stopping governor tickers")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-retry.C:
			g.RetrySweep()
		case <-fallback.C:
			g.FallbackSweep(ctx)
		case <-health.C:
			g.HealthCheck(ctx)
		}
	}
}

// RetrySweep queues a retry pass over failed executions.
func (g *Governor) RetrySweep() {
	g.Queue.Enqueue(&executionQueue.ExecutionMessage{
		Data: executionQueue.ExecutionData{Type: executionQueue.MessageType_RetrySweep},
	})
}

func (g *Governor) FallbackSweep(ctx context.Context) {
	n, err := g.Scheduler.FallbackSweep(ctx)
	if err != nil {
		g.Logger.Sugar().Errorw("Fallback sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		g.Logger.Sugar().Infow("Fallback sweep found overdue proposals", zap.Int("count", n))
	}
}

func (g *Governor) HealthCheck(ctx context.Context) {
	report, err := g.Scheduler.HealthCheck(ctx)
	if err != nil {
		g.Logger.Sugar().Errorw("Scheduler health check failed", zap.Error(err))
		return
	}
	g.Logger.Sugar().Infow("Scheduler health check",
		zap.Int("persisted", report.Persisted),
		zap.Int("armed", report.Armed),
		zap.Bool("rearmed", report.Rearmed),
	)
}
