package cmd

import (
	"context"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/clock"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics/prometheus"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/shutdown"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/version"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/executionQueue"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/governor"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/proposalScheduler"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/rpcServer"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/service/governanceDataService"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/votingPower"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the governor",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		ctx, cancel := context.WithCancel(context.Background())

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "governor"})

		l.Sugar().Infow("governor run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
		)

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		stack, err := newGovernanceStack(cfg, sink, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup governance", zap.Error(err))
		}

		queue := executionQueue.NewExecutionQueue(stack.Orchestrator, l)

		scheduler := proposalScheduler.NewProposalScheduler(stack.Store, queue, clock.New(), sink, l)

		resolver := votingPower.NewResolver(stack.Store, &cfg.VotingPowerConfig, l)

		gds := governanceDataService.NewGovernanceDataService(
			stack.Store,
			resolver,
			stack.Engine,
			stack.Orchestrator,
			queue,
			stack.TxService,
			stack.EventBus,
			sink,
			l,
			cfg,
			time.Now,
		)

		gov := governor.NewGovernor(governor.GovernorConfigFromGlobal(cfg), cfg, scheduler, queue, resolver, stack.EventBus, l)

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			GrpcPort: cfg.RpcConfig.GrpcPort,
			HttpPort: cfg.RpcConfig.HttpPort,
		}, gds, sink, l, cfg)
		rpc.ReadyCheck = gov.Ready

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool)
		if err := rpc.Start(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		if cfg.PrometheusConfig.Enabled {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			pServer.Start(ctx)
		}

		if err := gov.Start(ctx); err != nil {
			l.Sugar().Fatalw("Failed to start governor", zap.Error(err))
		}

		l.Sugar().Info("Started Governor")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, cancel, func() {
			l.Sugar().Info("Shutting down...")
			rpcChannel <- true
			gov.ShutdownChan <- true
			stack.Orchestrator.Stop()
		}, time.Second*5, l)
	},
}
