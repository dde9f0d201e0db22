package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/service/governanceDataService"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/gin-gonic/gin"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GovernanceService is the set of operations exposed over HTTP.
type GovernanceService interface {
	CreateProposal(ctx context.Context, req *governanceDataService.CreateProposalRequest) (*governanceDataService.CreateProposalResponse, error)
	BuildProposalFeeTransaction(ctx context.Context, proposalId string, payerAddress string) (*clientTypes.UnsignedTransaction, error)
	SubmitProposalFee(ctx context.Context, proposalId string, signedTx string) (*storage.Proposal, error)
	CastVote(ctx context.Context, req *governanceDataService.CastVoteRequest) (*storage.Vote, error)
	GetProposalDetail(ctx context.Context, proposalId string) (*governanceDataService.ProposalDetail, error)
	ListVaultProposals(ctx context.Context, vaultId string, statuses ...storage.ProposalStatus) ([]*storage.Proposal, error)
	GetVotingPower(ctx context.Context, vaultId string, address string) (*governanceDataService.VotingPowerResponse, error)
	GetDistributionInfo(ctx context.Context, vaultId string, amount string) (*governanceDataService.DistributionInfo, error)
	GetDistributionStatus(ctx context.Context, proposalId string) (*distribution.StatusReport, error)
	RetryFailedBatches(ctx context.Context, proposalId string) (*governanceDataService.RetryResponse, error)
}

type RpcServerConfig struct {
	GrpcPort int
	HttpPort int
	// AllowedOrigins for CORS, every origin is allowed when empty
	AllowedOrigins []string
}

type RpcServer struct {
	rpcConfig    *RpcServerConfig
	governance   GovernanceService
	metricsSink  *metrics.MetricsSink
	Logger       *zap.Logger
	globalConfig *config.Config

	// ReadyCheck reports whether the process can serve traffic, nil means always ready
	ReadyCheck func(ctx context.Context) error

	health     *health.Server
	grpcServer *grpc.Server
	httpServer *http.Server
}

func NewRpcServer(
	rpcConfig *RpcServerConfig,
	gs GovernanceService,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	cfg *config.Config,
) *RpcServer {
	return &RpcServer{
		rpcConfig:    rpcConfig,
		governance:   gs,
		metricsSink:  ms,
		Logger:       l,
		globalConfig: cfg,
		health:       health.NewServer(),
	}
}

// Handler returns the HTTP API wrapped with CORS.
func (s *RpcServer) Handler() http.Handler {
	if !s.globalConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestMetrics())
	s.registerRoutes(engine)

	options := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}
	if len(s.rpcConfig.AllowedOrigins) > 0 {
		options.AllowedOrigins = s.rpcConfig.AllowedOrigins
	}
	return cors.New(options).Handler(engine)
}

func (s *RpcServer) registerRoutes(engine *gin.Engine) {
	engine.GET("/health", s.HealthCheck)
	engine.GET("/ready", s.ReadyHandler)

	v1 := engine.Group("/v1")
	{
		v1.POST("/proposals", s.CreateProposal)
		v1.GET("/proposals/:proposalId", s.GetProposalDetail)
		v1.POST("/proposals/:proposalId/votes", s.CastVote)
		v1.POST("/proposals/:proposalId/fee/build", s.BuildProposalFee)
		v1.POST("/proposals/:proposalId/fee/submit", s.SubmitProposalFee)
		v1.GET("/proposals/:proposalId/distribution", s.GetDistributionStatus)
		v1.POST("/proposals/:proposalId/distribution/retry", s.RetryFailedBatches)

		v1.GET("/vaults/:vaultId/proposals", s.ListVaultProposals)
		v1.GET("/vaults/:vaultId/voting-power/:address", s.GetVotingPower)
		v1.GET("/vaults/:vaultId/distribution-info", s.GetDistributionInfo)
	}
}

func (s *RpcServer) startGrpc() error {
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.rpcConfig.GrpcPort))
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to listen on grpc port", zap.Int("port", s.rpcConfig.GrpcPort), zap.Error(err))
		return err
	}
	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_zap.UnaryServerInterceptor(s.Logger),
			grpc_recovery.UnaryServerInterceptor(),
		)),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		s.Logger.Sugar().Infow("Starting grpc server", zap.Int("port", s.rpcConfig.GrpcPort))
		if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.Logger.Sugar().Errorw("grpc server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *RpcServer) startHttp() error {
	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.rpcConfig.HttpPort))
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to listen on http port", zap.Int("port", s.rpcConfig.HttpPort), zap.Error(err))
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.Logger.Sugar().Infow("Starting http server", zap.Int("port", s.rpcConfig.HttpPort))
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Sugar().Errorw("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Start serves grpc health checks and the HTTP API until a value arrives on shutdown.
func (s *RpcServer) Start(ctx context.Context, shutdown chan bool) error {
	if err := s.startGrpc(); err != nil {
		return err
	}
	if err := s.startHttp(); err != nil {
		s.grpcServer.Stop()
		return err
	}

	go func() {
		<-shutdown
		s.Logger.Sugar().Info("Shutting down rpc servers")
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.Sugar().Errorw("Failed to shut down http server", zap.Error(err))
		}
		s.grpcServer.GracefulStop()
	}()
	return nil
}
