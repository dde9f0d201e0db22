package cmd

import (
	"net/http"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/chainIndexer"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/extraction"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/keyProvider"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/marketplace"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/transactionService"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/governance"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/postgres"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/postgres/migrations"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	pgStorage "github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage/postgres"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// governanceStack holds the components shared by the long running service and the operator commands.
type governanceStack struct {
	Grm          *gorm.DB
	Store        storage.GovernanceStore
	EventBus     *eventBus.EventBus
	TxService    *transactionService.Client
	Indexer      *chainIndexer.Client
	Engine       *distribution.Engine
	Orchestrator *governance.Orchestrator
}

func openDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = true

	pg, err := postgres.NewPostgres(pgConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup postgres connection")
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gorm instance")
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l)
	if err = migrator.MigrateAll(); err != nil {
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return grm, nil
}

func newGovernanceStack(cfg *config.Config, ms *metrics.MetricsSink, l *zap.Logger) (*governanceStack, error) {
	grm, err := openDatabase(cfg, l)
	if err != nil {
		return nil, err
	}

	store := pgStorageFromGorm(grm, l)
	eb := eventBus.NewEventBus(l)
	hc := &http.Client{Timeout: 30 * time.Second}

	txService := transactionService.NewClient(&cfg.ExternalServicesConfig, hc, l)
	indexer := chainIndexer.NewClient(&cfg.ExternalServicesConfig, hc, l)
	keys := keyProvider.NewKeyProvider(&cfg.KeysConfig, l)

	engine := distribution.NewEngine(store, txService, keys, &cfg.DistributionConfig, cfg.ExternalServicesConfig.Network, ms, l)

	executors := governance.NewExecutors(&governance.Dependencies{
		Store:       store,
		TxService:   txService,
		Keys:        keys,
		Indexer:     indexer,
		Extraction:  extraction.NewClient(&cfg.ExternalServicesConfig, hc, l),
		Marketplace: marketplace.NewClient(&cfg.ExternalServicesConfig, hc, l),
		EventBus:    eb,
		Config:      cfg,
		Logger:      l,
		Now:         time.Now,
	}, engine)

	orchestrator := governance.NewOrchestrator(store, executors, engine, eb, &cfg.GovernanceConfig, ms, l, time.Now)

	return &governanceStack{
		Grm:          grm,
		Store:        store,
		EventBus:     eb,
		TxService:    txService,
		Indexer:      indexer,
		Engine:       engine,
		Orchestrator: orchestrator,
	}, nil
}

func pgStorageFromGorm(grm *gorm.DB, l *zap.Logger) storage.GovernanceStore {
	return pgStorage.NewPostgresGovernanceStore(grm, l)
}
