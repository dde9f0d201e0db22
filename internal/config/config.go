package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "GOVERNOR"

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type RpcConfig struct {
	GrpcPort int
	HttpPort int
}

type GovernanceConfig struct {
	RetryBaseDelay     time.Duration
	MaxRetries         int
	RetrySweepInterval time.Duration
	FeeAddress         string
	// ProposalFees maps a proposal type to its creation fee in base currency units
	ProposalFees map[string]uint64
}

type SchedulerConfig struct {
	FallbackSweepInterval time.Duration
	HealthCheckInterval   time.Duration
}

type VotingPowerConfig struct {
	CacheTTL         time.Duration
	NegativeCacheTTL time.Duration
}

type DistributionConfig struct {
	BatchSize             int
	MinimumTransferAmount uint64
	InterBatchDelay       time.Duration
	MaxBatchRetries       int
	ConfirmationTimeout   time.Duration
}

type ExternalServicesConfig struct {
	TransactionServiceUrl string
	ChainIndexerUrl       string
	MarketplaceUrl        string
	ExtractionServiceUrl  string
	ApiKey                string
	Network               string
}

type KeysConfig struct {
	AdminKey string
	// VaultKeys maps a vault id to the hex encoded key of its custody wallet
	VaultKeys map[string]string
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug                  bool
	BurnAddress            string
	DatabaseConfig         DatabaseConfig
	RpcConfig              RpcConfig
	GovernanceConfig       GovernanceConfig
	SchedulerConfig        SchedulerConfig
	VotingPowerConfig      VotingPowerConfig
	DistributionConfig     DistributionConfig
	ExternalServicesConfig ExternalServicesConfig
	KeysConfig             KeysConfig
	DataDogConfig          DataDogConfig
	PrometheusConfig       PrometheusConfig
}

func StringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

var (
	Debug       = "debug"
	BurnAddress = "burn-address"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	RpcGrpcPort = "rpc.grpc-port"
	RpcHttpPort = "rpc.http-port"

	GovernanceRetryBaseDelay     = "governance.retry-base-delay"
	GovernanceMaxRetries         = "governance.max-retries"
	GovernanceRetrySweepInterval = "governance.retry-sweep-interval"
	GovernanceFeeAddress         = "governance.fee-address"
	GovernanceProposalFees       = "governance.proposal-fees"

	SchedulerFallbackSweepInterval = "scheduler.fallback-sweep-interval"
	SchedulerHealthCheckInterval   = "scheduler.health-check-interval"

	VotingPowerCacheTTL         = "voting-power.cache-ttl"
	VotingPowerNegativeCacheTTL = "voting-power.negative-cache-ttl"

	DistributionBatchSize             = "distribution.batch-size"
	DistributionMinimumTransferAmount = "distribution.minimum-transfer-amount"
	DistributionInterBatchDelay       = "distribution.inter-batch-delay"
	DistributionMaxBatchRetries       = "distribution.max-batch-retries"
	DistributionConfirmationTimeout   = "distribution.confirmation-timeout"

	ExternalTransactionServiceUrl = "external.transaction-service-url"
	ExternalChainIndexerUrl       = "external.chain-indexer-url"
	ExternalMarketplaceUrl        = "external.marketplace-url"
	ExternalExtractionServiceUrl  = "external.extraction-service-url"
	ExternalApiKey                = "external.api-key"
	ExternalNetwork               = "external.network"

	KeysAdminKey  = "keys.admin-key"
	KeysVaultKeys = "keys.vault-keys"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	SnapshotVaultId        = "vault-id"
	DistributionProposalId = "proposal-id"
	ExportOutputFile       = "output"
)

func NewConfig() *Config {
	return &Config{
		Debug:       viper.GetBool(normalizeFlagName(Debug)),
		BurnAddress: viper.GetString(normalizeFlagName(BurnAddress)),

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		RpcConfig: RpcConfig{
			GrpcPort: viper.GetInt(normalizeFlagName(RpcGrpcPort)),
			HttpPort: viper.GetInt(normalizeFlagName(RpcHttpPort)),
		},

		GovernanceConfig: GovernanceConfig{
			RetryBaseDelay:     viper.GetDuration(normalizeFlagName(GovernanceRetryBaseDelay)),
			MaxRetries:         viper.GetInt(normalizeFlagName(GovernanceMaxRetries)),
			RetrySweepInterval: viper.GetDuration(normalizeFlagName(GovernanceRetrySweepInterval)),
			FeeAddress:         viper.GetString(normalizeFlagName(GovernanceFeeAddress)),
			ProposalFees:       parseUintMap(viper.GetStringMapString(normalizeFlagName(GovernanceProposalFees))),
		},

		SchedulerConfig: SchedulerConfig{
			FallbackSweepInterval: viper.GetDuration(normalizeFlagName(SchedulerFallbackSweepInterval)),
			HealthCheckInterval:   viper.GetDuration(normalizeFlagName(SchedulerHealthCheckInterval)),
		},

		VotingPowerConfig: VotingPowerConfig{
			CacheTTL:         viper.GetDuration(normalizeFlagName(VotingPowerCacheTTL)),
			NegativeCacheTTL: viper.GetDuration(normalizeFlagName(VotingPowerNegativeCacheTTL)),
		},

		DistributionConfig: DistributionConfig{
			BatchSize:             viper.GetInt(normalizeFlagName(DistributionBatchSize)),
			MinimumTransferAmount: viper.GetUint64(normalizeFlagName(DistributionMinimumTransferAmount)),
			InterBatchDelay:       viper.GetDuration(normalizeFlagName(DistributionInterBatchDelay)),
			MaxBatchRetries:       viper.GetInt(normalizeFlagName(DistributionMaxBatchRetries)),
			ConfirmationTimeout:   viper.GetDuration(normalizeFlagName(DistributionConfirmationTimeout)),
		},

		ExternalServicesConfig: ExternalServicesConfig{
			TransactionServiceUrl: viper.GetString(normalizeFlagName(ExternalTransactionServiceUrl)),
			ChainIndexerUrl:       viper.GetString(normalizeFlagName(ExternalChainIndexerUrl)),
			MarketplaceUrl:        viper.GetString(normalizeFlagName(ExternalMarketplaceUrl)),
			ExtractionServiceUrl:  viper.GetString(normalizeFlagName(ExternalExtractionServiceUrl)),
			ApiKey:                viper.GetString(normalizeFlagName(ExternalApiKey)),
			Network:               StringWithDefault(viper.GetString(normalizeFlagName(ExternalNetwork)), "mainnet"),
		},

		KeysConfig: KeysConfig{
			AdminKey:  viper.GetString(normalizeFlagName(KeysAdminKey)),
			VaultKeys: viper.GetStringMapString(normalizeFlagName(KeysVaultKeys)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},
	}
}

// NewDefaultConfig returns the configuration the service runs with when no flags are set.
func NewDefaultConfig() *Config {
	return &Config{
		DatabaseConfig: DatabaseConfig{
			Host:   "localhost",
			Port:   5432,
			User:   "governor",
			DbName: "governor",
		},
		RpcConfig: RpcConfig{
			GrpcPort: 7200,
			HttpPort: 7201,
		},
		GovernanceConfig: GovernanceConfig{
			RetryBaseDelay:     5 * time.Minute,
			MaxRetries:         5,
			RetrySweepInterval: 5 * time.Minute,
			ProposalFees:       map[string]uint64{},
		},
		SchedulerConfig: SchedulerConfig{
			FallbackSweepInterval: 6 * time.Hour,
			HealthCheckInterval:   30 * time.Minute,
		},
		VotingPowerConfig: VotingPowerConfig{
			CacheTTL:         5 * time.Minute,
			NegativeCacheTTL: 15 * time.Minute,
		},
		DistributionConfig: DistributionConfig{
			BatchSize:             40,
			MinimumTransferAmount: 2_000_000,
			InterBatchDelay:       20 * time.Second,
			MaxBatchRetries:       3,
			ConfirmationTimeout:   3 * time.Minute,
		},
		ExternalServicesConfig: ExternalServicesConfig{
			Network: "mainnet",
		},
		KeysConfig: KeysConfig{
			VaultKeys: map[string]string{},
		},
	}
}

func (c *Config) Validate() error {
	if c.DistributionConfig.BatchSize <= 0 {
		return errors.New("distribution batch size must be greater than zero")
	}
	if c.GovernanceConfig.MaxRetries <= 0 {
		return errors.New("governance max retries must be greater than zero")
	}
	if c.GovernanceConfig.RetryBaseDelay <= 0 {
		return errors.New("governance retry base delay must be greater than zero")
	}
	return nil
}

// ProposalFee returns the creation fee for the given proposal type, zero when none is configured.
func (c *Config) ProposalFee(proposalType string) uint64 {
	if c.GovernanceConfig.ProposalFees == nil {
		return 0
	}
	return c.GovernanceConfig.ProposalFees[strings.ToLower(proposalType)]
}

func normalizeFlagName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func parseUintMap(raw map[string]string) map[string]uint64 {
	parsed := make(map[string]uint64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		parsed[strings.ToLower(k)] = n
	}
	return parsed
}
