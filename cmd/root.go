package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "governor",
	Short: "Runs the proposal lifecycle for governed vaults: voting, tallying and execution",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	defaults := config.NewDefaultConfig()

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().String(config.BurnAddress, "", `Address that receives burned assets`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, defaults.DatabaseConfig.Host, `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, defaults.DatabaseConfig.Port, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, defaults.DatabaseConfig.User, `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, defaults.DatabaseConfig.DbName, `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL SSL mode`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLCert, "", `PostgreSQL SSL client certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLKey, "", `PostgreSQL SSL client key`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLRootCert, "", `PostgreSQL SSL root certificate`)

	rootCmd.PersistentFlags().Int(config.RpcGrpcPort, defaults.RpcConfig.GrpcPort, `gRPC port`)
	rootCmd.PersistentFlags().Int(config.RpcHttpPort, defaults.RpcConfig.HttpPort, `http rpc port`)

	rootCmd.PersistentFlags().Duration(config.GovernanceRetryBaseDelay, defaults.GovernanceConfig.RetryBaseDelay, `Base delay of the exponential backoff between execution retries`)
	rootCmd.PersistentFlags().Int(config.GovernanceMaxRetries, defaults.GovernanceConfig.MaxRetries, `Execution attempts before a proposal is marked as permanently failed`)
	rootCmd.PersistentFlags().Duration(config.GovernanceRetrySweepInterval, defaults.GovernanceConfig.RetrySweepInterval, `How often PASSED proposals are re-attempted`)
	rootCmd.PersistentFlags().String(config.GovernanceFeeAddress, "", `Treasury address that receives proposal creation fees`)
	rootCmd.PersistentFlags().StringToString(config.GovernanceProposalFees, map[string]string{}, `Creation fee per proposal type, e.g. "distribution=2000000,burning=1000000"`)

	rootCmd.PersistentFlags().Duration(config.SchedulerFallbackSweepInterval, defaults.SchedulerConfig.FallbackSweepInterval, `How often overdue proposals are transitioned without a timer`)
	rootCmd.PersistentFlags().Duration(config.SchedulerHealthCheckInterval, defaults.SchedulerConfig.HealthCheckInterval, `How often armed timers are compared against persisted proposals`)

	rootCmd.PersistentFlags().Duration(config.VotingPowerCacheTTL, defaults.VotingPowerConfig.CacheTTL, `How long a resolved voting power is cached`)
	rootCmd.PersistentFlags().Duration(config.VotingPowerNegativeCacheTTL, defaults.VotingPowerConfig.NegativeCacheTTL, `How long a missing snapshot result is cached`)

	rootCmd.PersistentFlags().Int(config.DistributionBatchSize, defaults.DistributionConfig.BatchSize, `Recipients per distribution transaction`)
	rootCmd.PersistentFlags().Uint64(config.DistributionMinimumTransferAmount, defaults.DistributionConfig.MinimumTransferAmount, `Smallest amount a holder can receive, in base units`)
	rootCmd.PersistentFlags().Duration(config.DistributionInterBatchDelay, defaults.DistributionConfig.InterBatchDelay, `Pause between distribution batches`)
	rootCmd.PersistentFlags().Int(config.DistributionMaxBatchRetries, defaults.DistributionConfig.MaxBatchRetries, `Attempts per batch before it stays FAILED`)
	rootCmd.PersistentFlags().Duration(config.DistributionConfirmationTimeout, defaults.DistributionConfig.ConfirmationTimeout, `How long to wait for a batch transaction to confirm`)

	rootCmd.PersistentFlags().String(config.ExternalTransactionServiceUrl, "", `Base url of the transaction build/submit service`)
	rootCmd.PersistentFlags().String(config.ExternalChainIndexerUrl, "", `Base url of the chain indexer`)
	rootCmd.PersistentFlags().String(config.ExternalMarketplaceUrl, "", `Base url of the marketplace and swap aggregator`)
	rootCmd.PersistentFlags().String(config.ExternalExtractionServiceUrl, "", `Base url of the asset extraction service`)
	rootCmd.PersistentFlags().String(config.ExternalApiKey, "", `API key sent to the external services`)
	rootCmd.PersistentFlags().String(config.ExternalNetwork, defaults.ExternalServicesConfig.Network, `Network name (mainnet, preprod)`)

	rootCmd.PersistentFlags().String(config.KeysAdminKey, "", `Hex encoded admin key used for scripts and minting`)
	rootCmd.PersistentFlags().StringToString(config.KeysVaultKeys, map[string]string{}, `Custody wallet key per vault, e.g. "<vault-id>=<hex key>"`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(createSnapshotCmd)
	rootCmd.AddCommand(distributionCmd)

	// bind any subcommand flags
	createSnapshotCmd.PersistentFlags().String(config.SnapshotVaultId, "", "Vault to take the holder snapshot of (required)")

	distributionCmd.PersistentFlags().String(config.DistributionProposalId, "", "Distribution proposal id (required)")
	exportClaimsCmd.PersistentFlags().String(config.ExportOutputFile, "", "Path of the csv file to write (required)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindCommandFlags binds the flags of a subcommand the same way the persistent flags are bound.
func bindCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
