package cmd

import (
	"context"
	"fmt"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/holderSnapshot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var createSnapshotCmd = &cobra.Command{
	Use:   "create-snapshot",
	Short: "Record the current token holders of a vault",
	Long:  "Pages through the chain indexer and stores the vault token balances as the latest snapshot used for voting.",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "governor"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		vaultId := viper.GetString(config.KebabToSnakeCase(config.SnapshotVaultId))
		if vaultId == "" {
			return fmt.Errorf("--%s is required", config.SnapshotVaultId)
		}

		stack, err := newGovernanceStack(cfg, metrics.NewNoopMetricsSink(), l)
		if err != nil {
			return err
		}

		builder := holderSnapshot.NewBuilder(stack.Store, stack.Indexer, l)
		snapshot, err := builder.CreateSnapshot(context.Background(), vaultId)
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}

		l.Sugar().Infow("Created holder snapshot",
			zap.String("vaultId", vaultId),
			zap.String("snapshotId", snapshot.Id),
		)
		return nil
	},
}
