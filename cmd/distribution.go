package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/metrics"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var distributionCmd = &cobra.Command{
	Use:   "distribution",
	Short: "Operate on the batches of a distribution proposal",
}

var retryBatchesCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-submit the failed batches of a distribution",
	Long:  "Re-submits every FAILED or RETRY_PENDING batch of a distribution proposal. Run it while the service is stopped, the running service exposes the same operation over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "governor"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		proposalId := viper.GetString(config.KebabToSnakeCase(config.DistributionProposalId))
		if proposalId == "" {
			return fmt.Errorf("--%s is required", config.DistributionProposalId)
		}

		stack, err := newGovernanceStack(cfg, metrics.NewNoopMetricsSink(), l)
		if err != nil {
			return err
		}

		report, retried, err := stack.Orchestrator.RetryFailedBatches(context.Background(), proposalId)
		if err != nil {
			l.Sugar().Errorw("Failed to retry batches", zap.String("proposalId", proposalId), zap.Error(err))
			return err
		}

		fmt.Printf("Retried %d batches\n", retried)
		fmt.Printf("Status: %s (%d/%d completed, %d failed, %d pending)\n",
			report.Status, report.CompletedBatches, report.TotalBatches, report.FailedBatches, report.PendingBatches)
		for _, b := range report.Batches {
			if b.Error != "" {
				fmt.Printf("  batch %d: %s after %d retries: %s\n", b.BatchNumber, b.Status, b.RetryCount, b.Error)
			}
		}
		return nil
	},
}

type claimRow struct {
	ClaimId       string `csv:"claim_id"`
	Address       string `csv:"address"`
	Amount        string `csv:"amount"`
	Status        string `csv:"status"`
	BatchId       string `csv:"batch_id"`
	TransactionId string `csv:"transaction_id"`
}

var exportClaimsCmd = &cobra.Command{
	Use:   "export-claims",
	Short: "Write the claims of a distribution to a csv file",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "governor"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		proposalId := viper.GetString(config.KebabToSnakeCase(config.DistributionProposalId))
		outputFile := viper.GetString(config.KebabToSnakeCase(config.ExportOutputFile))
		if proposalId == "" || outputFile == "" {
			return fmt.Errorf("--%s and --%s are required", config.DistributionProposalId, config.ExportOutputFile)
		}

		grm, err := openDatabase(cfg, l)
		if err != nil {
			return err
		}
		store := pgStorageFromGorm(grm, l)

		claims, err := store.ListProposalClaims(context.Background(), proposalId)
		if err != nil {
			return fmt.Errorf("failed to list claims: %w", err)
		}

		return writeClaims(claims, outputFile)
	},
}

func writeClaims(claims []*storage.Claim, outputFile string) error {
	bar := progressbar.Default(int64(len(claims)), fmt.Sprintf("writing %s", outputFile))
	defer func() {
		fmt.Println()
	}()

	rows := make([]*claimRow, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, &claimRow{
			ClaimId:       c.Id,
			Address:       c.Address,
			Amount:        c.Amount,
			Status:        string(c.Status),
			BatchId:       c.BatchId,
			TransactionId: c.TransactionId,
		})
		_ = bar.Add(1)
	}

	f, err := os.OpenFile(outputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write claims: %w", err)
	}
	return nil
}

func init() {
	distributionCmd.AddCommand(retryBatchesCmd)
	distributionCmd.AddCommand(exportClaimsCmd)
}
