package cmd

import (
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Initialize and migrate the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, Name: "governor"})

		if _, err := openDatabase(cfg, l); err != nil {
			l.Sugar().Errorw("Failed to initialize database", zap.Error(err))
			return err
		}

		l.Sugar().Info("Database migrated")
		return nil
	},
}
