package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pathwise/funnel-cli/internal/config"
	"github.com/pathwise/funnel-cli/pkg/bigquery"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "funnel-cli",
	Short: "Funnel analytics over warehouse event data",
	Long:  "Compiles funnel definitions into warehouse queries, computes step conversion and dropoff, and compares experiment arms with a two-proportion significance test. Runs against BigQuery events exports or a flat Postgres mirror.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		// Every log line from one invocation shares an id, so shipped
		// logs from concurrent runs stay separable.
		zap.ReplaceGlobals(zap.L().With(zap.String("invocation_id", uuid.New().String())))

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func clientConfig() bigquery.ClientConfig {
	return bigquery.ClientConfig{
		ProjectID:       cfg.BigQuery.ProjectID,
		CredentialsFile: cfg.BigQuery.CredentialsFile,
		Location:        cfg.BigQuery.Location,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
