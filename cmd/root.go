package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "profiler",
	Short: "Candidate enrichment pipelines",
	Long:  "Moves job candidates through résumé extraction, web search, LinkedIn and GitHub lookups and profile scoring, each stage running as an independent pipeline.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
