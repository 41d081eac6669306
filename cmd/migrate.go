package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/documents"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the candidate store schema and document bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))

		if cfg.Documents.Backend != "s3" {
			return nil
		}
		src, err := documents.NewS3Source(ctx, cfg.Documents.S3)
		if err != nil {
			return err
		}
		return src.EnsureBucket(ctx)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
