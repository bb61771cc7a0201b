package cmd

import (
	"context"
	"fmt"

	"hpl3-export/core/config"
	"hpl3-export/core/logger"
	"hpl3-export/core/storage"
	"hpl3-export/feature/publish"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var publishPrune bool

// publishCmd mirrors the committed export output into object storage.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push committed export output to object storage",
	Long: `Upload the map documents, the asset ledger and every exported asset
file to the configured bucket, keyed by project-relative paths.

Examples:
  # Mirror the current export output
  hpl3-export publish

  # Also remove remote objects that no longer exist locally
  hpl3-export publish --prune`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishPrune, "prune", false, "Remove remote objects absent locally")
	RootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	svc := publish.NewService(client, cfg.Storage.Bucket, cfg.Export, l)
	res, err := svc.Publish(context.Background(), publish.Options{Prune: publishPrune})
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	l.Info("Publish finished",
		zap.Int("uploaded", res.Uploaded),
		zap.Int("pruned", res.Pruned),
	)
	return nil
}
