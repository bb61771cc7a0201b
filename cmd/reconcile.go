package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"hpl3-export/core/config"
	"hpl3-export/core/logger"
	"hpl3-export/core/reconcile"
	"hpl3-export/feature/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileLiveFile string
	reconcilePurge    bool
	reconcileDryRun   bool
	reconcileYes      bool
)

// reconcileCmd removes map entries whose scene objects are gone.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [live-names...]",
	Short: "Remove map entries for deleted scene objects",
	Long: `Reconcile the map documents against the live scene's object names.

Orphaned rows are reported, and with --purge removed: their file-index
entries are renumbered and geometry files whose last use is gone are
deleted from disk.

Live names come from positional arguments or --live (one name per line).

Examples:
  # Report only
  hpl3-export reconcile --live scene_names.txt

  # Purge with interactive confirmation
  hpl3-export reconcile --live scene_names.txt --purge

  # Purge with auto-confirm (non-interactive)
  hpl3-export reconcile --live scene_names.txt --purge --yes`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileLiveFile, "live", "", "File listing live scene names, one per line")
	reconcileCmd.Flags().BoolVar(&reconcilePurge, "purge", false, "Enable purge (remove orphaned entries and dead files)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	reconcileCmd.Flags().BoolVar(&reconcileYes, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	RootCmd.AddCommand(reconcileCmd)
}

func readLiveNames(args []string) ([]string, error) {
	names := append([]string(nil), args...)
	if reconcileLiveFile == "" {
		return names, nil
	}
	data, err := os.ReadFile(reconcileLiveFile)
	if err != nil {
		return nil, fmt.Errorf("reading live names: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	live, err := readLiveNames(args)
	if err != nil {
		return err
	}

	svc, err := export.NewService(cfg.Export, cfg.Transform, export.Collaborators{}, l)
	if err != nil {
		return err
	}

	// Step 1: Plan (always runs; unconfirmed options never mutate)
	report, err := svc.Reconcile(ctx, live, reconcile.Options{})
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}
	printReconcileReport(l, report)

	if !reconcilePurge {
		l.Info("No actions requested. Use --purge to remove orphaned entries.")
		return nil
	}
	if reconcileDryRun {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}

	actions := 0
	for _, plan := range report.Plans {
		actions += len(plan.Actions)
	}
	if actions == 0 {
		l.Info("Nothing to purge.")
		return nil
	}

	if !confirmDestructiveAction() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	applied, err := svc.Reconcile(ctx, live, reconcile.Options{Confirmed: true})
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}

	l.Info("Purge finished", zap.Int("removed", applied.Removed))
	if len(applied.Residual) > 0 {
		l.Warn("Some files could not be deleted", zap.Strings("residual", applied.Residual))
	}
	return nil
}

// printReconcileReport prints a formatted reconciliation report using logger.
func printReconcileReport(l *zap.Logger, report *export.ReconcileReport) {
	for kind, plan := range report.Plans {
		s := plan.Summary
		l.Info("Reconciliation report",
			zap.String("kind", kind),
			zap.Int("registry_objects", s.RegistryObjects),
			zap.Int("live_objects", s.LiveObjects),
			zap.Int("orphans", s.Orphans),
			zap.Int("shared_skipped", s.SharedSkipped),
			zap.Int("index_removals", s.IndexRemovals),
			zap.Int("files_to_delete", s.FilesToDelete),
		)

		// Show sample of actions (max 5 for logger)
		maxShow := 5
		if len(plan.Actions) < maxShow {
			maxShow = len(plan.Actions)
		}
		for i := 0; i < maxShow; i++ {
			action := plan.Actions[i]
			l.Info("Planned action",
				zap.String("type", string(action.Type)),
				zap.String("name", action.Name),
				zap.String("geometry", action.GeometryPath),
				zap.String("reason", action.Reason),
			)
		}
		if len(plan.Actions) > maxShow {
			l.Info("Additional actions not shown", zap.Int("count", len(plan.Actions)-maxShow))
		}
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if reconcileYes {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(response) == "yes"
}
