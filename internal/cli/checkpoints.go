package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"genefetch/internal/batch/checkpoint"
)

var pruneDays int

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List stored batch checkpoints",
	Run:   runCheckpoints,
}

func init() {
	checkpointsCmd.Flags().IntVar(&pruneDays, "prune", 0, "remove checkpoints older than N days")
	rootCmd.AddCommand(checkpointsCmd)
}

func runCheckpoints(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	cm, err := checkpoint.NewFileManager(cfg.Batch.CheckpointDir,
		cfg.Batch.CheckpointEvery, cfg.Batch.CheckpointInterval)
	if err != nil {
		slog.Error("Failed to open checkpoint dir", "error", err)
		os.Exit(1)
	}

	if pruneDays > 0 {
		removed, err := cm.Prune(time.Duration(pruneDays) * 24 * time.Hour)
		if err != nil {
			slog.Error("Prune failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Pruned old checkpoints", "removed", removed, "older_than_days", pruneDays)
	}

	summaries, err := cm.List()
	if err != nil {
		slog.Error("Failed to list checkpoints", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "BATCH\tTOTAL\tDONE\tFAILED\tPENDING\tUPDATED")
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.BatchID, s.Total, s.Processed, s.Failed, s.Pending,
			s.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
