package cli

import (
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"genefetch/internal/batch/orchestrator"
	"genefetch/internal/core/domain"
)

var retryBatchID string

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run only the failed genes of a completed batch",
	Run:   runRetry,
}

func init() {
	retryCmd.Flags().StringVar(&retryBatchID, "batch", "", "batch id to retry (required)")
	retryCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write TSV results to file (default stdout)")
	retryCmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker count (default: from config)")
	_ = retryCmd.MarkFlagRequired("batch")
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	env, err := buildEnvironment(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	cp, err := env.checkpoints.Load(retryBatchID)
	if err != nil {
		slog.Error("Failed to load checkpoint", "batch", retryBatchID, "error", err)
		os.Exit(1)
	}
	_ = env.cache.Close()

	// The checkpoint holds every query of the original batch, so the
	// input file is not needed again.
	queries := make([]domain.GeneQuery, 0, cp.Total)
	for _, it := range cp.Processed {
		queries = append(queries, domain.GeneQuery{Symbol: it.Symbol, Index: it.Index})
	}
	for _, it := range cp.Failed {
		queries = append(queries, domain.GeneQuery{Symbol: it.Symbol, Index: it.Index})
	}
	for _, it := range cp.Pending {
		queries = append(queries, domain.GeneQuery{Symbol: it.Symbol, Index: it.Index})
	}
	sort.Slice(queries, func(i, j int) bool { return queries[i].Index < queries[j].Index })

	slog.Info("Retrying failed genes", "batch", retryBatchID,
		"failed", len(cp.Failed), "total", cp.Total)

	executeBatch(cfg, queries, orchestrator.Config{
		BatchID:     retryBatchID,
		RetryFailed: true,
	})
}
