package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genefetch/internal/batch/checkpoint"
	"genefetch/internal/batch/orchestrator"
	"genefetch/internal/core/config"
	"genefetch/internal/core/domain"
	"genefetch/internal/health"
	"genefetch/internal/infra/cache"
	"genefetch/internal/infra/ratelimit"
	"genefetch/internal/infra/services"
	"genefetch/internal/input"
)

var (
	outputPath  string
	batchID     string
	resumeBatch bool
	concurrency int
	serveHealth bool
)

var runCmd = &cobra.Command{
	Use:   "run [gene-list-file]",
	Short: "Process a batch of gene symbols",
	Args:  cobra.ExactArgs(1),
	Run:   runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write TSV results to file (default stdout)")
	runCmd.Flags().StringVar(&batchID, "batch", "", "batch id (default: generated)")
	runCmd.Flags().BoolVar(&resumeBatch, "resume", false, "resume the batch named by --batch")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker count (default: from config)")
	runCmd.Flags().BoolVar(&serveHealth, "serve", false, "expose /health and /metrics while running")
	rootCmd.AddCommand(runCmd)
}

// environment is the wired set of run dependencies shared by the run
// and retry commands.
type environment struct {
	bundle      services.Bundle
	limiter     *ratelimit.Limiter
	cache       *cache.Cache
	checkpoints *checkpoint.FileManager
}

func buildEnvironment(cfg *config.AppConfig) (*environment, error) {
	if cfg.Services.DatasetPath == "" {
		return nil, fmt.Errorf("services.dataset_path is required")
	}
	dir, err := services.LoadLocalDirectory(cfg.Services.DatasetPath)
	if err != nil {
		return nil, err
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "memory":
		store = cache.NewMemoryStore(cfg.Cache.MaxBytes)
	case "file":
		store, err = cache.NewFileStore(cfg.Cache.Dir, cfg.Cache.MaxBytes)
	case "redis":
		store, err = cache.NewRedisStore(cfg.Cache.Redis)
	default:
		err = fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}

	cm, err := checkpoint.NewFileManager(cfg.Batch.CheckpointDir,
		cfg.Batch.CheckpointEvery, cfg.Batch.CheckpointInterval)
	if err != nil {
		return nil, err
	}

	return &environment{
		bundle:      dir.Bundle(),
		limiter:     cfg.Services.Limiter(),
		cache:       cache.New(store, cfg.Cache.TTLs(), cfg.Cache.DefaultTTL),
		checkpoints: cm,
	}, nil
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	queries, err := input.ParseFile(args[0])
	if err != nil {
		slog.Error("Failed to read gene list", "file", args[0], "error", err)
		os.Exit(1)
	}
	slog.Info("Parsed gene list", "file", args[0], "genes", len(queries))

	if resumeBatch && batchID == "" {
		slog.Error("--resume requires --batch")
		os.Exit(1)
	}
	if batchID == "" {
		batchID = uuid.NewString()
	}

	executeBatch(cfg, queries, orchestrator.Config{
		BatchID: batchID,
		Resume:  resumeBatch,
	})
}

// executeBatch wires the environment, runs the orchestrator under
// signal cancellation, and renders results. Shared with retry.
func executeBatch(cfg *config.AppConfig, queries []domain.GeneQuery, ocfg orchestrator.Config) {
	env, err := buildEnvironment(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = env.cache.Close()
	}()

	ocfg.Concurrency = cfg.Batch.Concurrency
	if concurrency > 0 {
		ocfg.Concurrency = concurrency
	}
	ocfg.Fingerprint = cfg.Fingerprint()
	ocfg.Retry = cfg.Retry.Policy()
	ocfg.ProteinXrefConfidence = cfg.Selection.ProteinXrefConfidence
	ocfg.MinResolutionConfidence = cfg.Selection.MinResolutionConfidence
	ocfg.OnProgress = func(p orchestrator.Progress) {
		slog.Debug("Progress", "completed", p.Completed, "total", p.Total,
			"failed", p.Failed, "current", p.Current)
	}

	o := orchestrator.New(ocfg, env.bundle, env.limiter, env.cache, env.checkpoints)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveHealth {
		srv := health.NewServer(health.Sources{
			Progress: o.Progress,
			Limiter:  env.limiter,
			Cache:    env.cache,
		}, cfg.Server.Port)
		go func() {
			if err := srv.Start(); err != nil && ctx.Err() == nil {
				slog.Warn("Health server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
		slog.Info("Health server listening", "port", cfg.Server.Port)
	}

	slog.Info("Starting batch", "batch", ocfg.BatchID,
		"genes", len(queries), "concurrency", ocfg.Concurrency)

	outcomes, stats, runErr := o.Run(ctx, queries)

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			slog.Error("Failed to create output file", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}
	if err := writeTSV(out, outcomes); err != nil {
		slog.Error("Failed to write results", "error", err)
		os.Exit(1)
	}

	printSummary(os.Stderr, stats)

	if runErr != nil {
		slog.Warn("Batch interrupted; resume with --resume --batch",
			"batch", ocfg.BatchID, "error", runErr)
		os.Exit(1)
	}
	slog.Info("Batch complete", "batch", ocfg.BatchID,
		"succeeded", stats.Succeeded, "failed", stats.Failed)
}
