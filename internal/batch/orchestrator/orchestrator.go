// Package orchestrator drives the per-gene pipeline (resolve →
// retrieve → select → validate) across a fixed worker pool, producing
// an input-order-preserving result list under rate-limiting, caching,
// retry and checkpoint constraints.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"genefetch/internal/batch/checkpoint"
	"genefetch/internal/core/domain"
	"genefetch/internal/infra/cache"
	"genefetch/internal/infra/ratelimit"
	"genefetch/internal/infra/retry"
	"genefetch/internal/infra/services"
	"genefetch/internal/metrics"
	"genefetch/internal/selection"
)

// Failure kinds beyond the classified service kinds.
const (
	KindInput        = "input"
	KindNoCandidates = "no_candidates"
)

// ErrBatchMismatch is returned when a resumed checkpoint does not
// describe the supplied query list.
var ErrBatchMismatch = errors.New("checkpoint does not match query list")

// Failure is the typed permanent-failure record for one gene.
type Failure struct {
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	Escalate bool   `json:"escalate,omitempty"`
}

// Outcome is one slot of the ordered output: a selection result or a
// typed failure, never both, never neither.
type Outcome struct {
	Index   int                     `json:"index"`
	Symbol  string                  `json:"symbol"`
	Result  *domain.SelectionResult `json:"result,omitempty"`
	Failure *Failure                `json:"failure,omitempty"`
}

// Failed reports whether the slot holds a failure.
func (o Outcome) Failed() bool { return o.Failure != nil }

// Config parameterizes a batch run.
type Config struct {
	Concurrency int
	BatchID     string
	Fingerprint string

	// Resume loads an existing checkpoint for BatchID; RetryFailed
	// additionally narrows the re-queue to the failed set.
	Resume      bool
	RetryFailed bool

	Retry                   retry.Config
	ProteinXrefConfidence   float64
	MinResolutionConfidence float64

	// OnProgress, when set, is invoked after every completed item.
	// It must be cheap; it runs on the worker goroutine.
	OnProgress func(Progress)
}

// Orchestrator owns the in-memory checkpoint mirror and coordinates
// the shared cache, limiter and checkpoint manager across workers.
type Orchestrator struct {
	cfg         Config
	services    services.Bundle
	limiter     *ratelimit.Limiter
	cache       *cache.Cache
	checkpoints checkpoint.Manager

	mu    sync.Mutex // guards cp and stats
	cp    *checkpoint.Checkpoint
	stats *collector
}

// New wires an orchestrator. The limiter and cache are shared by
// reference across all workers.
func New(cfg Config, bundle services.Bundle, limiter *ratelimit.Limiter, c *cache.Cache, cm checkpoint.Manager) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	return &Orchestrator{
		cfg:         cfg,
		services:    bundle,
		limiter:     limiter,
		cache:       c,
		checkpoints: cm,
		stats:       newCollector(),
	}
}

// Run processes the batch and returns one outcome per query, in
// original input order, regardless of worker count or completion
// order. On cancellation it snapshots the true partition and returns
// the partial outcomes alongside the context error.
func (o *Orchestrator) Run(ctx context.Context, queries []domain.GeneQuery) ([]Outcome, Stats, error) {
	pending, err := o.initCheckpoint(queries)
	if err != nil {
		return nil, Stats{}, err
	}

	outcomes := make([]Outcome, len(queries))
	o.prefill(outcomes, queries)

	o.stats.start(len(queries), len(queries)-len(pending))
	metrics.BatchPending.Set(float64(len(pending)))

	queue := make(chan domain.GeneQuery)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, item := range pending {
			select {
			case queue <- domain.GeneQuery{Symbol: item.Symbol, Index: item.Index}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < o.cfg.Concurrency; i++ {
		g.Go(func() error {
			for q := range queue {
				if gctx.Err() != nil {
					return nil
				}
				started := time.Now()
				outcome, done := o.processGene(gctx, q)
				if !done {
					// Interrupted mid-item: the query stays pending
					// and will be reprocessed after resume.
					continue
				}
				outcomes[q.Index] = outcome
				o.record(outcome, time.Since(started))
			}
			return nil
		})
	}

	runErr := g.Wait()

	// Final snapshot reflects the exact partition at stop time, so no
	// query is ever unaccounted for.
	o.mu.Lock()
	if err := o.checkpoints.Snapshot(o.cp); err != nil {
		slog.Error("Final checkpoint snapshot failed", "batch", o.cfg.BatchID, "error", err)
	}
	stats := o.stats.snapshot(o.cache.Stats())
	o.mu.Unlock()

	if runErr == nil {
		runErr = ctx.Err()
	}
	return outcomes, stats, runErr
}

// Progress returns a snapshot of the running counters. Safe to call
// from any goroutine at any time; never blocks on in-flight work.
func (o *Orchestrator) Progress() Progress {
	return o.stats.progress(o.cache.Stats())
}

// initCheckpoint creates or resumes the durable batch record and
// returns the queries still to be processed.
func (o *Orchestrator) initCheckpoint(queries []domain.GeneQuery) ([]checkpoint.PendingItem, error) {
	if o.cfg.Resume || o.cfg.RetryFailed {
		cp, err := o.checkpoints.Load(o.cfg.BatchID)
		switch {
		case err == nil:
			if cp.Total != len(queries) {
				return nil, fmt.Errorf("%w: checkpoint has %d items, input has %d",
					ErrBatchMismatch, cp.Total, len(queries))
			}
			pending, err := o.checkpoints.Resume(cp, o.cfg.Fingerprint, o.cfg.RetryFailed)
			if err != nil {
				return nil, err
			}
			o.cp = cp
			slog.Info("Resuming batch", "batch", o.cfg.BatchID,
				"processed", len(cp.Processed), "requeued", len(pending))
			return pending, nil

		case errors.Is(err, checkpoint.ErrNotFound) && !o.cfg.RetryFailed:
			// Fall through to a fresh batch.

		default:
			return nil, err
		}
	}

	o.cp = checkpoint.New(o.cfg.BatchID, o.cfg.Fingerprint, queries)
	if err := o.checkpoints.Snapshot(o.cp); err != nil {
		return nil, fmt.Errorf("failed to write initial checkpoint: %w", err)
	}
	return append([]checkpoint.PendingItem(nil), o.cp.Pending...), nil
}

// prefill copies results carried over from a resumed checkpoint into
// their output slots.
func (o *Orchestrator) prefill(outcomes []Outcome, queries []domain.GeneQuery) {
	for i, q := range queries {
		outcomes[i] = Outcome{Index: q.Index, Symbol: q.Symbol}
	}
	for _, it := range o.cp.Processed {
		result := it.Result
		outcomes[it.Index] = Outcome{Index: it.Index, Symbol: it.Symbol, Result: &result}
	}
	for _, it := range o.cp.Failed {
		outcomes[it.Index] = Outcome{
			Index:   it.Index,
			Symbol:  it.Symbol,
			Failure: &Failure{Kind: it.Kind, Reason: it.Reason, Escalate: it.Escalate},
		}
	}
}

// record moves the query out of the pending set, updates counters and
// applies the snapshot cadence. The checkpoint mirror has a single
// writer path: this method, under o.mu.
func (o *Orchestrator) record(outcome Outcome, latency time.Duration) {
	o.mu.Lock()
	if outcome.Failure != nil {
		o.cp.MarkFailed(outcome.Index, outcome.Symbol,
			outcome.Failure.Kind, outcome.Failure.Reason, outcome.Failure.Escalate)
		o.stats.addFailure(outcome.Failure.Kind, latency)
		metrics.GenesProcessed.WithLabelValues("failed").Inc()
	} else {
		o.cp.MarkProcessed(outcome.Index, outcome.Symbol, *outcome.Result)
		o.stats.addSuccess(outcome.Result.Method, latency)
		metrics.GenesProcessed.WithLabelValues("success").Inc()
		metrics.SelectionsByMethod.WithLabelValues(string(outcome.Result.Method)).Inc()
	}
	metrics.BatchPending.Set(float64(len(o.cp.Pending)))

	wrote, err := o.checkpoints.MaybeSnapshot(o.cp, 1)
	if err != nil {
		slog.Warn("Checkpoint snapshot failed", "batch", o.cfg.BatchID, "error", err)
	}
	if wrote {
		metrics.CheckpointWrites.Inc()
	}

	progress := o.stats.progressWith(outcome.Symbol, o.cache.Stats())
	o.mu.Unlock()

	if o.cfg.OnProgress != nil {
		o.cfg.OnProgress(progress)
	}
}

// selectionOptions builds the per-gene selector options.
func (o *Orchestrator) selectionOptions(canonical *domain.TranscriptRecord) selection.Options {
	return selection.Options{
		CanonicalProtein:      canonical,
		ProteinXrefConfidence: o.cfg.ProteinXrefConfidence,
	}
}
