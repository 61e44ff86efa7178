package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"genefetch/internal/core/domain"
	"genefetch/internal/infra/cache"
	"genefetch/internal/infra/retry"
	"genefetch/internal/infra/services"
	"genefetch/internal/input"
	"genefetch/internal/metrics"
	"genefetch/internal/selection"
)

type consensusEntry struct {
	Found  bool                     `json:"found"`
	Record services.ConsensusRecord `json:"record,omitempty"`
}

type proteinEntry struct {
	Found  bool                    `json:"found"`
	Record domain.TranscriptRecord `json:"record,omitempty"`
}

// processGene executes the full per-gene pipeline. done=false means
// the item was interrupted by cancellation and must stay pending.
func (o *Orchestrator) processGene(ctx context.Context, q domain.GeneQuery) (Outcome, bool) {
	start := time.Now()
	outcome := Outcome{Index: q.Index, Symbol: q.Symbol}

	fail := func(f *Failure) (Outcome, bool) {
		outcome.Failure = f
		metrics.ItemLatency.Observe(time.Since(start).Seconds())
		return outcome, true
	}

	// Reject bad symbols before any collaborator call.
	if err := input.ValidateSymbol(q.Symbol); err != nil {
		return fail(&Failure{Kind: KindInput, Reason: err.Error()})
	}

	gene, err := o.resolve(ctx, q.Symbol)
	if err != nil {
		failure, interrupted := o.failureFrom(err)
		if interrupted {
			return outcome, false
		}
		return fail(failure)
	}

	candidates, err := o.retrieve(ctx, gene.GeneID)
	if err != nil {
		failure, interrupted := o.failureFrom(err)
		if interrupted {
			return outcome, false
		}
		return fail(failure)
	}
	if len(candidates) == 0 {
		return fail(&Failure{Kind: KindNoCandidates, Reason: "repository returned no candidate transcripts"})
	}

	// Evidence annotation is best-effort: a consensus or protein
	// outage degrades the selection tier, it does not fail the gene.
	if interrupted := o.annotateConsensus(ctx, gene.GeneID, candidates); interrupted {
		return outcome, false
	}
	canonical, interrupted := o.mapProtein(ctx, gene.GeneID)
	if interrupted {
		return outcome, false
	}

	result, err := selection.Select(candidates, o.selectionOptions(canonical))
	if err != nil {
		return fail(&Failure{Kind: KindNoCandidates, Reason: err.Error()})
	}

	result.Warnings = append(result.Warnings, selection.ValidateCDS(result.Transcript.Sequence)...)
	if o.cfg.MinResolutionConfidence > 0 && gene.Confidence < o.cfg.MinResolutionConfidence {
		result.Warnings = append(result.Warnings, domain.WarnLowResolution)
	}

	outcome.Result = result
	metrics.ItemLatency.Observe(time.Since(start).Seconds())
	return outcome, true
}

// resolve maps the symbol to a stable identifier, cache first.
func (o *Orchestrator) resolve(ctx context.Context, symbol string) (*domain.ResolvedGene, error) {
	key := strings.ToLower(symbol)

	var gene domain.ResolvedGene
	if hit := o.cachedJSON(ctx, cache.NamespaceGenes, key, &gene); hit {
		return &gene, nil
	}

	err := o.callService(ctx, services.ServiceNomenclature, func(ctx context.Context) error {
		resolved, err := o.services.Resolver.Resolve(ctx, symbol)
		if err != nil {
			return err
		}
		gene = *resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.storeJSON(ctx, cache.NamespaceGenes, key, gene)
	return &gene, nil
}

// retrieve fetches the candidate transcript set, cache first.
func (o *Orchestrator) retrieve(ctx context.Context, geneID string) ([]domain.TranscriptRecord, error) {
	var candidates []domain.TranscriptRecord
	if hit := o.cachedJSON(ctx, cache.NamespaceSequences, geneID, &candidates); hit {
		return candidates, nil
	}

	err := o.callService(ctx, services.ServiceSequence, func(ctx context.Context) error {
		fetched, err := o.services.Sequence.FetchCandidates(ctx, geneID)
		if err != nil {
			return err
		}
		candidates = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.storeJSON(ctx, cache.NamespaceSequences, geneID, candidates)
	return candidates, nil
}

// annotateConsensus marks candidates named by the consensus directory.
// Absence and lookup failure both leave the set unannotated.
func (o *Orchestrator) annotateConsensus(ctx context.Context, geneID string, candidates []domain.TranscriptRecord) bool {
	var entry consensusEntry
	if hit := o.cachedJSON(ctx, cache.NamespaceConsensus, geneID, &entry); !hit {
		err := o.callService(ctx, services.ServiceConsensus, func(ctx context.Context) error {
			rec, err := o.services.Consensus.Lookup(ctx, geneID)
			if errors.Is(err, services.ErrAbsent) {
				return nil
			}
			if err != nil {
				return err
			}
			entry = consensusEntry{Found: true, Record: *rec}
			return nil
		})
		if err != nil {
			if _, interrupted := o.failureFrom(err); interrupted {
				return true
			}
			slog.Warn("Consensus lookup failed, continuing without annotation",
				"gene", geneID, "error", err)
			return false
		}
		o.storeJSON(ctx, cache.NamespaceConsensus, geneID, entry)
	}
	if !entry.Found {
		return false
	}

	clinical := make(map[string]bool, len(entry.Record.ClinicalAccessions))
	for _, acc := range entry.Record.ClinicalAccessions {
		clinical[acc] = true
	}
	for i := range candidates {
		if candidates[i].Accession == entry.Record.SelectAccession {
			candidates[i].ConsensusSelect = true
		}
		if clinical[candidates[i].Accession] {
			candidates[i].ConsensusClinical = true
		}
	}
	return false
}

// mapProtein resolves the canonical protein transcript when the
// mapper is configured. Absence and failure both disable the tier.
func (o *Orchestrator) mapProtein(ctx context.Context, geneID string) (*domain.TranscriptRecord, bool) {
	if o.services.Protein == nil {
		return nil, false
	}

	var entry proteinEntry
	if hit := o.cachedJSON(ctx, cache.NamespaceProteins, geneID, &entry); !hit {
		err := o.callService(ctx, services.ServiceProtein, func(ctx context.Context) error {
			rec, err := o.services.Protein.MapProteinToTranscript(ctx, geneID)
			if errors.Is(err, services.ErrAbsent) {
				return nil
			}
			if err != nil {
				return err
			}
			entry = proteinEntry{Found: true, Record: *rec}
			return nil
		})
		if err != nil {
			if _, interrupted := o.failureFrom(err); interrupted {
				return nil, true
			}
			slog.Warn("Protein mapping failed, continuing without it",
				"gene", geneID, "error", err)
			return nil, false
		}
		o.storeJSON(ctx, cache.NamespaceProteins, geneID, entry)
	}
	if !entry.Found {
		return nil, false
	}
	rec := entry.Record
	return &rec, false
}

// callService guards a collaborator call with the rate limiter and
// the kind-aware retry loop. Each attempt pays its own token.
func (o *Orchestrator) callService(ctx context.Context, service string, fn func(context.Context) error) error {
	return retry.Do(ctx, o.cfg.Retry, func(ctx context.Context) error {
		if err := o.limiter.Acquire(ctx, service, 1); err != nil {
			return err
		}
		metrics.ServiceCalls.WithLabelValues(service).Inc()
		start := time.Now()
		err := fn(ctx)
		metrics.ServiceLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ServiceErrors.WithLabelValues(service, string(retry.Classify(err))).Inc()
		}
		return err
	})
}

// failureFrom converts a pipeline error into a typed failure, or
// reports that the item was interrupted by cancellation.
func (o *Orchestrator) failureFrom(err error) (*Failure, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, true
	}

	var rerr *retry.Error
	if errors.As(err, &rerr) {
		return &Failure{
			Kind:     string(rerr.Kind),
			Reason:   rerr.Error(),
			Escalate: rerr.Escalate(),
		}, false
	}
	return &Failure{Kind: string(retry.Classify(err)), Reason: err.Error()}, false
}

func (o *Orchestrator) cachedJSON(ctx context.Context, namespace, key string, out any) bool {
	hit, err := o.cache.GetJSON(ctx, namespace, key, out)
	if err != nil {
		slog.Warn("Cache read failed", "namespace", namespace, "error", err)
		return false
	}
	if hit {
		metrics.CacheOps.WithLabelValues(namespace, "hit").Inc()
	} else {
		metrics.CacheOps.WithLabelValues(namespace, "miss").Inc()
	}
	return hit
}

func (o *Orchestrator) storeJSON(ctx context.Context, namespace, key string, value any) {
	if err := o.cache.SetJSON(ctx, namespace, key, value); err != nil {
		slog.Warn("Cache write failed", "namespace", namespace, "error", err)
	}
}
