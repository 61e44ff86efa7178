package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"genefetch/internal/batch/orchestrator"
)

// writeTSV renders one row per query in original input order. A slot
// without a result or failure (interrupted run) is reported pending.
func writeTSV(w io.Writer, outcomes []orchestrator.Outcome) error {
	if _, err := fmt.Fprintln(w, "index\tsymbol\tstatus\taccession\tmethod\tconfidence\twarnings\terror"); err != nil {
		return err
	}
	for _, out := range outcomes {
		var row string
		switch {
		case out.Result != nil:
			r := out.Result
			row = fmt.Sprintf("%d\t%s\tok\t%s\t%s\t%.2f\t%s\t",
				out.Index, out.Symbol, r.Transcript.FullAccession(), r.Method,
				r.Confidence, strings.Join(r.Warnings, "; "))
		case out.Failure != nil:
			row = fmt.Sprintf("%d\t%s\tfailed\t\t\t\t\t%s: %s",
				out.Index, out.Symbol, out.Failure.Kind, out.Failure.Reason)
		default:
			row = fmt.Sprintf("%d\t%s\tpending\t\t\t\t\t", out.Index, out.Symbol)
		}
		if _, err := fmt.Fprintln(w, row); err != nil {
			return err
		}
	}
	return nil
}

// printSummary renders the selection report: aggregate counts, the
// per-method and per-kind breakdowns, and cache effectiveness.
func printSummary(w io.Writer, stats orchestrator.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)

	_, _ = fmt.Fprintf(tw, "\nProcessed\t%d/%d\n", stats.Completed, stats.Total)
	_, _ = fmt.Fprintf(tw, "Succeeded\t%d\n", stats.Succeeded)
	_, _ = fmt.Fprintf(tw, "Failed\t%d\n", stats.Failed)
	_, _ = fmt.Fprintf(tw, "Cache hit rate\t%.1f%%\n", stats.CacheHitRate*100)
	_, _ = fmt.Fprintf(tw, "Mean per-gene latency\t%s\n", stats.MeanLatency.Round(time.Millisecond))
	_, _ = fmt.Fprintf(tw, "Elapsed\t%s\n", stats.Elapsed.Round(fmtRound(stats)))

	if len(stats.ByMethod) > 0 {
		_, _ = fmt.Fprintln(tw, "\nBy method:")
		for _, k := range sortedKeys(stats.ByMethod) {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\n", k, stats.ByMethod[k])
		}
	}
	if len(stats.ByKind) > 0 {
		_, _ = fmt.Fprintln(tw, "\nFailures by kind:")
		for _, k := range sortedKeys(stats.ByKind) {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\n", k, stats.ByKind[k])
		}
	}
	_ = tw.Flush()
}

func fmtRound(stats orchestrator.Stats) time.Duration {
	if stats.Elapsed > time.Minute {
		return time.Second
	}
	return time.Millisecond
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
