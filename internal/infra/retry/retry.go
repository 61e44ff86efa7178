// Package retry classifies collaborator failures into typed kinds and
// executes calls under kind-specific retry policies.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"genefetch/internal/infra/services"
)

// Kind is the typed outcome of classifying a raw failure.
type Kind string

const (
	KindTransientNetwork  Kind = "transient_network"
	KindRateLimited       Kind = "rate_limited"
	KindNotFound          Kind = "not_found"
	KindMalformedResponse Kind = "malformed_response"
	KindPersistentService Kind = "persistent_service"
	KindLocalIO           Kind = "local_io"
)

// Config defines retry behavior for the transient kinds. Per-kind
// attempt bounds derive from it; see policy.
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts:     5,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        30 * time.Second,
	BackoffMultiple: 2.0,
}

// Error wraps the final failure of an exhausted or non-retryable call.
type Error struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Escalate reports whether the failure should be flagged for manual
// review (exhausted persistent-service errors).
func (e *Error) Escalate() bool {
	return e.Kind == KindPersistentService
}

// Classified tags an error with an explicit kind, bypassing the
// heuristic classifier. Collaborator clients may return these.
type Classified struct {
	K   Kind
	Err error
}

func (c *Classified) Error() string { return c.Err.Error() }
func (c *Classified) Unwrap() error { return c.Err }

// Classify determines the kind for a raw failure. Explicit tags and
// sentinel errors win; otherwise string heuristics decide, defaulting
// to transient.
func Classify(err error) Kind {
	if err == nil {
		return KindTransientNetwork
	}

	var tagged *Classified
	if errors.As(err, &tagged) {
		return tagged.K
	}
	if errors.Is(err, services.ErrNotFound) {
		return KindNotFound
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindLocalIO
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "quota"):
		return KindRateLimited

	case strings.Contains(s, "malformed") || strings.Contains(s, "parse") ||
		strings.Contains(s, "unmarshal") || strings.Contains(s, "unexpected end") ||
		strings.Contains(s, "invalid character"):
		return KindMalformedResponse

	case strings.Contains(s, "not found") || strings.Contains(s, "404"):
		return KindNotFound

	case strings.Contains(s, "500") || strings.Contains(s, "502") ||
		strings.Contains(s, "internal server error") || strings.Contains(s, "bad gateway"):
		return KindPersistentService

	default:
		// Timeouts, resets, refused connections, 503s.
		return KindTransientNetwork
	}
}

// maxAttempts returns the attempt budget for a kind under cfg.
func maxAttempts(kind Kind, cfg Config) int {
	switch kind {
	case KindTransientNetwork, KindRateLimited:
		return cfg.MaxAttempts
	case KindMalformedResponse:
		return 2 // retry once, then fail
	case KindPersistentService:
		// Bounded, and fewer than transient.
		return max(2, cfg.MaxAttempts/2)
	default:
		// NotFound, LocalIO: never retried.
		return 1
	}
}

// Do executes fn, classifying each failure and retrying per the
// kind's policy with exponential backoff and jitter. The returned
// error, if any, is always a *Error carrying the final kind.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	var lastErr error
	var lastKind Kind

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		lastKind = Classify(err)
		if ctx.Err() != nil {
			return &Error{Kind: lastKind, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt >= maxAttempts(lastKind, cfg) {
			return &Error{Kind: lastKind, Attempts: attempt, Err: lastErr}
		}

		delay := backoff(attempt-1, cfg)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Kind: lastKind, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// backoff computes the delay before the next attempt: exponential
// growth capped at MaxDelay, jittered into [base/2, base].
func backoff(attempt int, cfg Config) time.Duration {
	base := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}
	return time.Duration(base/2 + base/2*rand.Float64())
}
