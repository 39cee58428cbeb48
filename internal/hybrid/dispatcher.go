package hybrid

import (
	"context"
	"sort"
	"time"

	"knowledge-backend/internal/shared/metrics"
	"knowledge-backend/internal/shared/telemetry"
)

// DefaultAttemptTimeout bounds each provider invocation. A timed-out
// attempt is recorded as a failed attempt like any other.
const DefaultAttemptTimeout = 60 * time.Second

// Dispatcher tries providers in ascending priority order until a result
// clears the caller's score threshold or the retry budget is spent.
type Dispatcher struct {
	providers      []Provider
	validate       Validator
	attemptTimeout time.Duration
	now            func() time.Time
}

// NewDispatcher constructs a Dispatcher over the given providers using
// the default validator.
func NewDispatcher(providers ...Provider) *Dispatcher {
	return &Dispatcher{
		providers:      providers,
		validate:       DefaultValidator,
		attemptTimeout: DefaultAttemptTimeout,
		now:            time.Now,
	}
}

// WithValidator replaces the scoring function.
func (d *Dispatcher) WithValidator(v Validator) *Dispatcher {
	if v != nil {
		d.validate = v
	}
	return d
}

// Dispatch runs the fallback loop. It never returns an error: an
// all-failed run comes back as a Response with Success false and the
// full attempt ledger.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	minScore := req.MinimumScore
	if minScore <= 0 {
		minScore = DefaultMinimumScore
	}

	candidates := d.availableProviders()
	start := d.now()

	resp := Response{Attempts: []Attempt{}}
	var best *Attempt
	var bestResult any

	for _, provider := range candidates {
		if len(resp.Attempts) >= maxRetries {
			break
		}
		attempt, result := d.attempt(ctx, provider, req)
		resp.Attempts = append(resp.Attempts, attempt)
		metrics.IncProviderAttempt()

		if attempt.Success && (best == nil || attempt.Score > best.Score) {
			latest := attempt
			best = &latest
			bestResult = result
		}
		if attempt.Success && attempt.Score >= minScore {
			break
		}
	}

	resp.TotalTimeMs = d.now().Sub(start).Milliseconds()
	if best != nil {
		resp.Success = true
		resp.Provider = best.Provider
		resp.Result = bestResult
		resp.Score = best.Score
	}
	return resp
}

func (d *Dispatcher) attempt(ctx context.Context, provider Provider, req Request) (Attempt, any) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	started := d.now()
	result, err := provider.Invoke(attemptCtx, req)
	elapsed := d.now().Sub(started).Milliseconds()

	attempt := Attempt{Provider: provider.Name(), ProcessingTimeMs: elapsed}
	if err != nil {
		attempt.Error = err.Error()
		telemetry.Warn("hybrid.attempt_failed", map[string]any{
			"provider": provider.Name(),
			"type":     req.Type,
			"error":    err.Error(),
		})
		return attempt, nil
	}
	attempt.Success = true
	attempt.Score = d.validate(result)
	return attempt, result
}

// availableProviders filters out unavailable providers and orders the
// rest ascending by priority. The sort is stable so equal-priority
// providers keep their registration order.
func (d *Dispatcher) availableProviders() []Provider {
	out := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Available() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}
