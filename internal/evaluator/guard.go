package evaluator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/resilience"
)

// Guarded wraps an Evaluator with a request rate limit, retries of
// transient provider errors and a circuit breaker.
type Guarded struct {
	next    Evaluator
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuarded wraps next. A non-positive rps disables rate limiting.
func NewGuarded(next Evaluator, retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig, rps float64) *Guarded {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	if breaker.ShouldTrip == nil {
		// A single bad document says nothing about provider health.
		breaker.ShouldTrip = func(err error) bool { return !errors.Is(err, ErrMalformed) }
	}
	if breaker.OnStateChange == nil {
		breaker.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("evaluator: circuit state change",
				zap.String("provider", next.Provider()),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error) {
			zap.L().Warn("evaluator: retrying",
				zap.String("provider", next.Provider()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}
	return &Guarded{
		next:    next,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breaker),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (g *Guarded) Provider() string { return g.next.Provider() }
func (g *Guarded) Model() string    { return g.next.Model() }

// State reports the breaker state.
func (g *Guarded) State() resilience.CircuitState { return g.breaker.State() }

func (g *Guarded) Evaluate(ctx context.Context, req Request) (*model.Evaluation, error) {
	return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*model.Evaluation, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "evaluator: limiter wait")
		}
		return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*model.Evaluation, error) {
			return g.next.Evaluate(ctx, req)
		})
	})
}
