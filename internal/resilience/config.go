package resilience

import (
	"time"

	"github.com/braxsimmons/Cliopa/internal/config"
)

// FromConfig builds a RetryConfig from the retry section, keeping defaults
// for unset values.
func FromConfig(rc config.RetryConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(rc.InitialBackoffMs) * time.Millisecond
	}
	if rc.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	}
	if rc.Multiplier > 0 {
		cfg.Multiplier = rc.Multiplier
	}
	if rc.JitterFraction >= 0 {
		cfg.JitterFraction = rc.JitterFraction
	}
	return cfg
}

// BreakerFromConfig builds the evaluator circuit breaker settings.
func BreakerFromConfig(ec config.EvaluatorConfig) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if ec.BreakerThreshold > 0 {
		cfg.FailureThreshold = ec.BreakerThreshold
	}
	if ec.BreakerResetSecs > 0 {
		cfg.ResetTimeout = time.Duration(ec.BreakerResetSecs) * time.Second
	}
	return cfg
}
