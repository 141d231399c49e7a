package evaluator

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/braxsimmons/Cliopa/internal/config"
	"github.com/braxsimmons/Cliopa/internal/resilience"
	"github.com/braxsimmons/Cliopa/pkg/anthropic"
	"github.com/braxsimmons/Cliopa/pkg/gemini"
)

// New builds the configured provider wrapped in retry, breaker and rate
// limiting. The returned close function releases provider resources.
func New(ctx context.Context, cfg *config.Config) (*Guarded, func() error, error) {
	if err := cfg.RequireEvaluator(); err != nil {
		return nil, nil, err
	}

	settings := Settings{
		Model:              cfg.EvaluatorModel(),
		Temperature:        cfg.Evaluator.Temperature,
		MaxTokens:          cfg.Evaluator.MaxTokens,
		MaxTranscriptChars: cfg.Evaluator.MaxTranscriptChars,
	}

	var (
		inner   Evaluator
		closeFn = func() error { return nil }
	)
	switch cfg.Evaluator.Provider {
	case ProviderAnthropic:
		inner = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), settings)
	case ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, nil, eris.Wrap(err, "evaluator: gemini client")
		}
		inner = NewGemini(client, settings)
		closeFn = client.Close
	default:
		return nil, nil, eris.Errorf("evaluator: unknown provider %q", cfg.Evaluator.Provider)
	}

	g := NewGuarded(inner,
		resilience.FromConfig(cfg.Retry),
		resilience.BreakerFromConfig(cfg.Evaluator),
		cfg.Evaluator.RequestsPerSecond,
	)
	return g, closeFn, nil
}
