// Package evaluator scores call transcripts against an audit rubric using
// an LLM provider and parses the structured verdict.
package evaluator

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/resilience"
)

// Provider names recorded with every evaluation.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// DefaultMaxTranscriptChars caps the transcript excerpt sent to a provider.
const DefaultMaxTranscriptChars = 12000

// ErrMalformed is returned when the provider's output is not a valid
// evaluation document.
var ErrMalformed = eris.New("evaluator: malformed response")

// Request is one transcript to audit.
type Request struct {
	CallID     string
	Transcript string
	Criteria   []model.Criterion
}

// Evaluator scores a single transcript.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*model.Evaluation, error)
	Provider() string
	Model() string
}

// Settings are the generation parameters shared by every provider.
type Settings struct {
	Model              string
	Temperature        float64
	MaxTokens          int
	MaxTranscriptChars int
}

func (s Settings) maxChars() int {
	if s.MaxTranscriptChars <= 0 {
		return DefaultMaxTranscriptChars
	}
	return s.MaxTranscriptChars
}

// providerError wraps a provider failure, marking it transient when the
// HTTP status says a retry may succeed.
func providerError(err error, status int, msg string) error {
	wrapped := eris.Wrap(err, msg)
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(wrapped, status)
	}
	return wrapped
}
