package evaluator

import (
	"context"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/pkg/anthropic"
)

// Anthropic scores transcripts with Claude. The rubric travels as a
// cached system block so repeated calls in a run reuse it.
type Anthropic struct {
	client   anthropic.Client
	settings Settings
}

// NewAnthropic creates an Anthropic-backed evaluator.
func NewAnthropic(client anthropic.Client, settings Settings) *Anthropic {
	return &Anthropic{client: client, settings: settings}
}

func (a *Anthropic) Provider() string { return ProviderAnthropic }
func (a *Anthropic) Model() string    { return a.settings.Model }

func (a *Anthropic) Evaluate(ctx context.Context, req Request) (*model.Evaluation, error) {
	p := BuildPrompt(req.Criteria, req.Transcript, a.settings.maxChars())
	temp := a.settings.Temperature

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.settings.Model,
		MaxTokens:   int64(a.settings.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(p.System),
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, providerError(err, anthropic.StatusCode(err), "evaluator: anthropic")
	}
	resp.Usage.LogCost(a.settings.Model, req.CallID)

	return Parse(resp.Text())
}
