package evaluator

import (
	"context"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/pkg/gemini"
)

// Gemini scores transcripts with Google Gemini in JSON response mode.
type Gemini struct {
	client   gemini.Client
	settings Settings
}

// NewGemini creates a Gemini-backed evaluator.
func NewGemini(client gemini.Client, settings Settings) *Gemini {
	return &Gemini{client: client, settings: settings}
}

func (g *Gemini) Provider() string { return ProviderGemini }
func (g *Gemini) Model() string    { return g.settings.Model }

func (g *Gemini) Evaluate(ctx context.Context, req Request) (*model.Evaluation, error) {
	p := BuildPrompt(req.Criteria, req.Transcript, g.settings.maxChars())

	resp, err := g.client.GenerateJSON(ctx, gemini.Request{
		Model:           g.settings.Model,
		System:          p.System,
		Prompt:          p.User,
		Temperature:     float32(g.settings.Temperature),
		MaxOutputTokens: int32(g.settings.MaxTokens),
	})
	if err != nil {
		return nil, providerError(err, gemini.StatusCode(err), "evaluator: gemini")
	}
	resp.Usage.LogUsage(g.settings.Model, req.CallID)

	return Parse(resp.Text)
}
