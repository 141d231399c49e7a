// Package gemini wraps the Google Generative AI SDK behind the small
// surface the call auditor needs: one JSON completion per transcript.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client defines the Gemini operations used by the evaluator.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// Request is one JSON-mode generation.
type Request struct {
	Model           string
	System          string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int32
}

// Response carries the generated text and token accounting.
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage tracks token consumption reported by the API.
type Usage struct {
	PromptTokens    int32
	CandidateTokens int32
	TotalTokens     int32
}

// LogUsage logs token usage for one audited call.
func (u Usage) LogUsage(model, callID string) {
	zap.L().Info("gemini: usage",
		zap.String("model", model),
		zap.String("call_id", callID),
		zap.Int32("prompt_tokens", u.PromptTokens),
		zap.Int32("candidate_tokens", u.CandidateTokens),
		zap.Int32("total_tokens", u.TotalTokens),
	)
}

// ErrEmptyResponse is returned when the API answers without any text.
var ErrEmptyResponse = eris.New("gemini: empty response")

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	c, err := genai.NewClient(ctx, all...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: c}, nil
}

func (c *sdkClient) GenerateJSON(ctx context.Context, req Request) (*Response, error) {
	model := c.client.GenerativeModel(req.Model)
	configure(model, req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	return fromSDKResponse(resp)
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}

func configure(model *genai.GenerativeModel, req Request) {
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
}

func fromSDKResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	out := &Response{FinishReason: candidate.FinishReason.String()}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:    resp.UsageMetadata.PromptTokenCount,
			CandidateTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:     resp.UsageMetadata.TotalTokenCount,
		}
	}
	if candidate.Content == nil {
		return nil, ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	out.Text = b.String()
	return out, nil
}

// StatusCode extracts the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
