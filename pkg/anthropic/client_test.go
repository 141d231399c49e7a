package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestCreateMessage_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	req := MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 4000,
		System:    BuildCachedSystemBlocks("You audit calls."),
		Messages:  []Message{{Role: "user", Content: "Transcript: agent greeted the customer"}},
	}
	mc.On("CreateMessage", ctx, req).Return(&MessageResponse{
		ID:      "msg_1",
		Content: []ContentBlock{{Type: "text", Text: `{"overall_score": 80}`}},
		Usage:   TokenUsage{InputTokens: 1200, OutputTokens: 300},
	}, nil)

	resp, err := mc.CreateMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 80}`, resp.Text())
	mc.AssertExpectations(t)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "{\"a\":"},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "1}"},
	}}
	assert.Equal(t, `{"a":1}`, resp.Text())
	assert.Empty(t, (&MessageResponse{}).Text())
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("rubric")
	require.Len(t, blocks, 1)
	assert.Equal(t, "rubric", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)

	assert.Nil(t, BuildCachedSystemBlocks(""))
}

func TestSDKTypeConversion_toSDKMessages(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
		{Role: "unknown", Content: "treated as user"},
	}

	sdkMsgs := toSDKMessages(msgs)
	require.Len(t, sdkMsgs, 3)
	assert.Equal(t, "user", string(sdkMsgs[0].Role))
	assert.Equal(t, "assistant", string(sdkMsgs[1].Role))
	assert.Equal(t, "user", string(sdkMsgs[2].Role))
}

func TestSDKTypeConversion_toSDKSystemBlocks(t *testing.T) {
	blocks := []SystemBlock{
		{Text: "You audit calls."},
		{Text: "Criteria here.", CacheControl: &CacheControl{TTL: "1h"}},
	}

	sdkBlocks := toSDKSystemBlocks(blocks)
	require.Len(t, sdkBlocks, 2)
	assert.Equal(t, "You audit calls.", sdkBlocks[0].Text)
	assert.Equal(t, "Criteria here.", sdkBlocks[1].Text)
}

func TestEstimateCost_Haiku(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	// input: 1M * $1.00 = $1.00
	// output: 1M * $5.00 = $5.00
	assert.InDelta(t, 6.00, cost, 0.001)
}

func TestEstimateCost_Sonnet(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.00, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
}

func TestEstimateCost_WithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              500_000,
		OutputTokens:             100_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     300_000,
	}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	// input: 0.5M * $1.00 = $0.50
	// output: 0.1M * $5.00 = $0.50
	// cacheWrite: 0.2M * $1.00 * 1.25 = $0.25
	// cacheRead: 0.3M * $1.00 * 0.10 = $0.03
	assert.InDelta(t, 1.28, cost, 0.001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.Equal(t, 0.0, usage.EstimateCost("unknown-model"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "call-1")
	})
	assert.NotPanics(t, func() {
		TokenUsage{}.LogCost("unknown-model", "")
	})
}
