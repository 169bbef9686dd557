package llm

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
)

type fakeChatModel struct {
	reply       *schema.Message
	err         error
	got         []*schema.Message
	temperature *float32
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.got = in
	f.temperature = einomodel.GetCommonOptions(nil, opts...).Temperature
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestGenerateMetersUsage(t *testing.T) {
	chat := &fakeChatModel{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: "  O3 is the closest space.  ",
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens: 1_000_000, CompletionTokens: 200_000, TotalTokens: 1_200_000,
		}},
	}}
	g := NewChatGenerator(chat, "gemini-2.5-flash", "answer")
	assert.Equal(t, "gemini-2.5-flash", g.ModelName())

	meter := &UsageMeter{}
	out, err := g.Generate(WithUsageMeter(context.Background(), meter), "system", "Which space is closest?", 0.4)
	require.NoError(t, err)
	assert.Equal(t, "O3 is the closest space.", out)

	require.Len(t, chat.got, 2)
	assert.Equal(t, schema.System, chat.got[0].Role)
	assert.Equal(t, "Which space is closest?", chat.got[1].Content)
	require.NotNil(t, chat.temperature)
	assert.Equal(t, float32(0.4), *chat.temperature)

	calls, cost := meter.Snapshot()
	assert.Equal(t, 1, calls)
	assert.InDelta(t, 0.8, cost, 1e-9)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *ChatGenerator
	}{
		{"model error", NewChatGenerator(&fakeChatModel{err: errors.New("503")}, "gemini-2.5-flash", "answer")},
		{"no message", NewChatGenerator(&fakeChatModel{}, "gemini-2.5-flash", "answer")},
		{"no model", NewChatGenerator(nil, "gemini-2.5-flash", "answer")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter := &UsageMeter{}
			_, err := tt.gen.Generate(WithUsageMeter(context.Background(), meter), "s", "u", 0)

			var appErr *errx.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, errx.LLMErrorMessage, appErr.Message)
			calls, _ := meter.Snapshot()
			assert.Zero(t, calls)
		})
	}
}

func TestUsageMeterWithoutContext(t *testing.T) {
	assert.Nil(t, MeterFrom(context.Background()))

	var m *UsageMeter
	m.Add(model.Usage{TotalCost: 2})
	calls, cost := m.Snapshot()
	assert.Zero(t, calls)
	assert.Zero(t, cost)
}
