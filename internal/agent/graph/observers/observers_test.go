package observers

import (
	"context"
	"errors"
	"testing"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastUserContent(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("rules"),
		schema.UserMessage(" first "),
		nil,
		schema.AssistantMessage("reply", nil),
		schema.UserMessage(" second "),
		schema.AssistantMessage("later", nil),
	}
	assert.Equal(t, "second", lastUserContent(msgs))
	assert.Empty(t, lastUserContent(nil))
}

func TestUsageOf(t *testing.T) {
	_, ok := usageOf(nil)
	assert.False(t, ok)
	_, ok = usageOf(&model.CallbackOutput{Message: schema.AssistantMessage("hi", nil)})
	assert.False(t, ok)

	msg := schema.AssistantMessage("hi", nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
		PromptTokens:     1_000_000,
		CompletionTokens: 1_000_000,
		TotalTokens:      2_000_000,
	}}
	u, ok := usageOf(&model.CallbackOutput{Message: msg, Config: &model.Config{Model: "gemini-2.5-flash"}})
	require.True(t, ok)
	assert.Equal(t, "gemini-2.5-flash", u.Model)
	assert.Equal(t, 2_000_000, u.TotalTokens)
	assert.InDelta(t, 2.80, u.TotalCost, 1e-9)
}

func TestNodeHandlerKeepsContext(t *testing.T) {
	h := newNodeHandler()
	info := &einocb.RunInfo{Name: "IntentClassifier"}
	ctx := h.OnStart(context.Background(), info, nil)
	_, ok := ctx.Value(startKey{}).(time.Time)
	assert.True(t, ok)
	assert.NotNil(t, h.OnEnd(ctx, info, nil))
	assert.NotNil(t, h.OnError(ctx, info, errors.New("boom")))
	assert.NotNil(t, NewAllCallbacks())
	assert.NotNil(t, NewPromptCallbacks())
}
