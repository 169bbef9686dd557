// Package llm wraps the text-generation capability the assistant depends on.
// Every component talks to the model through Generator so tests can swap in
// scripted fakes.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// Generator produces text from a system and a user prompt. Output is
// untrusted: callers validate it and degrade to defaults.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
}

// Conversational generates from a full message list (system, history, user).
type Conversational interface {
	Converse(ctx context.Context, messages []*schema.Message, temperature float32) (string, error)
}

// ChatGenerator adapts an eino chat model to Generator and Conversational.
type ChatGenerator struct {
	chat      einomodel.BaseChatModel
	modelName string
	name      string
}

// NewChatGenerator wraps chat; name tags log lines (e.g. "classifier").
func NewChatGenerator(chat einomodel.BaseChatModel, modelName, name string) *ChatGenerator {
	return &ChatGenerator{chat: chat, modelName: modelName, name: name}
}

// ModelName returns the configured model identifier.
func (g *ChatGenerator) ModelName() string {
	return g.modelName
}

func (g *ChatGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	return g.Converse(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}, temperature)
}

func (g *ChatGenerator) Converse(ctx context.Context, messages []*schema.Message, temperature float32) (string, error) {
	if g == nil || g.chat == nil {
		return "", errx.WrapLLM(fmt.Errorf("chat model is not initialised"))
	}
	out, err := g.chat.Generate(ctx, messages, einomodel.WithTemperature(temperature))
	if err != nil {
		logx.Error().Err(err).Str("generator", g.name).Str("model", g.modelName).Msg("generation failed")
		return "", errx.WrapLLM(err)
	}
	if out == nil {
		return "", errx.WrapLLM(fmt.Errorf("model returned no message"))
	}

	var tokenUsage *schema.TokenUsage
	if out.ResponseMeta != nil {
		tokenUsage = out.ResponseMeta.Usage
	}
	usage := model.ComputeUsage(g.modelName, tokenUsage)
	MeterFrom(ctx).Add(usage)
	logx.Debug().
		Str("generator", g.name).
		Str("model", g.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Float64("total_cost_usd", usage.TotalCost).
		Msg("LLM usage")

	return strings.TrimSpace(out.Content), nil
}

// UsageMeter accumulates cost across the model calls of one request.
type UsageMeter struct {
	mu       sync.Mutex
	calls    int
	totalUSD float64
}

// Add records one call. A nil meter ignores the call.
func (m *UsageMeter) Add(u model.Usage) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.totalUSD += u.TotalCost
}

// Snapshot returns the number of calls and accumulated cost.
func (m *UsageMeter) Snapshot() (calls int, totalUSD float64) {
	if m == nil {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.totalUSD
}

type meterKey struct{}

// WithUsageMeter attaches m to ctx so every generation below records into it.
func WithUsageMeter(ctx context.Context, m *UsageMeter) context.Context {
	return context.WithValue(ctx, meterKey{}, m)
}

// MeterFrom returns the meter attached to ctx, or nil.
func MeterFrom(ctx context.Context) *UsageMeter {
	m, _ := ctx.Value(meterKey{}).(*UsageMeter)
	return m
}
