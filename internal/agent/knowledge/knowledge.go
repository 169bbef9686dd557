// Package knowledge answers general questions from an embedded knowledge
// base, keeping the recent conversation in the prompt.
package knowledge

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/graph/conversations"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/retrieval"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.knowledge")

const (
	DefaultTopK        = 3
	DefaultTemperature = 0.4
)

// Answerer answers from the passages of one knowledge corpus.
type Answerer struct {
	retriever   retrieval.Retriever
	chat        llm.Conversational
	history     *conversations.MessagesManager
	topK        int
	temperature float32
}

// NewAnswerer builds an Answerer. history may be nil.
func NewAnswerer(retriever retrieval.Retriever, chat llm.Conversational, history *conversations.MessagesManager, topK int, temperature float32) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{
		retriever:   retriever,
		chat:        chat,
		history:     history,
		topK:        topK,
		temperature: temperature,
	}
}

// Answer retrieves the best passages of corpusID and asks the model.
// Failures become a generic apology.
func (a *Answerer) Answer(ctx context.Context, sessionID, question, corpusID string) string {
	ctx, span := tracer.Start(ctx, "Answerer.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("corpus", corpusID))

	matches, err := a.retriever.Retrieve(ctx, question, corpusID, a.topK)
	if err != nil {
		span.RecordError(err)
		logx.Component("knowledge").Warn().Err(err).Str("corpus", corpusID).Msg("retrieval failed")
		return errx.ApologyGeneric
	}
	passages := make([]string, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, m.Content)
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))

	system, err := prompts.RenderKnowledgeSystem(ctx, passages)
	if err != nil {
		span.RecordError(err)
		logx.Component("knowledge").Error().Err(err).Msg("prompt render failed")
		return errx.ApologyGeneric
	}

	answer, err := a.chat.Converse(ctx, a.history.BuildContext(ctx, sessionID, system, question), a.temperature)
	if err != nil {
		span.RecordError(err)
		return errx.ApologyGeneric
	}
	return answer
}
