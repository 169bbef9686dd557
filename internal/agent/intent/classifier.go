// Package intent classifies a chat message into one of the chat intents.
package intent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/graph/parsers"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.intent")

// Classifier asks the classifier model for the intent of a message.
type Classifier struct {
	gen         llm.Generator
	temperature float32
}

func NewClassifier(gen llm.Generator, temperature float32) *Classifier {
	return &Classifier{gen: gen, temperature: temperature}
}

// Classify never fails. Anything other than a single known intent, including
// a failed model call, becomes the "other" intent.
func (c *Classifier) Classify(ctx context.Context, message string) model.ActionRequest {
	ctx, span := tracer.Start(ctx, "Classifier.Classify")
	defer span.End()

	req := c.classify(ctx, message)
	span.SetAttributes(attribute.String("intent", req.Action()))
	return req
}

func (c *Classifier) classify(ctx context.Context, message string) model.ActionRequest {
	p, err := prompts.RenderIntent(ctx, message)
	if err != nil {
		logx.Component("intent").Error().Err(err).Msg("prompt render failed")
		return Other("")
	}
	out, err := c.gen.Generate(ctx, p.System, p.User, c.temperature)
	if err != nil {
		logx.Component("intent").Warn().Err(err).Msg("classification call failed")
		return Other("")
	}

	req := parsers.ParseActionRequest(out)
	if req.Kind != model.ActionSingle || !model.KnownIntent(req.Action()) {
		logx.Component("intent").Warn().
			Str("kind", req.Kind.String()).
			Strs("actions", req.Actions).
			Msg("unusable classification, defaulting to other")
		return Other(req.Reasoning)
	}
	return req
}

// Other is the default classification.
func Other(reasoning string) model.ActionRequest {
	return model.SingleAction(model.IntentOther, model.NewParams(nil), reasoning)
}
