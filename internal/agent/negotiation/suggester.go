package negotiation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/graph/parsers"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// Suggester asks the model which actions serve a resident's request.
type Suggester struct {
	gen         llm.Generator
	actions     []prompts.ActionOption
	temperature float32
}

func NewSuggester(gen llm.Generator, actions []prompts.ActionOption, temperature float32) *Suggester {
	return &Suggester{gen: gen, actions: actions, temperature: temperature}
}

// Suggest returns the parsed action request. A failed call or unparseable
// output yields the unparseable variant. When the model omits user_id the
// house key is used.
func (s *Suggester) Suggest(ctx context.Context, houseKey, message string) model.ActionRequest {
	ctx, span := tracer.Start(ctx, "Suggester.Suggest")
	defer span.End()

	p, err := prompts.RenderNegotiation(ctx, s.actions, houseKey, message)
	if err != nil {
		logx.Component("suggester").Error().Err(err).Msg("prompt render failed")
		return model.UnparseableAction("")
	}
	out, err := s.gen.Generate(ctx, p.System, p.User, s.temperature)
	if err != nil {
		span.RecordError(err)
		logx.Component("suggester").Warn().Err(err).Msg("suggestion call failed")
		return model.UnparseableAction("")
	}

	req := parsers.ParseActionRequest(out)
	if houseKey != "" && req.Kind != model.ActionUnparseable && req.Parameters.String("user_id") == "" {
		params := req.Parameters.Map()
		params["user_id"] = houseKey
		req.Parameters = model.NewParams(params)
	}
	span.SetAttributes(attribute.String("kind", req.Kind.String()), attribute.StringSlice("actions", req.Actions))
	return req
}

// Outcome is the suggested request with its dispatch results.
type Outcome struct {
	Request  model.ActionRequest
	Dispatch model.Dispatch
}

// Negotiator suggests actions for a message and runs them.
type Negotiator struct {
	suggester  *Suggester
	dispatcher *Dispatcher
}

func NewNegotiator(gen llm.Generator, data DataSource, temperature float32) *Negotiator {
	d := NewDispatcher(data)
	return &Negotiator{suggester: NewSuggester(gen, d.Actions(), temperature), dispatcher: d}
}

// Negotiate never fails; every problem is reported in the dispatch results.
func (n *Negotiator) Negotiate(ctx context.Context, houseKey, message string) Outcome {
	req := n.suggester.Suggest(ctx, houseKey, message)
	return Outcome{Request: req, Dispatch: n.dispatcher.Dispatch(ctx, req)}
}
