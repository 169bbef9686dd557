package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spacecopilot/server/internal/agent/graph/conversations"
	"github.com/spacecopilot/server/internal/agent/graph/nodes"
	"github.com/spacecopilot/server/internal/agent/graph/observers"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.graph")

// maxRunSteps bounds one chat turn: converter, classifier, one answer node.
const maxRunSteps = 10

// Runner executes the compiled chat graph for one resident message.
type Runner interface {
	Invoke(ctx context.Context, in model.ChatInput) model.ChatReply
}

// GraphConfig holds all components the chat graph dispatches to.
type GraphConfig struct {
	Classifier      nodes.IntentClassifier
	Spaces          nodes.SpaceAdvisor
	Negotiator      nodes.Negotiator
	Questions       nodes.QuestionAnswerer
	MessagesManager *conversations.MessagesManager
}

// GraphBuilder handles the construction of the chat graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.ChatInput, model.ChatReply]
}

type graphRunner struct {
	runnable compose.Runnable[model.ChatInput, model.ChatReply]
}

// Invoke never fails. An error escaping the graph is logged and answered
// with the generic apology.
func (r *graphRunner) Invoke(ctx context.Context, in model.ChatInput) model.ChatReply {
	ctx, span := tracer.Start(ctx, "Runner.Invoke", trace.WithAttributes(attribute.String("session_id", in.SessionID)))
	defer span.End()

	meter := &llm.UsageMeter{}
	ctx = llm.WithUsageMeter(ctx, meter)

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	calls, cost := meter.Snapshot()
	span.SetAttributes(attribute.Int("model_calls", calls), attribute.Float64("cost_usd", cost))
	logx.Debug().
		Str("session_id", in.SessionID).
		Int("model_calls", calls).
		Float64("total_cost_usd", cost).
		Msg("Chat turn finished")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat graph failed")
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("Chat graph failed")
		return model.ChatReply{Intent: model.IntentOther, Result: errx.ApologyGeneric}
	}
	span.SetAttributes(attribute.String("intent", out.Intent))
	return out
}

// NewRunner builds the chat graph and returns a Runner over it.
func NewRunner(ctx context.Context, cfg *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Chat graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled chat graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.ChatInput, model.ChatReply], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Classifier == nil || config.Spaces == nil || config.Negotiator == nil || config.Questions == nil {
		return nil, fmt.Errorf("graph components are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.ChatInput, model.ChatReply](
			compose.WithGenLocalState(func(ctx context.Context) *model.ChatState {
				return &model.ChatState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	save := compose.WithStatePostHandler(nodes.NewReplyPostHandler(b.config.MessagesManager))

	steps := []struct {
		name string
		node *compose.Lambda
		opts []compose.GraphAddNodeOpt
	}{
		{nodes.NodeInputConverter, nodes.NewInputConverterNode(),
			[]compose.GraphAddNodeOpt{compose.WithStatePreHandler(nodes.NewInputConverterPreHandler())}},
		{nodes.NodeIntentClassifier, nodes.NewIntentClassifierNode(b.config.Classifier),
			[]compose.GraphAddNodeOpt{compose.WithStatePostHandler(nodes.NewIntentClassifierPostHandler())}},
		{nodes.NodeSpaceQnA, nodes.NewSpaceQnANode(b.config.Spaces), []compose.GraphAddNodeOpt{save}},
		{nodes.NodeNegotiator, nodes.NewNegotiatorNode(b.config.Negotiator), []compose.GraphAddNodeOpt{save}},
		{nodes.NodeQuestionAnswerer, nodes.NewQuestionAnswererNode(b.config.Questions), []compose.GraphAddNodeOpt{save}},
		{nodes.NodeFallback, nodes.NewFallbackNode(), []compose.GraphAddNodeOpt{save}},
	}

	for _, s := range steps {
		opts := append([]compose.GraphAddNodeOpt{compose.WithNodeName(s.name)}, s.opts...)
		if err := b.graph.AddLambdaNode(s.name, s.node, opts...); err != nil {
			logx.Error().Err(err).Str("node", s.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.name, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeIntentClassifier},
	}
	for _, name := range nodes.AnswerNodes {
		edges = append(edges, [2]string{name, compose.END})
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the classified message to its answering node
func (b *GraphBuilder) addBranches() error {
	targets := make(map[string]bool, len(nodes.AnswerNodes))
	for _, name := range nodes.AnswerNodes {
		targets[name] = true
	}

	intentBranch := compose.NewGraphBranch(nodes.NewIntentCondition(), targets)
	if err := b.graph.AddBranch(nodes.NodeIntentClassifier, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.ChatInput, model.ChatReply], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps), compose.WithGraphName("ChatGraph"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
