// Package router splits a resident question into parts and sends each part
// to the database, to a knowledge corpus, or nowhere.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/graph/parsers"
	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.router")

// Router decides the destination of every part of a question.
type Router struct {
	gen         llm.Generator
	rules       *Rules
	temperature float32
}

// New builds a Router over a classifier generator.
func New(gen llm.Generator, rules *Rules, temperature float32) *Router {
	return &Router{gen: gen, rules: rules, temperature: temperature}
}

// Route returns at least one part, in question order. A forced mapping
// short-circuits to a single knowledge part; any split failure routes the
// whole question to the default topic.
func (r *Router) Route(ctx context.Context, question string) []model.RoutedPart {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	parts, stage := r.route(ctx, question)
	span.SetAttributes(attribute.Int("parts", len(parts)), attribute.String("stage", stage))
	logx.Component("router").Debug().
		Str("stage", stage).
		Int("parts", len(parts)).
		Msg("question routed")
	return parts
}

func (r *Router) route(ctx context.Context, question string) ([]model.RoutedPart, string) {
	if topic, ok := r.rules.Forced(question); ok {
		file, _ := r.rules.File(topic)
		return []model.RoutedPart{model.KnowledgePart(question, file)}, "forced"
	}

	split, err := r.split(ctx, question)
	if err != nil {
		logx.Component("router").Warn().Err(err).Msg("split failed, using default topic")
		return []model.RoutedPart{r.fallback(question)}, "fallback"
	}

	parts := make([]model.RoutedPart, 0, len(split))
	for _, p := range split {
		switch p.Dest() {
		case model.DestinationSQL:
			parts = append(parts, model.SQLPart(p.Text))
		case model.DestinationKnowledge:
			parts = append(parts, model.KnowledgePart(p.Text, r.topicFile(ctx, p.Text)))
		default:
			parts = append(parts, model.UnhandledPart(p.Text))
		}
	}
	return parts, "split"
}

func (r *Router) split(ctx context.Context, question string) ([]parsers.SplitPart, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("empty question")
	}
	p, err := prompts.RenderRouterSplit(ctx, question)
	if err != nil {
		return nil, err
	}
	out, err := r.gen.Generate(ctx, p.System, p.User, r.temperature)
	if err != nil {
		return nil, err
	}
	return parsers.ParseSplit(out)
}

// topicFile resolves the knowledge corpus of one part. Forced mappings win,
// then the topic classifier; anything unknown uses the default topic.
func (r *Router) topicFile(ctx context.Context, part string) string {
	if topic, ok := r.rules.Forced(part); ok {
		file, _ := r.rules.File(topic)
		return file
	}

	p, err := prompts.RenderRouterTopic(ctx, part, r.rules.Options())
	if err != nil {
		logx.Component("router").Warn().Err(err).Msg("topic prompt failed")
		return r.rules.DefaultFile()
	}
	out, err := r.gen.Generate(ctx, p.System, p.User, r.temperature)
	if err != nil {
		return r.rules.DefaultFile()
	}
	label, err := parsers.ParseTopic(out)
	if err != nil {
		logx.Component("router").Warn().Err(err).Msg("topic unparseable, using default topic")
		return r.rules.DefaultFile()
	}
	file, known := r.rules.File(label)
	if !known {
		logx.Component("router").Warn().Str("topic", label).Msg("unknown topic, using default topic")
	}
	return file
}

func (r *Router) fallback(question string) model.RoutedPart {
	return model.KnowledgePart(question, r.rules.DefaultFile())
}

// SQLAnswerer answers a data question.
type SQLAnswerer interface {
	Answer(ctx context.Context, question string) string
}

// KnowledgeAnswerer answers a general question from one corpus.
type KnowledgeAnswerer interface {
	Answer(ctx context.Context, sessionID, question, corpusID string) string
}

// QuestionAnswerer routes a question and answers every part in order.
type QuestionAnswerer struct {
	router    *Router
	sql       SQLAnswerer
	knowledge KnowledgeAnswerer
}

func NewQuestionAnswerer(router *Router, sql SQLAnswerer, knowledge KnowledgeAnswerer) *QuestionAnswerer {
	return &QuestionAnswerer{router: router, sql: sql, knowledge: knowledge}
}

// Answer returns the combined, labelled answer text.
func (q *QuestionAnswerer) Answer(ctx context.Context, sessionID, question string) string {
	parts := q.router.Route(ctx, question)
	answers := make([]string, len(parts))
	for i, part := range parts {
		switch part.Destination {
		case model.DestinationSQL:
			answers[i] = q.sql.Answer(ctx, part.Text)
		case model.DestinationKnowledge:
			answers[i] = q.knowledge.Answer(ctx, sessionID, part.Text, part.EmbeddingFile)
		default:
			answers[i] = errx.ApologyUnhandledPart
		}
	}
	return Combine(parts, answers)
}

// Combine labels each answer with its part and joins them in part order.
func Combine(parts []model.RoutedPart, answers []string) string {
	var b strings.Builder
	for i, part := range parts {
		answer := errx.ApologyUnhandledPart
		if i < len(answers) {
			answer = answers[i]
		}
		label := "Error"
		switch part.Destination {
		case model.DestinationSQL:
			label = "SQL Answer"
		case model.DestinationKnowledge:
			label = "Knowledge Answer"
		}
		fmt.Fprintf(&b, "\n(%s for: \"%s\")\n%s", label, part.Text, answer)
	}
	return strings.TrimSpace(b.String())
}
