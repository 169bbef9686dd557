// Package prompts renders every prompt the assistant sends to the language
// model. Rendering goes through the eino prompt component so prompt
// callbacks fire for each one.
package prompts

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/spacecopilot/server/internal/agent/model"
)

//go:embed template/*.txt
var templates embed.FS

// NoInformation is the sentinel the query generator emits when the
// database cannot answer a question.
const NoInformation = "No information"

// Pair is a rendered system and user prompt.
type Pair struct {
	System string
	User   string
}

func mustTemplate(name string) string {
	b, err := templates.ReadFile("template/" + name)
	if err != nil {
		panic(fmt.Sprintf("prompts: missing template %s: %v", name, err))
	}
	return string(b)
}

var (
	sqlGenerateSystem     = mustTemplate("sql_generate.txt")
	sqlFixSystem          = mustTemplate("sql_fix.txt")
	sqlAnswerSystem       = mustTemplate("sql_answer.txt")
	knowledgeAnswerSystem = mustTemplate("knowledge_answer.txt")
	routerSplitSystem     = mustTemplate("router_split.txt")
	routerTopicSystem     = mustTemplate("router_topic.txt")
	intentSystem          = mustTemplate("intent.txt")
	negotiationSystem     = mustTemplate("negotiation.txt")
	spaceExplainSystem    = mustTemplate("space_explain.txt")
	spaceGeneralSystem    = mustTemplate("space_general.txt")
	geometrySystem        = mustTemplate("geometry.txt")
	assignmentSystem      = mustTemplate("assignment.txt")
)

// User-side templates. Resident text only ever enters through variables,
// never as template source.
const (
	sqlGenerateUser = "# User question # {{.Question}}"
	sqlFixUser      = "#User question#\n{{.Question}}\n#Failed queries and exceptions#\n{{.Attempts}}"
	sqlAnswerUser   = "User question: {{.Question}}\nSQL Query: {{.Query}}\nSQL Result: {{.Result}}\nAnswer:"
	questionUser    = "{{.Question}}"
	negotiationUser = "{{if .HouseKey}}House key: {{.HouseKey}}\n{{end}}{{.Message}}"
)

// render formats a system and user template through a GoTemplate chat template.
func render(ctx context.Context, name, system, user string, vars map[string]any) (Pair, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return Pair{}, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) != 2 || msgs[0] == nil || msgs[1] == nil {
		return Pair{}, fmt.Errorf("%s prompt render: empty result", name)
	}
	return Pair{System: msgs[0].Content, User: msgs[1].Content}, nil
}

// RenderSQLGenerate renders the query-generation prompt.
func RenderSQLGenerate(ctx context.Context, schemaContext, tableDescription, question string) (Pair, error) {
	return render(ctx, "sql generate", sqlGenerateSystem, sqlGenerateUser, map[string]any{
		"SchemaContext":    schemaContext,
		"TableDescription": tableDescription,
		"NoInformation":    NoInformation,
		"Question":         question,
	})
}

// FormatAttempts renders the full failure history, one line per attempt.
func FormatAttempts(attempts []model.QueryAttempt) string {
	lines := make([]string, len(attempts))
	for i, a := range attempts {
		lines[i] = fmt.Sprintf("#Previously attempted query#:%s. #SQL Exception error#:%s", a.Query, a.Error)
	}
	return strings.Join(lines, "\n")
}

// RenderSQLFix renders the query-repair prompt with every prior attempt.
func RenderSQLFix(ctx context.Context, schemaContext, question string, attempts []model.QueryAttempt) (Pair, error) {
	return render(ctx, "sql fix", sqlFixSystem, sqlFixUser, map[string]any{
		"SchemaContext": schemaContext,
		"Question":      question,
		"Attempts":      FormatAttempts(attempts),
	})
}

// RenderSQLAnswer renders the prompt that turns rows into a sentence.
func RenderSQLAnswer(ctx context.Context, query, result, question string) (Pair, error) {
	return render(ctx, "sql answer", sqlAnswerSystem, sqlAnswerUser, map[string]any{
		"Query":    query,
		"Result":   result,
		"Question": question,
	})
}

// RenderKnowledgeSystem renders the knowledge-base system prompt for the
// retrieved passages. The caller appends history and the question.
func RenderKnowledgeSystem(ctx context.Context, passages []string) (string, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(knowledgeAnswerSystem))
	msgs, err := tpl.Format(ctx, map[string]any{"Passages": passages})
	if err != nil {
		return "", fmt.Errorf("knowledge prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("knowledge prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderRouterSplit renders the question-splitting prompt.
func RenderRouterSplit(ctx context.Context, question string) (Pair, error) {
	return render(ctx, "router split", routerSplitSystem, questionUser, map[string]any{
		"Question": question,
	})
}

// TopicOption is one knowledge topic offered to the topic classifier.
type TopicOption struct {
	Label       string
	Description string
}

// RenderRouterTopic renders the knowledge-topic selection prompt.
func RenderRouterTopic(ctx context.Context, part string, topics []TopicOption) (Pair, error) {
	return render(ctx, "router topic", routerTopicSystem, questionUser, map[string]any{
		"Topics":   topics,
		"Question": part,
	})
}

// RenderIntent renders the chat intent classification prompt.
func RenderIntent(ctx context.Context, message string) (Pair, error) {
	return render(ctx, "intent", intentSystem, questionUser, map[string]any{
		"SpaceQnA":  model.IntentSpaceQnA,
		"Negotiate": model.IntentNegotiate,
		"SQLQuery":  model.IntentSQLQuery,
		"Other":     model.IntentOther,
		"Question":  message,
	})
}

// ActionOption is one negotiation action offered to the suggester.
type ActionOption struct {
	Name        string
	Description string
}

// RenderNegotiation renders the action-suggestion prompt. A non-empty
// houseKey is prefixed to the message.
func RenderNegotiation(ctx context.Context, actions []ActionOption, houseKey, message string) (Pair, error) {
	return render(ctx, "negotiation", negotiationSystem, negotiationUser, map[string]any{
		"Actions":  actions,
		"HouseKey": houseKey,
		"Message":  message,
	})
}
