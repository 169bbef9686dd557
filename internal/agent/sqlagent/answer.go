package sqlagent

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	"github.com/spacecopilot/server/internal/agent/retrieval"
	errx "github.com/spacecopilot/server/internal/core/error"
	logx "github.com/spacecopilot/server/pkg/logger"
)

// Database is what the answerer needs from the building database.
type Database interface {
	Executor
	GetSchema(ctx context.Context) (model.SchemaMap, error)
	FormatContext(ctx context.Context, schema model.SchemaMap) (string, error)
}

// Stage names where a question stopped.
const (
	StageSchema   = "schema"
	StageTable    = "table"
	StageGenerate = "generate"
	StageNoInfo   = "no_information"
	StageRepair   = "repair"
	StageAnswer   = "answer"
	StageAnswered = "answered"
)

// Result is the full trace of one answered question.
type Result struct {
	Question string
	// Focused is the question with the column hint, when a column matched.
	Focused          string
	Table            string
	ExplicitTable    bool
	Column           string
	TableDescription string
	InitialQuery     string
	Resolution       Resolution
	Answer           string
	Stage            string
	Err              error
}

// AnswererConfig wires an Answerer.
type AnswererConfig struct {
	DB        Database
	Retriever retrieval.Retriever
	// Describer supplies descriptions for explicitly named tables. Optional.
	Describer retrieval.Describer
	// Generator writes queries; Answerer phrases the final sentence.
	Generator llm.Generator
	Answerer  llm.Generator
	Repairer  *Repairer
	// DescriptionsCorpus is the table-description corpus id.
	DescriptionsCorpus string
	QueryTemperature   float32
	AnswerTemperature  float32
}

// Answerer turns a data question into a sentence backed by a query.
type Answerer struct {
	cfg AnswererConfig
}

// NewAnswerer builds an Answerer. A nil Repairer gets one backed by an
// LLMFixer over the query generator. A nil answer generator reuses it too.
func NewAnswerer(cfg AnswererConfig) *Answerer {
	if cfg.Repairer == nil {
		cfg.Repairer = NewRepairer(NewLLMFixer(cfg.Generator, cfg.QueryTemperature), DefaultMaxAttempts)
	}
	if cfg.Answerer == nil {
		cfg.Answerer = cfg.Generator
	}
	return &Answerer{cfg: cfg}
}

// Answer returns the answer text. Every failure becomes an apology.
func (a *Answerer) Answer(ctx context.Context, question string) string {
	return a.Resolve(ctx, question).Answer
}

// Resolve runs the whole pipeline and reports where it stopped.
func (a *Answerer) Resolve(ctx context.Context, question string) Result {
	ctx, span := tracer.Start(ctx, "Answerer.Resolve")
	defer span.End()

	res := a.resolve(ctx, question)
	span.SetAttributes(
		attribute.String("stage", res.Stage),
		attribute.String("table", res.Table),
		attribute.Bool("explicit_table", res.ExplicitTable),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		logx.Component("sql_answer").Warn().
			Err(res.Err).
			Str("stage", res.Stage).
			Msg("question not answered")
	}
	return res
}

func (a *Answerer) resolve(ctx context.Context, question string) Result {
	res := Result{Question: question, Focused: question}

	schema, err := a.cfg.DB.GetSchema(ctx)
	if err != nil {
		return res.fail(StageSchema, errx.ApologyGeneric, err)
	}

	if table, ok := FindExplicitTable(question, schema.TableNames()); ok {
		res.Table = table
		res.ExplicitTable = true
		res.TableDescription = a.describe(ctx, table)
	} else {
		table, desc, err := a.retrieveTable(ctx, question)
		if err != nil {
			return res.fail(StageTable, errx.ApologyGeneric, err)
		}
		res.Table = table
		res.TableDescription = desc
	}
	if res.Table == "" {
		return res.fail(StageTable, errx.ApologyNoTable, fmt.Errorf("no relevant table found"))
	}

	tableSchema, ok := schema.Table(res.Table)
	if !ok {
		return res.fail(StageTable, errx.ApologyNoTable, fmt.Errorf("table %q not found in database schema", res.Table))
	}
	schemaContext, err := a.cfg.DB.FormatContext(ctx, tableSchema.Subset())
	if err != nil {
		return res.fail(StageSchema, errx.ApologyGeneric, err)
	}

	if col, ok := FindExplicitColumn(question, tableSchema.Columns); ok {
		res.Column = col
		res.Focused = FocusHint(question, col)
	}

	query, err := a.generate(ctx, schemaContext, res.TableDescription, res.Focused)
	if err != nil {
		return res.fail(StageGenerate, errx.ApologyGeneric, err)
	}
	res.InitialQuery = query
	if strings.Contains(query, prompts.NoInformation) {
		res.Stage = StageNoInfo
		res.Answer = errx.ApologyNoInformation
		return res
	}

	res.Resolution = a.cfg.Repairer.Resolve(ctx, query, schemaContext, res.Focused, a.cfg.DB)
	if res.Resolution.Exhausted() {
		res.Stage = StageRepair
		res.Answer = errx.ApologyQueryFailed
		return res
	}

	answer, err := a.buildAnswer(ctx, res.Resolution.Query, res.Resolution.Rows.String(), res.Focused)
	if err != nil {
		return res.fail(StageAnswer, errx.ApologyGeneric, err)
	}
	res.Stage = StageAnswered
	res.Answer = answer
	return res
}

func (r Result) fail(stage, apology string, err error) Result {
	r.Stage = stage
	r.Answer = apology
	r.Err = err
	return r
}

// retrieveTable asks the description corpus for the single best table.
// The table is the first word of the matched record name.
func (a *Answerer) retrieveTable(ctx context.Context, question string) (string, string, error) {
	if a.cfg.Retriever == nil {
		return "", "", nil
	}
	matches, err := a.cfg.Retriever.Retrieve(ctx, question, a.cfg.DescriptionsCorpus, 1)
	if err != nil {
		return "", "", err
	}
	if len(matches) == 0 {
		return "", "", nil
	}
	return retrieval.FirstWord(matches[0].Name), matches[0].Content, nil
}

func (a *Answerer) describe(ctx context.Context, table string) string {
	if a.cfg.Describer == nil {
		return ""
	}
	desc, ok, err := a.cfg.Describer.Describe(ctx, a.cfg.DescriptionsCorpus, table)
	if err != nil {
		logx.Component("sql_answer").Warn().Err(err).Str("table", table).Msg("table description lookup failed")
		return ""
	}
	if !ok {
		return ""
	}
	return desc
}

func (a *Answerer) generate(ctx context.Context, schemaContext, description, question string) (string, error) {
	p, err := prompts.RenderSQLGenerate(ctx, schemaContext, description, question)
	if err != nil {
		return "", err
	}
	out, err := a.cfg.Generator.Generate(ctx, p.System, p.User, a.cfg.QueryTemperature)
	if err != nil {
		return "", err
	}
	return CleanQuery(out), nil
}

func (a *Answerer) buildAnswer(ctx context.Context, query, result, question string) (string, error) {
	p, err := prompts.RenderSQLAnswer(ctx, query, result, question)
	if err != nil {
		return "", err
	}
	return a.cfg.Answerer.Generate(ctx, p.System, p.User, a.cfg.AnswerTemperature)
}
