package sqlagent

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/graph/prompts"
	"github.com/spacecopilot/server/internal/agent/llm"
	"github.com/spacecopilot/server/internal/agent/model"
	logx "github.com/spacecopilot/server/pkg/logger"
)

var tracer = otel.Tracer("spacecopilot.agent.sqlagent")

// ExhaustedMarker is returned as the final query when every attempt failed.
const ExhaustedMarker = "Failed to generate a correct SQL query after multiple attempts..."

// DefaultMaxAttempts bounds the repair loop when no bound is configured.
const DefaultMaxAttempts = 3

// ErrNotReadOnly is recorded when a generated statement would write.
var ErrNotReadOnly = errors.New("only read-only SELECT queries are allowed")

// Executor runs one query against the database.
type Executor interface {
	Execute(ctx context.Context, query string) (*model.Rows, error)
}

// Fixer proposes a replacement query given every failed attempt so far.
type Fixer interface {
	Fix(ctx context.Context, schemaContext, question string, history []model.QueryAttempt) (string, error)
}

// Resolution is the outcome of one repair loop.
type Resolution struct {
	// Query is the query that produced Rows, or ExhaustedMarker.
	Query string
	// Rows is nil when the loop was exhausted.
	Rows *model.Rows
	// Attempts holds every failed attempt in order.
	Attempts []model.QueryAttempt
	// Executions counts queries actually sent to the database.
	Executions int
}

// Exhausted reports whether every attempt failed.
func (r Resolution) Exhausted() bool {
	return r.Rows.Empty()
}

// Repairer executes a query and, on error or empty result, asks a Fixer for
// a replacement, up to MaxAttempts loop iterations.
type Repairer struct {
	fixer       Fixer
	maxAttempts int
}

// NewRepairer builds a Repairer. A non-positive maxAttempts uses DefaultMaxAttempts.
func NewRepairer(fixer Fixer, maxAttempts int) *Repairer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Repairer{fixer: fixer, maxAttempts: maxAttempts}
}

// MaxAttempts returns the configured bound.
func (r *Repairer) MaxAttempts() int {
	return r.maxAttempts
}

// Resolve runs initialQuery and repairs it until it yields rows or the
// attempt bound is reached. Database and fixer failures are folded into the
// attempt history; only exhaustion is reported, as data.
func (r *Repairer) Resolve(ctx context.Context, initialQuery, schemaContext, question string, exec Executor) Resolution {
	ctx, span := tracer.Start(ctx, "Repairer.Resolve")
	defer span.End()

	var res Resolution
	query := strings.TrimSpace(initialQuery)
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Attempts = append(res.Attempts, model.QueryAttempt{Query: query, Error: ctx.Err().Error()})
			break
		}

		failure := r.try(ctx, query, exec, &res)
		if failure == nil {
			span.SetAttributes(attribute.Int("attempts", attempt), attribute.Bool("exhausted", false))
			return res
		}
		res.Attempts = append(res.Attempts, *failure)
		logx.Component("sql_repair").Debug().
			Int("attempt", attempt).
			Str("query", failure.Query).
			Str("error", failure.Error).
			Msg("query attempt failed")

		if attempt == r.maxAttempts {
			break
		}
		query = r.nextQuery(ctx, schemaContext, question, res.Attempts)
	}

	logx.Component("sql_repair").Warn().
		Int("attempts", len(res.Attempts)).
		Msg("query repair exhausted")
	span.SetAttributes(attribute.Int("attempts", len(res.Attempts)), attribute.Bool("exhausted", true))
	res.Query = ExhaustedMarker
	res.Rows = nil
	return res
}

// try executes query and returns the failed attempt, or nil on success.
func (r *Repairer) try(ctx context.Context, query string, exec Executor, res *Resolution) *model.QueryAttempt {
	if query == "" {
		return &model.QueryAttempt{Query: query, Error: model.AttemptNoQuery}
	}
	if !IsReadOnly(query) {
		return &model.QueryAttempt{Query: query, Error: ErrNotReadOnly.Error()}
	}
	res.Executions++
	rows, err := exec.Execute(ctx, query)
	if err != nil {
		return &model.QueryAttempt{Query: query, Error: err.Error()}
	}
	if rows.Empty() {
		return &model.QueryAttempt{Query: query, Error: model.AttemptEmptyResult}
	}
	res.Query = query
	res.Rows = rows
	return nil
}

func (r *Repairer) nextQuery(ctx context.Context, schemaContext, question string, attempts []model.QueryAttempt) string {
	if r.fixer == nil {
		return ""
	}
	history := make([]model.QueryAttempt, len(attempts))
	copy(history, attempts)
	q, err := r.fixer.Fix(ctx, schemaContext, question, history)
	if err != nil {
		logx.Component("sql_repair").Warn().Err(err).Msg("fixer failed")
		return ""
	}
	return strings.TrimSpace(q)
}

var (
	leadingComments = regexp.MustCompile(`(?s)^(\s*(--[^\n]*\n|/\*.*?\*/))*\s*`)
	writeKeyword    = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|attach|detach|pragma|vacuum|reindex)\b`)
)

// IsReadOnly reports whether query is a single SELECT (or WITH ... SELECT)
// statement without write keywords. Quoted literals and identifiers are
// blanked before the statement separator and the keywords are looked for.
func IsReadOnly(query string) bool {
	q := leadingComments.ReplaceAllString(query, "")
	q = stripQuoted(q)
	q = strings.TrimRight(strings.TrimSpace(q), "; \t\n")
	if strings.Contains(q, ";") {
		return false
	}
	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return false
	}
	return !writeKeyword.MatchString(q)
}

// quoted matches string literals ('...') and the identifier quotes SQLite
// accepts ("...", `...`, [...]), with doubled quotes as escapes.
var quoted = regexp.MustCompile("'(?:[^']|'')*'|\"(?:[^\"]|\"\")*\"|`(?:[^`]|``)*`|\\[[^\\]]*\\]")

func stripQuoted(q string) string {
	return quoted.ReplaceAllString(q, "''")
}

// LLMFixer asks the model for a corrected query.
type LLMFixer struct {
	gen         llm.Generator
	temperature float32
}

// NewLLMFixer builds a Fixer backed by gen.
func NewLLMFixer(gen llm.Generator, temperature float32) *LLMFixer {
	return &LLMFixer{gen: gen, temperature: temperature}
}

var newQueryMarker = regexp.MustCompile(`(?s)#NEW QUERY#:\s*(.*)`)

// Fix renders the repair prompt with the full history and extracts the
// text after "#NEW QUERY#:". A reply without the marker yields "".
func (f *LLMFixer) Fix(ctx context.Context, schemaContext, question string, history []model.QueryAttempt) (string, error) {
	p, err := prompts.RenderSQLFix(ctx, schemaContext, question, history)
	if err != nil {
		return "", err
	}
	out, err := f.gen.Generate(ctx, p.System, p.User, f.temperature)
	if err != nil {
		return "", err
	}
	return ExtractNewQuery(out), nil
}

// ExtractNewQuery returns the query following the "#NEW QUERY#:" marker,
// without code fences.
func ExtractNewQuery(reply string) string {
	m := newQueryMarker.FindStringSubmatch(reply)
	if m == nil {
		return ""
	}
	return CleanQuery(m[1])
}

// CleanQuery strips markdown fences and surrounding whitespace from a
// generated query.
func CleanQuery(q string) string {
	q = strings.TrimSpace(q)
	q = strings.TrimPrefix(q, "```sql")
	q = strings.TrimPrefix(q, "```SQL")
	q = strings.TrimPrefix(q, "```")
	q = strings.TrimSuffix(q, "```")
	return strings.TrimSpace(q)
}
