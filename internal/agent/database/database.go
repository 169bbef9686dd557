// Package database reads the building database: schema introspection,
// read-only query execution and prompt context rendering.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/spacecopilot/server/internal/agent/model"
	errx "github.com/spacecopilot/server/internal/core/error"
)

var tracer = otel.Tracer("spacecopilot.agent.database")

const defaultSampleRows = 3

// DB wraps a *sql.DB opened on the building database.
type DB struct {
	db         *sql.DB
	sampleRows int
}

// Option configures a DB.
type Option func(*DB)

// WithSampleRows sets how many rows per table FormatContext includes.
func WithSampleRows(n int) Option {
	return func(d *DB) {
		if n >= 0 {
			d.sampleRows = n
		}
	}
}

// New wraps db. The caller keeps ownership and closes it.
func New(db *sql.DB, opts ...Option) *DB {
	d := &DB{db: db, sampleRows: defaultSampleRows}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetSchema returns user tables and their columns in declared order.
// Two reads of an unchanged database return equal maps.
func (d *DB) GetSchema(ctx context.Context) (model.SchemaMap, error) {
	ctx, span := tracer.Start(ctx, "DB.GetSchema")
	defer span.End()

	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errx.WrapDatabase(err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, errx.WrapDatabase(err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errx.WrapDatabase(err)
	}
	_ = rows.Close()

	schema := make(model.SchemaMap, len(tables))
	for _, table := range tables {
		cols, err := d.columns(ctx, table)
		if err != nil {
			return nil, err
		}
		schema[table] = cols
	}
	span.SetAttributes(attribute.Int("tables", len(schema)))
	return schema, nil
}

func (d *DB) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, errx.WrapDatabase(err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errx.WrapDatabase(err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapDatabase(err)
	}
	return cols, nil
}

// Execute runs one query and returns every row. Errors carry the driver
// message so the repair loop can feed it back to the model.
func (d *DB) Execute(ctx context.Context, query string) (*model.Rows, error) {
	ctx, span := tracer.Start(ctx, "DB.Execute")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &model.Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(out.Values)))
	return out, nil
}

// FormatContext renders each table of schema with its columns and a few
// sample rows for query-generation prompts.
func (d *DB) FormatContext(ctx context.Context, schema model.SchemaMap) (string, error) {
	var b strings.Builder
	for _, table := range schema.TableNames() {
		cols := schema[table]
		fmt.Fprintf(&b, "Table: %s\nColumns: %s\n", table, strings.Join(cols, ", "))
		if d.sampleRows == 0 {
			b.WriteString("\n")
			continue
		}
		sample, err := d.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdent(table), d.sampleRows))
		if err != nil {
			return "", errx.WrapDatabase(err)
		}
		b.WriteString("Sample rows:\n")
		for _, row := range sample.Values {
			vals := make([]string, len(row))
			for i, v := range row {
				vals[i] = model.FormatValue(v)
			}
			fmt.Fprintf(&b, "  (%s)\n", strings.Join(vals, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// SpaceDetails returns "column: value" lines for the row whose idColumn
// equals id. A missing row returns "", nil.
func (d *DB) SpaceDetails(ctx context.Context, table, idColumn, id string) (string, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", QuoteIdent(table), QuoteIdent(idColumn))
	rows, err := d.db.QueryContext(ctx, query, id)
	if err != nil {
		return "", errx.WrapDatabase(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", errx.WrapDatabase(err)
	}
	if !rows.Next() {
		return "", errx.WrapDatabase(rows.Err())
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return "", errx.WrapDatabase(err)
	}
	lines := make([]string, len(cols))
	for i, c := range cols {
		lines[i] = fmt.Sprintf("%s: %s", c, model.FormatValue(vals[i]))
	}
	return strings.Join(lines, "\n"), nil
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
