package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SchemaMap maps table name to its ordered column names.
type SchemaMap map[string][]string

// TableNames returns the table names sorted alphabetically.
func (s SchemaMap) TableNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the filtered view for one table.
func (s SchemaMap) Table(name string) (TableSchema, bool) {
	cols, ok := s[name]
	if !ok {
		return TableSchema{}, false
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return TableSchema{TableName: name, Columns: out}, true
}

// TableSchema is SchemaMap restricted to the selected table.
type TableSchema struct {
	TableName string
	Columns   []string
}

// Subset returns a SchemaMap holding only this table.
func (t TableSchema) Subset() SchemaMap {
	return SchemaMap{t.TableName: t.Columns}
}

// Rows is the result set of one query.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Empty reports whether the query produced no rows.
func (r *Rows) Empty() bool {
	return r == nil || len(r.Values) == 0
}

// String renders rows as tuples, the shape the answer builder prompt expects.
func (r *Rows) String() string {
	if r.Empty() {
		return "[]"
	}
	var b strings.Builder
	b.WriteString("[")
	for i, row := range r.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(FormatValue(v))
		}
		b.WriteString(")")
	}
	b.WriteString("]")
	return b.String()
}

// FormatValue renders a scanned SQL value for prompts.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// QueryAttempt records one failed execution inside a repair loop.
type QueryAttempt struct {
	Query string
	Error string
}

// Error texts recorded on attempts that did not raise but still failed.
const (
	AttemptEmptyResult = "empty result"
	AttemptNoQuery     = "no corrected query produced"
)
