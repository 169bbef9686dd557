package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "building.db")
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	stmts := []string{
		`CREATE TABLE activity_space ("key" TEXT, area REAL, type TEXT, level INTEGER)`,
		`CREATE TABLE resident_distances ("Outdoor Space" TEXT, "1A" REAL, "2B" REAL)`,
		`INSERT INTO activity_space VALUES ('O1', 42.5, 'balcony', 1), ('O2', 80, 'terrace', 3)`,
		`INSERT INTO resident_distances VALUES ('O1', 3.5, 12), ('O2', 9, 4.25)`,
	}
	for _, s := range stmts {
		_, err := raw.Exec(s)
		require.NoError(t, err)
	}
	return New(raw)
}

func TestGetSchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	schema, err := db.GetSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"activity_space", "resident_distances"}, schema.TableNames())
	assert.Equal(t, []string{"key", "area", "type", "level"}, schema["activity_space"])
	assert.Equal(t, []string{"Outdoor Space", "1A", "2B"}, schema["resident_distances"])

	again, err := db.GetSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema, again)
}

func TestExecute(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rows, err := db.Execute(ctx, `SELECT "key", area FROM activity_space ORDER BY "key"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "area"}, rows.Columns)
	assert.Equal(t, "[(O1, 42.5), (O2, 80)]", rows.String())

	rows, err = db.Execute(ctx, `SELECT * FROM activity_space WHERE level = 99`)
	require.NoError(t, err)
	assert.True(t, rows.Empty())

	_, err = db.Execute(ctx, `SELECT nope FROM missing_table`)
	require.Error(t, err)

	_, err = db.Execute(ctx, "   ")
	require.Error(t, err)
}

func TestFormatContext(t *testing.T) {
	db := New(newTestDB(t).db, WithSampleRows(1))
	ctx := context.Background()

	schema, err := db.GetSchema(ctx)
	require.NoError(t, err)
	ts, ok := schema.Table("activity_space")
	require.True(t, ok)

	text, err := db.FormatContext(ctx, ts.Subset())
	require.NoError(t, err)
	assert.Contains(t, text, "Table: activity_space")
	assert.Contains(t, text, "Columns: key, area, type, level")
	assert.Contains(t, text, "(O1, 42.5, balcony, 1)")
	assert.NotContains(t, text, "O2")
}

func TestSpaceDetails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	text, err := db.SpaceDetails(ctx, "activity_space", "key", "O2")
	require.NoError(t, err)
	assert.Equal(t, "key: O2\narea: 80\ntype: terrace\nlevel: 3", text)

	text, err = db.SpaceDetails(ctx, "activity_space", "key", "O404")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Outdoor Space"`, QuoteIdent("Outdoor Space"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
