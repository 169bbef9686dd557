package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config binds SQLITE_* variables for the building database.
type Config struct {
	Path        string `split_words:"true" default:"sql/gh_data.db"`
	BusyTimeout int    `split_words:"true" default:"5000"`
}

// New opens the database in read-only mode and verifies the connection.
// The assistant only ever issues read queries against it.
func (c *Config) New(ctx context.Context) (*sql.DB, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=%s", c.Path, url.QueryEscape(fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout)))
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", c.Path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", c.Path, err)
	}
	return db, nil
}
