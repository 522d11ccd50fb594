// Package sqlite persists viewer settings in a SQLite database.
package sqlite

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-viewer/settings"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultNamespace groups settings when no namespace is configured.
const DefaultNamespace = "viewer"

var _ settings.Backend = (*Backend)(nil)

// Backend stores one row per setting with a JSON encoded value.
type Backend struct {
	dbConn    *sqlx.DB
	namespace string
}

// Open connects to the database file at name and applies migrations.
func Open(name string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", name))
	if err != nil {
		return nil, fmt.Errorf("connecting to db : %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations : %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migration : %w", err)
	}
	return db, nil
}

// New wraps db. An empty namespace selects DefaultNamespace.
func New(db *sqlx.DB, namespace string) *Backend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Backend{dbConn: db, namespace: namespace}
}

// Close terminates the database connection.
func (b *Backend) Close() error {
	if err := b.dbConn.Close(); err != nil {
		return fmt.Errorf("closing settings db : %w", err)
	}
	return nil
}

type row struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

// LoadAll implements settings.Backend.
func (b *Backend) LoadAll(ctx context.Context) (map[string]any, error) {
	var rows []row
	query := `SELECT name, value FROM settings WHERE namespace = ?`
	if err := b.dbConn.SelectContext(ctx, &rows, query, b.namespace); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	values := make(map[string]any, len(rows))
	for _, r := range rows {
		var value any
		if err := json.Unmarshal([]byte(r.Value), &value); err != nil {
			return nil, fmt.Errorf("decoding setting %s: %w", r.Name, err)
		}
		values[r.Name] = value
	}
	return values, nil
}

// Save implements settings.Backend.
func (b *Backend) Save(ctx context.Context, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", name, err)
	}
	query := `INSERT INTO settings (namespace, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := b.dbConn.ExecContext(ctx, query, b.namespace, name, string(encoded), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving setting %s: %w", name, err)
	}
	return nil
}

// Delete implements settings.Backend.
func (b *Backend) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM settings WHERE namespace = ? AND name = ?`
	if _, err := b.dbConn.ExecContext(ctx, query, b.namespace, name); err != nil {
		return fmt.Errorf("deleting setting %s: %w", name, err)
	}
	return nil
}
