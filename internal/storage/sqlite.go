package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/JustADataConstruct/TermRSS/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite keeps aggregate documents as rows of a SQLite database.
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Document returns a Backend for the aggregate stored under name.
func (s *SQLite) Document(name string) Backend {
	return &sqliteDocument{db: s.db, name: name}
}

type sqliteDocument struct {
	db   *sqlx.DB
	name string
}

func (d *sqliteDocument) Read(ctx context.Context) (map[string]json.RawMessage, error) {
	query, args, err := sq.Select("body").From("documents").Where(sq.Eq{"name": d.name}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", d.name, err)
	}

	var body string
	err = d.db.GetContext(ctx, &body, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, d.name)
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", d.name, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", d.name, err)
	}
	return doc, nil
}

func (d *sqliteDocument) Write(ctx context.Context, doc map[string]json.RawMessage) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.name, err)
	}

	query, args, err := sq.Insert("documents").
		Columns("name", "body", "updated_at").
		Values(d.name, string(body), time.Now().UTC().Format(timeLayout)).
		Suffix("ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert %s: %w", d.name, err)
	}
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert document %s: %w", d.name, err)
	}
	return nil
}
