package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const collectionsTable = "collections"

var (
	postgresDialect = goqu.Dialect("postgres")
	sqliteDialect   = goqu.Dialect("sqlite3")
)

// DB stores collections as rows of a single SQL table, on Postgres via pgx
// or on a local SQLite file.
type DB struct {
	Client  *sqlx.DB
	table   string
	dialect goqu.DialectWrapper
	schema  string
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sqlx.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db, table: collectionsTable, dialect: postgresDialect, schema: postgresSchema}, nil
}

// NewSQLite opens (creating if needed) a SQLite database file.
func NewSQLite(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer at a time keeps SQLITE_BUSY out of commits
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db, table: collectionsTable, dialect: sqliteDialect, schema: sqliteSchema}, nil
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS %s (
		name       TEXT PRIMARY KEY,
		body       JSONB NOT NULL,
		version    BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS %s (
		name       TEXT PRIMARY KEY,
		body       TEXT NOT NULL,
		version    INTEGER NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

// Migrate creates the collections table.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, fmt.Sprintf(d.schema, d.table))
	return err
}

type blobRow struct {
	Body    string `db:"body"`
	Version int64  `db:"version"`
}

// Load returns the stored row or an empty blob.
func (d *DB) Load(ctx context.Context, name string) (Blob, error) {
	q, args, err := selectBlobSQL(d.dialect, d.table, name)
	if err != nil {
		return Blob{}, err
	}
	var row blobRow
	if err := d.Client.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blob{}, nil
		}
		return Blob{}, err
	}
	return Blob{Data: []byte(row.Body), Version: row.Version}, nil
}

// Commit writes every collection inside one SQL transaction.
func (d *DB) Commit(ctx context.Context, writes []Write) error {
	tx, err := d.Client.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range writes {
		var (
			q    string
			args []any
		)
		if w.Version == 0 {
			q, args, err = insertBlobSQL(d.dialect, d.table, w)
		} else {
			q, args, err = updateBlobSQL(d.dialect, d.table, w)
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrConflict
		}
	}
	return tx.Commit()
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

func selectBlobSQL(dialect goqu.DialectWrapper, table, name string) (string, []any, error) {
	return dialect.From(table).
		Select("body", "version").
		Where(goqu.C("name").Eq(name)).
		Prepared(true).
		ToSQL()
}

func insertBlobSQL(dialect goqu.DialectWrapper, table string, w Write) (string, []any, error) {
	return dialect.Insert(table).
		Rows(goqu.Record{"name": w.Name, "body": string(w.Data), "version": w.Version + 1}).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
}

func updateBlobSQL(dialect goqu.DialectWrapper, table string, w Write) (string, []any, error) {
	return dialect.Update(table).
		Set(goqu.Record{"body": string(w.Data), "version": w.Version + 1, "updated_at": goqu.L("CURRENT_TIMESTAMP")}).
		Where(goqu.C("name").Eq(w.Name), goqu.C("version").Eq(w.Version)).
		Prepared(true).
		ToSQL()
}
