// Package store persists canonical articles in Postgres behind the narrow
// surface the pipeline consumes: a bulk key listing and a conflict-free
// per-record upsert.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// ErrUnavailable marks store failures that must abort the remaining run
// while preserving already-committed records.
var ErrUnavailable = pipeline.ErrStoreUnavailable

// classify joins ErrUnavailable onto connection-class failures only. A
// *pgconn.PgError means the server answered; that failure belongs to the one
// record, not the run.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and the per-source mapping of
// canonical fields to table columns.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// Columns lists the canonical fields persisted for this source, in
	// insert order. Column names equal field names. Must include "url".
	Columns []string
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Postgres implements pipeline.ArticleStore.
type Postgres struct {
	pool    querier
	columns []string
}

// NewPostgres connects a pool and validates the column mapping.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	columns, err := normalizeColumns(cfg.Columns)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool, columns: columns}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (tests).
func NewPostgresWithPool(pool querier, columns []string) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	cols, err := normalizeColumns(columns)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, columns: cols}, nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ListExistingURLs snapshots every URL already present in the source table.
// The snapshot is not kept consistent with concurrent writers; the uniqueness
// constraint on url is the final safety net.
func (s *Postgres) ListExistingURLs(ctx context.Context, table string) (map[string]struct{}, error) {
	if !validIdentifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT url FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("list existing urls: %w", classify(err))
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", classify(err))
		}
		existing[u] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate urls: %w", classify(err))
	}
	return existing, nil
}

// Upsert inserts the record unless its URL already exists. Each call is its
// own atomic unit; a failure mid-batch never rolls back earlier records.
func (s *Postgres) Upsert(ctx context.Context, table string, art pipeline.Article) (bool, error) {
	if !validIdentifier.MatchString(table) {
		return false, fmt.Errorf("invalid table name %q", table)
	}
	if art.URL == "" {
		return false, fmt.Errorf("article url is required")
	}

	placeholders := make([]string, len(s.columns))
	args := make([]any, len(s.columns))
	for i, col := range s.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fieldValue(art, col)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (url) DO NOTHING",
		table,
		strings.Join(s.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("upsert article: %w", classify(err))
	}
	return tag.RowsAffected() > 0, nil
}

func normalizeColumns(columns []string) ([]string, error) {
	if len(columns) == 0 {
		columns = DefaultColumns()
	}
	hasURL := false
	for _, col := range columns {
		if !validIdentifier.MatchString(col) {
			return nil, fmt.Errorf("invalid column name %q", col)
		}
		if _, ok := fieldGetters[col]; !ok {
			return nil, fmt.Errorf("unknown canonical field %q", col)
		}
		if col == "url" {
			hasURL = true
		}
	}
	if !hasURL {
		return nil, fmt.Errorf("column mapping must include the url key")
	}
	return append([]string(nil), columns...), nil
}
