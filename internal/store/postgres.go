package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS rule_documents (
	env        TEXT        NOT NULL,
	version    BIGINT      NOT NULL,
	body       JSONB       NOT NULL,
	etag       TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (env, version)
)`

const (
	getDocumentSQL = `
SELECT env, version, body, etag, updated_at
FROM rule_documents
WHERE env = $1
ORDER BY version DESC
LIMIT 1`

	putDocumentSQL = `
INSERT INTO rule_documents (env, version, body, etag)
SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3
FROM rule_documents
WHERE env = $1
RETURNING version, updated_at`

	listVersionsSQL = `
SELECT env, version, body, etag, updated_at
FROM rule_documents
WHERE env = $1
ORDER BY version DESC
LIMIT $2`
)

// DBTX is the subset of pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

// EnsureSchema creates the rule_documents table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create rule_documents: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetDocument(ctx context.Context, env string) (*Document, error) {
	doc, err := scanDocument(p.db.QueryRow(ctx, getDocumentSQL, env))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (p *PostgresStore) PutDocument(ctx context.Context, doc Document) (*Document, error) {
	err := p.db.QueryRow(ctx, putDocumentSQL, doc.Env, []byte(doc.Body), doc.ETag).Scan(&doc.Version, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert rule document: %w", err)
	}
	return &doc, nil
}

func (p *PostgresStore) ListVersions(ctx context.Context, env string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.Query(ctx, listVersionsSQL, env, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc  Document
		body []byte
	)
	if err := row.Scan(&doc.Env, &doc.Version, &body, &doc.ETag, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Body = body
	return doc, nil
}
