package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	lastSQL string
	args    []any
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.args = sql, args
	return f.row
}

func TestPostgresStore_GetDocument(t *testing.T) {
	updated := time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{values: []any{"prod", int64(4), []byte(`{"constants":{}}`), `W/"abc"`, updated}}}
	s := &PostgresStore{db: db}

	doc, err := s.GetDocument(context.Background(), "prod")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Version != 4 || doc.ETag != `W/"abc"` || string(doc.Body) != `{"constants":{}}` || !doc.UpdatedAt.Equal(updated) {
		t.Fatalf("GetDocument() = %+v", doc)
	}
	if len(db.args) != 1 || db.args[0] != "prod" {
		t.Fatalf("query args = %v", db.args)
	}
}

func TestPostgresStore_GetDocumentNotFound(t *testing.T) {
	s := &PostgresStore{db: &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}}
	if _, err := s.GetDocument(context.Background(), "prod"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDocument() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_PutDocument(t *testing.T) {
	updated := time.Date(2020, time.September, 2, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{values: []any{int64(2), updated}}}
	s := &PostgresStore{db: db}

	doc, err := s.PutDocument(context.Background(), Document{Env: "prod", Body: []byte(`{}`), ETag: `W/"1"`})
	if err != nil {
		t.Fatalf("PutDocument() error = %v", err)
	}
	if doc.Version != 2 || !doc.UpdatedAt.Equal(updated) || doc.Env != "prod" {
		t.Fatalf("PutDocument() = %+v", doc)
	}
	if !strings.Contains(db.lastSQL, "INSERT INTO rule_documents") || len(db.args) != 3 {
		t.Fatalf("unexpected insert %q %v", db.lastSQL, db.args)
	}
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	s := &PostgresStore{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if !strings.Contains(db.lastSQL, "CREATE TABLE IF NOT EXISTS rule_documents") {
		t.Fatalf("EnsureSchema() ran %q", db.lastSQL)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() without pool error = %v", err)
	}
}
