package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when an environment has no rule document yet.
var ErrNotFound = errors.New("rule document not found")

// Store defines the interface for rule document persistence.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// GetDocument returns the latest document of env, or ErrNotFound.
	GetDocument(ctx context.Context, env string) (*Document, error)

	// PutDocument stores a new version of doc.Env. Version and UpdatedAt are
	// assigned by the store.
	PutDocument(ctx context.Context, doc Document) (*Document, error)

	// ListVersions returns up to limit stored versions of env, newest first.
	ListVersions(ctx context.Context, env string, limit int) ([]Document, error)

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Document is one stored version of an environment's rule document.
type Document struct {
	Env       string          `json:"env"`
	Version   int64           `json:"version"`
	Body      json.RawMessage `json:"body"`
	ETag      string          `json:"etag"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
