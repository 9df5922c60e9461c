package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps every document version in memory. It is suitable for
// development, tests and single-instance deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]Document // env -> versions, oldest first
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]Document)}
}

func (m *MemoryStore) GetDocument(ctx context.Context, env string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.docs[env]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	doc := versions[len(versions)-1]
	return &doc, nil
}

func (m *MemoryStore) PutDocument(ctx context.Context, doc Document) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc.Body = append([]byte(nil), doc.Body...)
	doc.Version = int64(len(m.docs[doc.Env]) + 1)
	doc.UpdatedAt = time.Now().UTC()
	m.docs[doc.Env] = append(m.docs[doc.Env], doc)
	return &doc, nil
}

func (m *MemoryStore) ListVersions(ctx context.Context, env string, limit int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.docs[env]
	if limit <= 0 || limit > len(versions) {
		limit = len(versions)
	}
	out := make([]Document, 0, limit)
	for i := len(versions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, versions[i])
	}
	return out, nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
