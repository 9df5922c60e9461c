package store

import (
	"context"
	"testing"
)

func TestNewStore_Memory(t *testing.T) {
	s, err := NewStore(context.Background(), "memory", "")
	if err != nil {
		t.Fatalf("NewStore(memory) error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("NewStore(memory) = %T, want *MemoryStore", s)
	}
}

func TestNewStore_UnsupportedType(t *testing.T) {
	for _, typ := range []string{"invalid-type", "Memory", "MEMORY"} {
		_, err := NewStore(context.Background(), typ, "")
		if err == nil {
			t.Fatalf("NewStore(%q) error = nil", typ)
		}
		if want := "unsupported store type: " + typ; err.Error() != want {
			t.Fatalf("NewStore(%q) error = %q, want %q", typ, err.Error(), want)
		}
	}
}

func TestNewStore_PostgresWithInvalidDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), "postgres", "invalid-dsn"); err == nil {
		t.Fatalf("NewStore(postgres, invalid-dsn) error = nil")
	}
}
