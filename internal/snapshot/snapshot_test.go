package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/sbutler/safer-illinois-app/internal/rules"
)

const doc = `{
  "defaults": {"status": {"health_status": "orange"}},
  "statuses": {"green": {"health_status": "green"}},
  "constants": {"days": 14}
}`

func TestBuild(t *testing.T) {
	s, err := Build("prod", []byte(doc))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.Env != "prod" || s.Rules.StatusCount() != 1 || s.Rules.ConstantCount() != 1 {
		t.Fatalf("Build() = %+v", s)
	}
	if len(s.ETag) != len(`W/"0123456789abcdef"`) {
		t.Fatalf("ETag = %q", s.ETag)
	}

	compact, err := Build("prod", []byte(`{"defaults":{"status":{"health_status":"orange"}},"statuses":{"green":{"health_status":"green"}},"constants":{"days":14}}`))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if compact.ETag != s.ETag {
		t.Fatalf("formatting changed the ETag: %q vs %q", compact.ETag, s.ETag)
	}

	other, err := Build("prod", []byte(`{"constants": {"days": 10}}`))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if other.ETag == s.ETag {
		t.Fatalf("different documents share ETag %q", s.ETag)
	}
}

func TestBuild_InvalidDocument(t *testing.T) {
	for _, in := range []string{`[1,2]`, `{"tests":`, ``} {
		if _, err := Build("prod", []byte(in)); !errors.Is(err, rules.ErrInvalidDocument) {
			t.Fatalf("Build(%q) error = %v, want ErrInvalidDocument", in, err)
		}
	}
}

func TestLoadBeforeUpdate(t *testing.T) {
	s := Load()
	if s == nil || s.Rules == nil {
		t.Fatalf("Load() must never return nil rules")
	}
}

func TestUpdateSwapsAndNotifies(t *testing.T) {
	updates, unsub := Subscribe()
	defer unsub()

	s, err := Build("prod", []byte(doc))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	Update(s)

	if Load() != s {
		t.Fatalf("Load() did not return the published snapshot")
	}
	select {
	case etag := <-updates:
		if etag != s.ETag {
			t.Fatalf("notified ETag = %q, want %q", etag, s.ETag)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for update")
	}
}
