// Package snapshot holds the active rule set. Readers load an immutable
// snapshot without locking; Update swaps it atomically and notifies
// subscribers of the new ETag.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// Snapshot is one published rule document together with its parsed form.
type Snapshot struct {
	ETag      string          `json:"etag"`
	Env       string          `json:"env"`
	Document  json.RawMessage `json:"document"`
	Rules     *rules.RuleSet  `json:"-"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

var current atomic.Pointer[Snapshot]

var empty = &Snapshot{Document: json.RawMessage("{}"), Rules: rules.FromMap(nil)}

// Load returns the active snapshot, or an empty one before the first Update.
func Load() *Snapshot {
	if s := current.Load(); s != nil {
		return s
	}
	return empty
}

// Build parses doc and computes its ETag. The stored document is compacted so
// formatting differences do not change the ETag.
func Build(env string, doc []byte) (*Snapshot, error) {
	rs, err := rules.Parse(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidDocument, err)
	}
	compact := buf.Bytes()
	return &Snapshot{
		ETag:      ETag(compact),
		Env:       env,
		Document:  compact,
		Rules:     rs,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// ETag returns the weak entity tag of a document.
func ETag(doc []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(doc))
}

// Update publishes s and notifies subscribers.
func Update(s *Snapshot) {
	current.Store(s)
	publishUpdate(s.ETag)
}
