package codec

import (
	"encoding/json"
	"fmt"

	"github.com/sbutler/safer-illinois-app/internal/history"
)

// PlainEntry is the unencrypted interchange form of a history entry, used by
// the evaluate endpoint and by the CLI before sealing.
type PlainEntry struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Date       string         `json:"date" yaml:"date"`
	Type       history.Kind   `json:"type" yaml:"type"`
	LocationID string         `json:"location_id,omitempty" yaml:"location_id,omitempty"`
	CountyID   string         `json:"county_id,omitempty" yaml:"county_id,omitempty"`
	Blob       map[string]any `json:"blob,omitempty" yaml:"blob,omitempty"`
}

// Entry converts p into a history entry. Unlike sealed records, a plaintext
// entry with an unreadable date or payload is rejected.
func (p PlainEntry) Entry(userID string) (*history.Entry, error) {
	date, ok := ParseDate(p.Date)
	if !ok {
		return nil, fmt.Errorf("entry %q: invalid date %q", p.ID, p.Date)
	}
	if !p.Type.Known() {
		return nil, fmt.Errorf("entry %q: %w %q", p.ID, history.ErrUnknownKind, p.Type)
	}
	e := &history.Entry{
		ID:         p.ID,
		UserID:     userID,
		Date:       date,
		Kind:       p.Type,
		LocationID: p.LocationID,
		CountyID:   p.CountyID,
	}
	if p.Blob == nil {
		return e, nil
	}
	data, err := json.Marshal(p.Blob)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", p.ID, err)
	}
	payload, err := history.DecodePayload(p.Type, data)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", p.ID, err)
	}
	e.Payload = payload
	return e, nil
}

// Entries converts a batch, stopping at the first invalid element.
func Entries(userID string, plain []PlainEntry) ([]*history.Entry, error) {
	out := make([]*history.Entry, 0, len(plain))
	for _, p := range plain {
		e, err := p.Entry(userID)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
