package codec

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sbutler/safer-illinois-app/internal/engine"
	"github.com/sbutler/safer-illinois-app/internal/history"
)

// StatusRecord is the persisted, encrypted displayed status of a user.
type StatusRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Date          Time   `json:"date"`
	EncryptedKey  string `json:"encrypted_key"`
	EncryptedBlob string `json:"encrypted_blob"`
}

// HistoryRecord is one persisted, encrypted history entry.
type HistoryRecord struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"user_id"`
	Date               Time         `json:"date"`
	Type               history.Kind `json:"type"`
	LocationID         string       `json:"location_id,omitempty"`
	CountyID           string       `json:"county_id,omitempty"`
	EncryptedKey       string       `json:"encrypted_key"`
	EncryptedBlob      string       `json:"encrypted_blob"`
	EncryptedImageKey  string       `json:"encrypted_image_key,omitempty"`
	EncryptedImageBlob string       `json:"encrypted_image_blob,omitempty"`
}

// EventRecord is a provider-pushed test result or action awaiting ingestion.
type EventRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Date          Time   `json:"date"`
	Provider      string `json:"provider,omitempty"`
	ProviderID    string `json:"provider_id,omitempty"`
	Processed     bool   `json:"processed"`
	DateCreated   Time   `json:"date_created"`
	DateUpdated   Time   `json:"date_updated"`
	EncryptedKey  string `json:"encrypted_key"`
	EncryptedBlob string `json:"encrypted_blob"`
}

// ProfileRecord is the user's encrypted profile blob.
type ProfileRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	EncryptedKey  string `json:"encrypted_key"`
	EncryptedBlob string `json:"encrypted_blob"`
}

func (r StatusRecord) Envelope() Envelope  { return Envelope{r.EncryptedKey, r.EncryptedBlob} }
func (r HistoryRecord) Envelope() Envelope { return Envelope{r.EncryptedKey, r.EncryptedBlob} }
func (r EventRecord) Envelope() Envelope   { return Envelope{r.EncryptedKey, r.EncryptedBlob} }
func (r ProfileRecord) Envelope() Envelope { return Envelope{r.EncryptedKey, r.EncryptedBlob} }

// StatusBlob is the decrypted body of a StatusRecord.
type StatusBlob struct {
	HealthStatus     string `json:"health_status"`
	Priority         *int   `json:"priority,omitempty"`
	NextStep         string `json:"next_step,omitempty"`
	NextStepHTML     string `json:"next_step_html,omitempty"`
	NextStepDate     Time   `json:"next_step_date"`
	EventExplanation string `json:"event_explanation,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Warning          string `json:"warning,omitempty"`
}

// EventBlob is the decrypted body of an EventRecord.
type EventBlob struct {
	TestType   string `json:"test_type,omitempty"`
	TestResult string `json:"test_result,omitempty"`
	ActionType string `json:"action_type,omitempty"`
	ActionText string `json:"action_text,omitempty"`
}

// NewStatusBlob captures the displayed status of a timeline.
func NewStatusBlob(tl engine.Timeline) (StatusBlob, bool) {
	if tl.Status == nil {
		return StatusBlob{}, false
	}
	blob := StatusBlob{
		HealthStatus:     string(tl.Status.Code),
		Priority:         tl.Status.Priority,
		NextStep:         tl.Messages.NextStep,
		NextStepHTML:     tl.Messages.NextStepHTML,
		EventExplanation: tl.Messages.EventExplanation,
		Reason:           tl.Messages.Reason,
		Warning:          tl.Messages.Warning,
	}
	if tl.NextStepDate != nil {
		blob.NextStepDate = NewTime(*tl.NextStepDate)
	}
	return blob, true
}

// SealStatus encrypts blob into a status record for userID.
func SealStatus(c Cipher, pub *rsa.PublicKey, userID string, date time.Time, blob StatusBlob) (StatusRecord, error) {
	env, err := Seal(c, pub, blob)
	if err != nil {
		return StatusRecord{}, err
	}
	return StatusRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          NewTime(date),
		EncryptedKey:  env.EncryptedKey,
		EncryptedBlob: env.EncryptedBlob,
	}, nil
}

// SealHistory encrypts e's payload into a history record. A missing entry or
// user id is filled in.
func SealHistory(c Cipher, pub *rsa.PublicKey, userID string, e *history.Entry) (HistoryRecord, error) {
	env, err := Seal[history.Payload](c, pub, e.Payload)
	if err != nil {
		return HistoryRecord{}, err
	}
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	if e.UserID != "" {
		userID = e.UserID
	}
	return HistoryRecord{
		ID:            id,
		UserID:        userID,
		Date:          NewTime(e.Date),
		Type:          e.Kind,
		LocationID:    e.LocationID,
		CountyID:      e.CountyID,
		EncryptedKey:  env.EncryptedKey,
		EncryptedBlob: env.EncryptedBlob,
	}, nil
}

// OpenEntry decrypts a history record. The entry is always returned; on
// failure its payload is absent and the error names the failed stage.
func OpenEntry(c Cipher, priv *rsa.PrivateKey, r HistoryRecord) (*history.Entry, error) {
	e := &history.Entry{
		ID:         r.ID,
		UserID:     r.UserID,
		Date:       r.Date.Time,
		Kind:       r.Type,
		LocationID: r.LocationID,
		CountyID:   r.CountyID,
	}
	if !r.Type.Known() {
		return e, errors.Join(ErrPayloadDecode, history.ErrUnknownKind)
	}
	data, err := OpenBytes(c, priv, r.Envelope())
	if err != nil {
		return e, err
	}
	payload, err := history.DecodePayload(r.Type, data)
	if err != nil {
		return e, errors.Join(ErrPayloadDecode, err)
	}
	e.Payload = payload
	return e, nil
}

// SealEvent encrypts ev into an unprocessed event record for userID.
func SealEvent(c Cipher, pub *rsa.PublicKey, userID string, ev *history.Event, created time.Time) (EventRecord, error) {
	env, err := Seal(c, pub, EventBlob{
		TestType:   ev.TestType,
		TestResult: ev.TestResult,
		ActionType: ev.ActionType,
		ActionText: ev.ActionText,
	})
	if err != nil {
		return EventRecord{}, err
	}
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	return EventRecord{
		ID:            id,
		UserID:        userID,
		Date:          NewTime(ev.Date),
		Provider:      ev.Provider,
		ProviderID:    ev.ProviderID,
		DateCreated:   NewTime(created),
		DateUpdated:   NewTime(created),
		EncryptedKey:  env.EncryptedKey,
		EncryptedBlob: env.EncryptedBlob,
	}, nil
}

// OpenEvent decrypts an event record into an event.
func OpenEvent(c Cipher, priv *rsa.PrivateKey, r EventRecord) (*history.Event, bool) {
	blob, ok := Open[EventBlob](c, priv, r.Envelope())
	if !ok {
		return nil, false
	}
	return &history.Event{
		ID:         r.ID,
		Provider:   r.Provider,
		ProviderID: r.ProviderID,
		Date:       r.Date.Time,
		TestType:   blob.TestType,
		TestResult: blob.TestResult,
		ActionType: blob.ActionType,
		ActionText: blob.ActionText,
	}, true
}

// SealProfile encrypts an arbitrary profile document.
func SealProfile(c Cipher, pub *rsa.PublicKey, userID string, profile map[string]any) (ProfileRecord, error) {
	env, err := Seal(c, pub, profile)
	if err != nil {
		return ProfileRecord{}, err
	}
	return ProfileRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		EncryptedKey:  env.EncryptedKey,
		EncryptedBlob: env.EncryptedBlob,
	}, nil
}

// OpenProfile decrypts a profile record.
func OpenProfile(c Cipher, priv *rsa.PrivateKey, r ProfileRecord) (map[string]any, bool) {
	return Open[map[string]any](c, priv, r.Envelope())
}

// DecodeHistoryRecords parses a JSON array of history records. Elements that
// are not objects are skipped rather than failing the batch.
func DecodeHistoryRecords(data []byte) ([]HistoryRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var r HistoryRecord
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
