// Package history models a user's decrypted health history: typed entries,
// the classification predicates the status engine relies on, and lookup
// helpers over newest-first sequences.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the wire "type" of a history record.
type Kind string

const (
	KindTest                 Kind = "received_test"
	KindManualTestUnverified Kind = "manual_test_not_verified"
	KindManualTestVerified   Kind = "manual_test_verified"
	KindSymptoms             Kind = "symptoms"
	KindContactTrace         Kind = "contact_trace"
	KindAction               Kind = "action"
)

// Known reports whether k is one of the supported kinds.
func (k Kind) Known() bool {
	switch k {
	case KindTest, KindManualTestUnverified, KindManualTestVerified, KindSymptoms, KindContactTrace, KindAction:
		return true
	}
	return false
}

// ErrUnknownKind is returned when a payload is decoded for an unsupported kind.
var ErrUnknownKind = errors.New("unknown history kind")

// Payload is the decrypted, kind-specific body of an entry.
type Payload interface {
	payload()
}

// TestPayload is carried by lab tests and manual tests.
type TestPayload struct {
	Provider   string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	ProviderID string   `json:"provider_id,omitempty" yaml:"provider_id,omitempty"`
	Location   string   `json:"location,omitempty" yaml:"location,omitempty"`
	County     string   `json:"county,omitempty" yaml:"county,omitempty"`
	TestType   string   `json:"test_type" yaml:"test_type"`
	TestResult string   `json:"test_result" yaml:"test_result"`
	Symptoms   []string `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
}

// SymptomsPayload lists the reported symptom ids.
type SymptomsPayload struct {
	Symptoms []string `json:"symptoms" yaml:"symptoms"`
}

// ContactTracePayload records an exposure.
type ContactTracePayload struct {
	DurationMillis int64  `json:"duration" yaml:"duration"`
	TraceKey       string `json:"trace_tek,omitempty" yaml:"trace_tek,omitempty"`
}

// DurationMinutes returns the exposure length in whole minutes, rounded.
func (p ContactTracePayload) DurationMinutes() int {
	return int((p.DurationMillis + 30000) / 60000)
}

// ActionPayload is an administrative action pushed by the provider.
type ActionPayload struct {
	ActionType string `json:"action_type" yaml:"action_type"`
	ActionText string `json:"action_text,omitempty" yaml:"action_text,omitempty"`
}

func (*TestPayload) payload()         {}
func (*SymptomsPayload) payload()     {}
func (*ContactTracePayload) payload() {}
func (*ActionPayload) payload()       {}

// DecodePayload parses a decrypted blob for the given kind. Callers treat any
// error as "payload absent".
func DecodePayload(kind Kind, data []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindTest, KindManualTestUnverified, KindManualTestVerified:
		p = &TestPayload{}
	case KindSymptoms:
		p = &SymptomsPayload{}
	case KindContactTrace:
		p = &ContactTracePayload{}
	case KindAction:
		p = &ActionPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// Entry is one immutable history record. Payload is nil when the record
// could not be decrypted or decoded.
type Entry struct {
	ID         string
	UserID     string
	Date       time.Time
	Kind       Kind
	LocationID string
	CountyID   string
	Payload    Payload
}

// Test returns the test payload, if the entry carries one.
func (e *Entry) Test() (*TestPayload, bool) {
	p, ok := e.Payload.(*TestPayload)
	return p, ok && p != nil
}

// Symptoms returns the symptoms payload, if the entry carries one.
func (e *Entry) Symptoms() (*SymptomsPayload, bool) {
	p, ok := e.Payload.(*SymptomsPayload)
	return p, ok && p != nil
}

// ContactTrace returns the contact-trace payload, if the entry carries one.
func (e *Entry) ContactTrace() (*ContactTracePayload, bool) {
	p, ok := e.Payload.(*ContactTracePayload)
	return p, ok && p != nil
}

// Action returns the action payload, if the entry carries one.
func (e *Entry) Action() (*ActionPayload, bool) {
	p, ok := e.Payload.(*ActionPayload)
	return p, ok && p != nil
}

// Event is the decrypted view of a provider event that may be ingested into
// history as a test or an action.
type Event struct {
	ID         string
	Provider   string
	ProviderID string
	Date       time.Time
	TestType   string
	TestResult string
	ActionType string
	ActionText string
}

// IsTest reports whether the event carries a test result.
func (ev *Event) IsTest() bool {
	return ev.TestType != "" && ev.TestResult != ""
}

// IsAction reports whether the event carries an action.
func (ev *Event) IsAction() bool {
	return ev.ActionType != ""
}
