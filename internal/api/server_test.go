package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbutler/safer-illinois-app/internal/auth"
	"github.com/sbutler/safer-illinois-app/internal/snapshot"
	"github.com/sbutler/safer-illinois-app/internal/store"
)

const rulesDoc = `{
  "tests": {"rules": [
    {"test_type": "PCR", "results": [
      {"result": "positive", "category": "A", "status": {"health_status": "red", "priority": 10,
        "next_step": "Isolate until {next_step_date}", "next_step_interval": "isolation"}},
      {"result": "negative", "category": "B", "status": {"health_status": "green", "priority": 1}}
    ]}
  ]},
  "defaults": {"status": {"health_status": "orange", "priority": 0}},
  "constants": {"isolation": 14}
}`

var now = time.Date(2020, time.September, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, rateLimit int) (*Server, *store.MemoryStore) {
	t.Helper()
	authn, err := auth.NewAuthenticator("admin-key")
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	st := store.NewMemoryStore()
	srv := NewServer(st, Options{
		Env:            "prod",
		Auth:           authn,
		Logger:         zerolog.Nop(),
		Location:       time.UTC,
		RateLimitPerIP: rateLimit,
		Now:            func() time.Time { return now },
	})
	if err := srv.Publish([]byte(rulesDoc)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	return srv, st
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("GET /healthz = %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

func TestGetRules_ETag(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	handler := srv.Router()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/rules", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/rules = %d, want 200", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" || etag != snapshot.Load().ETag {
		t.Fatalf("ETag = %q, want %q", etag, snapshot.Load().ETag)
	}
	if !json.Valid(rr.Body.Bytes()) {
		t.Fatalf("body is not JSON: %s", rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/rules", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotModified {
		t.Fatalf("conditional GET = %d, want 304", rr.Code)
	}
}

func TestPutRules(t *testing.T) {
	srv, st := newTestServer(t, 0)
	handler := srv.Router()
	newDoc := `{"defaults": {"status": {"health_status": "green"}}}`

	tests := []struct {
		name     string
		token    string
		body     string
		wantCode int
	}{
		{"missing token", "", newDoc, http.StatusUnauthorized},
		{"wrong token", "nope", newDoc, http.StatusUnauthorized},
		{"not json", "admin-key", `{"defaults":`, http.StatusBadRequest},
		{"not an object", "admin-key", `[1, 2]`, http.StatusBadRequest},
		{"ok", "admin-key", newDoc, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/rules", strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.wantCode {
				t.Fatalf("PUT /v1/rules = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}

	doc, err := st.GetDocument(t.Context(), "prod")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Version != 1 || doc.ETag != snapshot.Load().ETag {
		t.Fatalf("stored document = %+v, active ETag %q", doc, snapshot.Load().ETag)
	}
	if snapshot.Load().Rules.Defaults == nil {
		t.Fatalf("published rules have no defaults")
	}
}

func TestListVersions(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/rules/versions?limit=0", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 = %d, want 400", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/rules/versions", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	var resp struct {
		Versions []store.Document `json:"versions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || resp.Versions == nil || len(resp.Versions) != 0 {
		t.Fatalf("versions = %d %+v, want 200 with empty list", rr.Code, resp.Versions)
	}
}

func postEvaluate(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/status/evaluate", bytes.NewBufferString(body))
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestEvaluate(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	handler := srv.Router()

	tests := []struct {
		name         string
		body         string
		wantCode     int
		wantStatus   string
		wantOverride *bool
	}{
		{
			name:       "defaults",
			body:       `{"history": []}`,
			wantCode:   http.StatusOK,
			wantStatus: "orange",
		},
		{
			name: "positive test replayed",
			body: `{"history": [
				{"date": "2020-09-08T10:00:00.000Z", "type": "received_test", "blob": {"test_type": "PCR", "test_result": "negative"}},
				{"date": "2020-09-09T10:00:00.000Z", "type": "received_test", "blob": {"test_type": "PCR", "test_result": "positive"}}
			], "current_status": {"health_status": "green", "priority": 1}}`,
			wantCode:     http.StatusOK,
			wantStatus:   "red",
			wantOverride: boolPtr(true),
		},
		{
			name: "single entry by index",
			body: `{"index": 1, "history": [
				{"date": "2020-09-08T10:00:00.000Z", "type": "received_test", "blob": {"test_type": "PCR", "test_result": "negative"}},
				{"date": "2020-09-09T10:00:00.000Z", "type": "received_test", "blob": {"test_type": "PCR", "test_result": "positive"}}
			]}`,
			wantCode:   http.StatusOK,
			wantStatus: "green",
		},
		{"index out of range", `{"index": 3, "history": []}`, http.StatusBadRequest, "", nil},
		{"bad date", `{"history": [{"date": "soon", "type": "symptoms"}]}`, http.StatusBadRequest, "", nil},
		{"bad json", `{"history": `, http.StatusBadRequest, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postEvaluate(t, handler, tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("POST /v1/status/evaluate = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp evaluateResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status == nil || resp.Status.HealthStatus != tt.wantStatus {
				t.Fatalf("status = %+v, want %s", resp.Status, tt.wantStatus)
			}
			if resp.ETag != snapshot.Load().ETag {
				t.Fatalf("etag = %q, want %q", resp.ETag, snapshot.Load().ETag)
			}
			if (tt.wantOverride == nil) != (resp.Override == nil) ||
				(tt.wantOverride != nil && *tt.wantOverride != *resp.Override) {
				t.Fatalf("override = %v, want %v", resp.Override, tt.wantOverride)
			}
		})
	}
}

func TestEvaluate_NextStep(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	rr := postEvaluate(t, srv.Router(), `{"history": [
		{"date": "2020-09-09T10:00:00.000Z", "type": "received_test", "blob": {"test_type": "PCR", "test_result": "positive"}}
	]}`)

	var resp evaluateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := time.Date(2020, time.September, 23, 0, 0, 0, 0, time.UTC)
	if !resp.NextStepDate.Equal(want) {
		t.Fatalf("next_step_date = %v, want %v", resp.NextStepDate.Time, want)
	}
	if resp.Status.NextStep != "Isolate until Wednesday, September 23" {
		t.Fatalf("next_step = %q", resp.Status.NextStep)
	}
}

func TestEvaluate_RateLimited(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	handler := srv.Router()

	if rr := postEvaluate(t, handler, `{"history": []}`); rr.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", rr.Code)
	}
	if rr := postEvaluate(t, handler, `{"history": []}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rr.Code)
	}
}

func TestStream(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/rules/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	next := func() (string, string) {
		t.Helper()
		var event, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
		t.Fatalf("stream ended: %v", scanner.Err())
		return "", ""
	}

	event, data := next()
	if event != "init" || !strings.Contains(data, snapshot.Load().ETag[3:19]) {
		t.Fatalf("first event = %s %s, want init with active etag", event, data)
	}

	if err := srv.Publish([]byte(`{"constants": {"isolation": 10}}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	event, data = next()
	var payload map[string]string
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("data is not JSON: %s", data)
	}
	if event != "rules_updated" || payload["etag"] != snapshot.Load().ETag {
		t.Fatalf("event = %s %v, want rules_updated with %s", event, payload, snapshot.Load().ETag)
	}
}

func boolPtr(b bool) *bool { return &b }
