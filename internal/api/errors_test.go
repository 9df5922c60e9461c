package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(http.StatusBadRequest, ErrCodeInvalidDocument, "document must be a JSON object")

	if resp.Error != "Bad Request" {
		t.Errorf("Expected Error 'Bad Request', got '%s'", resp.Error)
	}
	if resp.Code != ErrCodeInvalidDocument {
		t.Errorf("Expected Code ErrCodeInvalidDocument, got '%s'", resp.Code)
	}
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w http.ResponseWriter, r *http.Request)
		wantCode int
		wantErr  ErrorCode
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON")
		}, http.StatusBadRequest, ErrCodeInvalidJSON},
		{"internal", func(w http.ResponseWriter, r *http.Request) {
			InternalError(w, r, "Store unavailable")
		}, http.StatusInternalServerError, ErrCodeInternal},
		{"too large", func(w http.ResponseWriter, r *http.Request) {
			RequestTooLargeError(w, r, "Request body too large")
		}, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, httptest.NewRequest(http.MethodPost, "/v1/rules", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("Content-Type = %q, want application/json", ct)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Code != tt.wantErr {
				t.Fatalf("code = %s, want %s", resp.Code, tt.wantErr)
			}
		})
	}
}
