package api

import (
	"encoding/json"
	"net/http"

	"github.com/sbutler/safer-illinois-app/internal/codec"
	"github.com/sbutler/safer-illinois-app/internal/engine"
	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/rules"
	"github.com/sbutler/safer-illinois-app/internal/snapshot"
	"github.com/sbutler/safer-illinois-app/internal/telemetry"
)

type evaluateRequest struct {
	UserID   string             `json:"user_id,omitempty"`
	Identity engine.Identity    `json:"identity"`
	History  []codec.PlainEntry `json:"history"`
	// Index selects one entry of the history sorted newest first. Without
	// it the whole history is replayed.
	Index         *int              `json:"index,omitempty"`
	CurrentStatus *codec.StatusBlob `json:"current_status,omitempty"`
}

type evaluateRecordsRequest struct {
	Identity      engine.Identity   `json:"identity"`
	Records       json.RawMessage   `json:"records"`
	Index         *int              `json:"index,omitempty"`
	CurrentStatus *codec.StatusBlob `json:"current_status,omitempty"`
}

type evaluateResponse struct {
	Status       *codec.StatusBlob `json:"status"`
	NextStepDate codec.Time        `json:"next_step_date"`
	// Override reports whether Status would replace CurrentStatus.
	Override        *bool  `json:"override,omitempty"`
	ETag            string `json:"etag"`
	DecryptFailures *int   `json:"decrypt_failures,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON")
		return
	}
	entries, err := codec.Entries(req.UserID, req.History)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidHistory, err.Error())
		return
	}

	resp, ok := s.evaluate(entries, req.Identity, req.Index, req.CurrentStatus)
	if !ok {
		BadRequestError(w, r, ErrCodeInvalidIndex, "index out of range")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvaluateRecords decrypts sealed history records with the server key
// before evaluating them. Records that fail to open stay in the history
// without a payload.
func (s *Server) handleEvaluateRecords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*maxBodyBytes)

	var req evaluateRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON")
		return
	}
	records, err := codec.DecodeHistoryRecords(req.Records)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidHistory, err.Error())
		return
	}

	entries, errs, err := s.crypto.dispatcher.OpenHistory(r.Context(), s.crypto.cipher, s.crypto.key, records)
	if err != nil {
		s.logger.Warn().Err(err).Int("records", len(records)).Msg("open history aborted")
		InternalError(w, r, "Failed to decrypt records")
		return
	}
	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			telemetry.DecryptFailures.WithLabelValues(codec.Stage(err)).Inc()
		}
	}
	if failures > 0 {
		s.logger.Debug().Int("failures", failures).Int("records", len(records)).Msg("records without payload")
	}

	resp, ok := s.evaluate(entries, req.Identity, req.Index, req.CurrentStatus)
	if !ok {
		BadRequestError(w, r, ErrCodeInvalidIndex, "index out of range")
		return
	}
	resp.DecryptFailures = &failures
	writeJSON(w, http.StatusOK, resp)
}

// evaluate runs the engine against the active snapshot. It reports false
// only when index is out of range.
func (s *Server) evaluate(entries []*history.Entry, id engine.Identity, index *int, current *codec.StatusBlob) (evaluateResponse, bool) {
	snap := snapshot.Load()
	ctx := &engine.Context{
		Rules:    snap.Rules,
		Identity: id,
		Now:      s.now(),
		Location: s.loc,
		Logger:   &s.logger,
	}

	var tl engine.Timeline
	if index != nil {
		history.SortNewestFirst(entries)
		var ok bool
		if tl, ok = engine.At(entries, *index, ctx, engine.EnglishDates{}); !ok {
			return evaluateResponse{}, false
		}
	} else {
		tl = engine.Build(entries, ctx, engine.EnglishDates{})
	}

	resp := evaluateResponse{ETag: snap.ETag}
	if blob, ok := codec.NewStatusBlob(tl); ok {
		resp.Status = &blob
		resp.NextStepDate = blob.NextStepDate
		telemetry.ObserveStatus(blob.HealthStatus)
	} else {
		telemetry.ObserveStatus("")
	}
	if current != nil {
		cur := &rules.Status{
			Code:     rules.HealthStatus(current.HealthStatus),
			Priority: current.Priority,
		}
		override := engine.CanUpdateStatus(cur, tl.Status)
		resp.Override = &override
	}
	return resp, true
}
