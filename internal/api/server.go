// Package api serves the rule document and status evaluation over HTTP.
package api

import (
	"context"
	"crypto/rsa"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/sbutler/safer-illinois-app/internal/auth"
	"github.com/sbutler/safer-illinois-app/internal/codec"
	"github.com/sbutler/safer-illinois-app/internal/snapshot"
	"github.com/sbutler/safer-illinois-app/internal/store"
	"github.com/sbutler/safer-illinois-app/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Env            string
	Auth           *auth.Authenticator
	Logger         zerolog.Logger
	Location       *time.Location
	RateLimitPerIP int
	// Now overrides the evaluation clock; nil means time.Now.
	Now func() time.Time

	// PrivateKey and Dispatcher enable sealed record evaluation. Cipher
	// defaults to codec.HybridCipher.
	PrivateKey *rsa.PrivateKey
	Dispatcher *codec.Dispatcher
	Cipher     codec.Cipher
}

type Server struct {
	store  store.Store
	env    string
	auth   *auth.Authenticator
	logger zerolog.Logger
	loc    *time.Location
	limit  int
	now    func() time.Time
	crypto *recordCrypto
}

type recordCrypto struct {
	key        *rsa.PrivateKey
	dispatcher *codec.Dispatcher
	cipher     codec.Cipher
}

func NewServer(st store.Store, opts Options) *Server {
	s := &Server{
		store:  st,
		env:    opts.Env,
		auth:   opts.Auth,
		logger: opts.Logger,
		loc:    opts.Location,
		limit:  opts.RateLimitPerIP,
		now:    opts.Now,
	}
	if s.auth == nil {
		s.auth = &auth.Authenticator{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.PrivateKey != nil && opts.Dispatcher != nil {
		s.crypto = &recordCrypto{key: opts.PrivateKey, dispatcher: opts.Dispatcher, cipher: opts.Cipher}
		if s.crypto.cipher == nil {
			s.crypto.cipher = codec.HybridCipher{}
		}
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)

	// streaming routes must not be cut off by the request timeout
	r.Get("/v1/rules/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		r.Get("/v1/rules", s.handleGetRules)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Put("/v1/rules", s.handlePutRules)
			r.Get("/v1/rules/versions", s.handleListVersions)
		})

		r.Group(func(r chi.Router) {
			if s.limit > 0 {
				r.Use(httprate.LimitByIP(s.limit, time.Minute))
			}
			r.Post("/v1/status/evaluate", s.handleEvaluate)
			if s.crypto != nil {
				r.Post("/v1/status/evaluate-records", s.handleEvaluateRecords)
			}
		})
	})

	return r
}

// ---- rules ----

type putRulesResponse struct {
	OK      bool   `json:"ok"`
	ETag    string `json:"etag"`
	Version int64  `json:"version"`
}

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	snap := snapshot.Load()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", snap.ETag)
	_, _ = w.Write(snap.Document)
}

func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "Request body too large")
			return
		}
		BadRequestError(w, r, ErrCodeBadRequest, "Could not read request body")
		return
	}

	snap, err := snapshot.Build(s.env, body)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidDocument, err.Error())
		return
	}

	doc, err := s.store.PutDocument(r.Context(), store.Document{
		Env:  s.env,
		Body: snap.Document,
		ETag: snap.ETag,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("env", s.env).Msg("store rule document")
		InternalError(w, r, "Failed to store rule document")
		return
	}
	snap.UpdatedAt = doc.UpdatedAt
	s.publish(snap)

	entry := auth.NewAuditEntry(r, "rules.put", s.env)
	entry.Status = http.StatusOK
	entry.Details = map[string]any{"version": doc.Version, "etag": snap.ETag}
	auth.LogAudit(s.logger, entry)

	writeJSON(w, http.StatusOK, putRulesResponse{OK: true, ETag: snap.ETag, Version: doc.Version})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequestError(w, r, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	docs, err := s.store.ListVersions(r.Context(), s.env, limit)
	if err != nil {
		InternalError(w, r, "Failed to list versions")
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"env": s.env, "versions": docs})
}

// RebuildSnapshot loads the latest stored document and publishes it.
// ErrNotFound is returned unchanged when the environment has none.
func (s *Server) RebuildSnapshot(ctx context.Context) error {
	doc, err := s.store.GetDocument(ctx, s.env)
	if err != nil {
		return err
	}
	snap, err := snapshot.Build(s.env, doc.Body)
	if err != nil {
		return err
	}
	snap.UpdatedAt = doc.UpdatedAt
	s.publish(snap)
	return nil
}

// Publish parses doc and makes it the active rule set without storing it.
func (s *Server) Publish(doc []byte) error {
	snap, err := snapshot.Build(s.env, doc)
	if err != nil {
		return err
	}
	s.publish(snap)
	return nil
}

func (s *Server) publish(snap *snapshot.Snapshot) {
	snapshot.Update(snap)
	telemetry.SnapshotStatuses.Set(float64(snap.Rules.StatusCount()))
	s.logger.Info().Str("env", s.env).Str("etag", snap.ETag).Msg("rule snapshot published")
}
