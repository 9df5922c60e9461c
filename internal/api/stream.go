package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sbutler/safer-illinois-app/internal/snapshot"
	"github.com/sbutler/safer-illinois-app/internal/telemetry"
)

const streamPingInterval = 25 * time.Second

// handleStream pushes an init event with the active ETag, then a
// rules_updated event whenever a new document is published.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, unsub := snapshot.Subscribe()
	defer unsub()

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	writeEvent(w, "init", snapshot.Load().ETag)
	flusher.Flush()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case etag, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "rules_updated", etag)
			flusher.Flush()
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event, etag string) {
	data, _ := json.Marshal(map[string]string{"etag": etag})
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
