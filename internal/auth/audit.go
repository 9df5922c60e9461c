package auth

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// AuditEntry describes one administrative action.
type AuditEntry struct {
	Action    string
	Resource  string
	IPAddress string
	UserAgent string
	Status    int
	Details   map[string]any
}

// NewAuditEntry fills the request-derived fields of an entry.
func NewAuditEntry(r *http.Request, action, resource string) AuditEntry {
	return AuditEntry{
		Action:    action,
		Resource:  resource,
		IPAddress: GetIPAddress(r),
		UserAgent: r.UserAgent(),
	}
}

// LogAudit writes entry to logger at info level under the "audit" component.
func LogAudit(logger zerolog.Logger, entry AuditEntry) {
	logger.Info().
		Str("component", "audit").
		Str("action", entry.Action).
		Str("resource", entry.Resource).
		Str("ip", entry.IPAddress).
		Str("user_agent", entry.UserAgent).
		Int("status", entry.Status).
		Fields(entry.Details).
		Msg("admin action")
}

// GetIPAddress extracts the client IP address from the request.
func GetIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
