package observability

import (
	"log/slog"
	"net/http"
)

// Audit emits an operational audit event to the structured log. This is
// separate from the persisted ViewAudit trail: the log line is for operators,
// the row is for traceability queries.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
