package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
)

// handleListAuditLogs returns audit entries, newest first. Admin only.
//
// Query parameters: action, entity_type, entity_id, user_id, limit, offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok || !p.Admin {
		writeForbidden(w, "admin access required")
		return
	}
	if s.auditRepo == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   queryInt64(q.Get("entity_id")),
		UserID:     queryInt64(q.Get("user_id")),
		Limit:      int(queryInt64(q.Get("limit"))),
		Offset:     int(queryInt64(q.Get("offset"))),
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt64 parses v, treating anything unparseable as unset.
func queryInt64(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
