package api

import (
	"net/http"

	"github.com/nerrad567/itemkeeper/internal/audit"
)

type auditListResponse struct {
	Success bool `json:"success"`
	*audit.ListResult
}

// auditLog enqueues an audit entry for asynchronous write (best-effort).
func (s *Server) auditLog(action, entityType, entityID, userID string, details map[string]any) {
	s.audit.Record(&audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     "api",
		Details:    details,
	})
}

// handleListAuditLogs returns the caller's own audit trail, newest first.
//
// Query parameters:
//   - action: filter by action (login, create, update, delete, register)
//   - entity_id: filter by item id
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	page, err := parsePage(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	filter := audit.Filter{
		UserID:   claims.Subject,
		Action:   q.Get("action"),
		EntityID: q.Get("entity_id"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}

	result, err := s.auditLogs.List(r.Context(), filter)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, auditListResponse{Success: true, ListResult: result})
	return nil
}
