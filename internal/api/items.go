package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/itemkeeper/internal/audit"
	"github.com/nerrad567/itemkeeper/internal/item"
)

// itemRequest is the body of POST and PUT /api/items. Unknown fields,
// ownerId included, are ignored.
type itemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type itemResponse struct {
	Success bool       `json:"success"`
	Item    *item.Item `json:"item"`
}

type itemListResponse struct {
	Success bool        `json:"success"`
	Items   []item.Item `json:"items"`
}

type itemDeletedResponse struct {
	Success bool       `json:"success"`
	Deleted *item.Item `json:"deleted"`
}

// handleListItems returns the caller's items in insertion order.
//
// Query parameters:
//   - offset: items to skip (default 0)
//   - limit: max results (default: all)
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	page, err := parsePage(r)
	if err != nil {
		return err
	}

	items, err := s.items.List(r.Context(), claims.Subject, page)
	s.recordItemOp("list", err)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, itemListResponse{Success: true, Items: items})
	return nil
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	it, err := s.items.Get(r.Context(), chi.URLParam(r, "id"), claims.Subject)
	s.recordItemOp("get", err)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, itemResponse{Success: true, Item: it})
	return nil
}

// handleCreateItem stores a new item owned by the caller.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	in := item.Input{Description: req.Description}
	if req.Name != nil {
		in.Name = *req.Name
	}

	it, err := s.items.Create(r.Context(), claims.Subject, in)
	s.recordItemOp("create", err)
	if err != nil {
		return err
	}

	s.auditLog(audit.ActionCreate, audit.EntityItem, it.ID, claims.Subject, map[string]any{"name": it.Name})
	s.publishItemEvent(r.Context(), item.ActionCreated, *it)

	writeJSON(w, http.StatusCreated, itemResponse{Success: true, Item: it})
	return nil
}

// handleUpdateItem replaces the name and, when provided, the description.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Name == nil {
		s.recordItemOp("update", &item.ValidationError{})
		return errValidation("name is required", map[string]string{"field": "name"})
	}

	it, err := s.items.Update(r.Context(), chi.URLParam(r, "id"), claims.Subject, item.Patch{
		Name:        req.Name,
		Description: req.Description,
	})
	s.recordItemOp("update", err)
	if err != nil {
		return err
	}

	s.auditLog(audit.ActionUpdate, audit.EntityItem, it.ID, claims.Subject, map[string]any{"name": it.Name})
	s.publishItemEvent(r.Context(), item.ActionUpdated, *it)

	writeJSON(w, http.StatusOK, itemResponse{Success: true, Item: it})
	return nil
}

// handleDeleteItem removes an item and returns what was removed.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}

	it, err := s.items.Delete(r.Context(), chi.URLParam(r, "id"), claims.Subject)
	s.recordItemOp("delete", err)
	if err != nil {
		return err
	}

	s.auditLog(audit.ActionDelete, audit.EntityItem, it.ID, claims.Subject, map[string]any{"name": it.Name})
	s.publishItemEvent(r.Context(), item.ActionDeleted, *it)

	writeJSON(w, http.StatusOK, itemDeletedResponse{Success: true, Deleted: it})
	return nil
}

// parsePage reads offset and limit. Both must be non-negative integers.
func parsePage(r *http.Request) (item.Page, error) {
	var page item.Page
	q := r.URL.Query()

	for _, p := range []struct {
		key string
		dst *int
	}{
		{"offset", &page.Offset},
		{"limit", &page.Limit},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return item.Page{}, errBadRequest(p.key + " must be a non-negative integer")
		}
		*p.dst = n
	}
	return page, nil
}

func (s *Server) recordItemOp(op string, err error) {
	if s.metrics == nil {
		return
	}
	var verr *item.ValidationError
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, item.ErrNotFound):
		result = "not_found"
	case errors.As(err, &verr):
		result = "invalid"
	default:
		result = "error"
	}
	s.metrics.RecordItemOperation(op, result)
}

// publishItemEvent hands the change to the event publisher without holding
// up the response. Failures are logged and counted only.
func (s *Server) publishItemEvent(ctx context.Context, action string, it item.Item) {
	if s.events == nil {
		return
	}

	ev := item.NewEvent(action, it)
	ctx = context.WithoutCancel(ctx)

	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		err := s.events.PublishItemEvent(ctx, ev)
		s.metrics.RecordEventPublished(action, err == nil)
		if err != nil {
			s.logger.Warn("item event publish failed",
				"action", action,
				"item_id", it.ID,
				"error", err,
			)
		}
	}()
}
