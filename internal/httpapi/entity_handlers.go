package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ilkys.app/internal/access"
	"ilkys.app/internal/audit"
	"ilkys.app/internal/ids"
	"ilkys.app/internal/query"
	"ilkys.app/internal/tenant"
)

type batchUpdateRequest struct {
	Filter map[string]any `json:"filter"`
	Data   map[string]any `json:"data"`
}

type batchDeleteRequest struct {
	Filter map[string]any `json:"filter"`
}

// ListEntities handles GET /api/ilkys/{entity}.
func (a *API) ListEntities(w http.ResponseWriter, r *http.Request) {
	d, err := a.verifier.Verify(r.Context(), r.PathValue("entity"), access.ActionRead)
	if err != nil {
		verifyError(w, err)
		return
	}

	opts, err := query.ParseListOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}

	tc, _ := tenant.FromContext(r.Context())
	rows, total, err := a.store.List(r.Context(), tc, d.Entity, opts)
	if err != nil {
		// Read-path store failures are internal errors; the driver message
		// goes to the caller, the details to the audit trail.
		a.auditError(r, d, audit.ActionRead, err)
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	a.audit(r, audit.Event{
		TenantID:     d.TenantID,
		ActorID:      d.UserID,
		Action:       audit.ActionRead,
		ResourceType: d.Entity.Name,
		Description:  "list",
		Metadata:     map[string]any{"total": total, "returned": len(rows)},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"data": rows,
		"meta": map[string]any{
			"total":  total,
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

// CreateEntity handles POST /api/ilkys/{entity}.
func (a *API) CreateEntity(w http.ResponseWriter, r *http.Request) {
	d, err := a.verifier.Verify(r.Context(), r.PathValue("entity"), access.ActionCreate)
	if err != nil {
		verifyError(w, err)
		return
	}

	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", err.Error())
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}

	// System fields win over caller-supplied values.
	now := time.Now().UTC()
	if id, ok := payload["id"].(string); !ok || id == "" {
		payload["id"] = ids.New()
	}
	payload["tenant_id"] = d.TenantID
	payload["created_by"] = d.UserID
	payload["updated_by"] = d.UserID
	payload["created_at"] = now
	payload["updated_at"] = now

	tc, _ := tenant.FromContext(r.Context())
	row, err := a.store.Insert(r.Context(), tc, d.Entity, payload)
	if err != nil {
		if errors.Is(err, query.ErrInvalid) {
			writeError(w, http.StatusBadRequest, "bad_body", err.Error())
			return
		}
		a.auditError(r, d, audit.ActionCreate, err)
		writeError(w, http.StatusBadRequest, "insert_failed", err.Error())
		return
	}

	a.audit(r, audit.Event{
		TenantID:     d.TenantID,
		ActorID:      d.UserID,
		Action:       audit.ActionCreate,
		ResourceType: d.Entity.Name,
		ResourceID:   stringField(row, "id"),
		New:          row,
	})
	writeJSON(w, http.StatusCreated, row)
}

// UpdateEntities handles PATCH /api/ilkys/{entity}: a filtered batch update.
func (a *API) UpdateEntities(w http.ResponseWriter, r *http.Request) {
	d, err := a.verifier.Verify(r.Context(), r.PathValue("entity"), access.ActionUpdate)
	if err != nil {
		verifyError(w, err)
		return
	}

	var req batchUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", err.Error())
		return
	}
	filters, err := query.EqualityFilters(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_filter", err.Error())
		return
	}
	if len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, "bad_body", "data must not be empty")
		return
	}

	set := make(map[string]any, len(req.Data)+2)
	for k, v := range req.Data {
		set[k] = v
	}
	set["updated_by"] = d.UserID
	set["updated_at"] = time.Now().UTC()

	tc, _ := tenant.FromContext(r.Context())
	pre, post, err := a.store.UpdateWhere(r.Context(), tc, d.Entity, set, filters)
	if err != nil {
		if errors.Is(err, query.ErrInvalid) {
			writeError(w, http.StatusBadRequest, "bad_body", err.Error())
			return
		}
		a.auditError(r, d, audit.ActionUpdate, err)
		writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}
	if post == nil {
		post = []map[string]any{}
	}

	a.audit(r, audit.Event{
		TenantID:     d.TenantID,
		ActorID:      d.UserID,
		Action:       audit.ActionUpdate,
		ResourceType: d.Entity.Name,
		Previous:     pre,
		New:          post,
		Metadata:     map[string]any{"updated": len(post), "filter": req.Filter},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": len(post),
		"data":    post,
	})
}

// DeleteEntities handles DELETE /api/ilkys/{entity}: a filtered batch delete.
func (a *API) DeleteEntities(w http.ResponseWriter, r *http.Request) {
	d, err := a.verifier.Verify(r.Context(), r.PathValue("entity"), access.ActionDelete)
	if err != nil {
		verifyError(w, err)
		return
	}

	var req batchDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", err.Error())
		return
	}
	filters, err := query.EqualityFilters(req.Filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_filter", err.Error())
		return
	}

	tc, _ := tenant.FromContext(r.Context())
	pre, deleted, err := a.store.DeleteWhere(r.Context(), tc, d.Entity, filters)
	if err != nil {
		a.auditError(r, d, audit.ActionDelete, err)
		writeError(w, http.StatusBadRequest, "delete_failed", err.Error())
		return
	}

	a.audit(r, audit.Event{
		TenantID:     d.TenantID,
		ActorID:      d.UserID,
		Action:       audit.ActionDelete,
		ResourceType: d.Entity.Name,
		Previous:     pre,
		Metadata:     map[string]any{"deleted": deleted, "filter": req.Filter},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
	})
}

func (a *API) audit(r *http.Request, ev audit.Event) {
	a.recorder.Record(r.Context(), ev)
}

// auditError records a store failure. The error detail stays in the audit
// metadata and the log; the response body carries only the driver message.
func (a *API) auditError(r *http.Request, d access.Decision, action string, err error) {
	a.audit(r, audit.Event{
		TenantID:     d.TenantID,
		ActorID:      d.UserID,
		Action:       audit.ActionAPIError,
		ResourceType: d.Entity.Name,
		Description:  "database error during " + action,
		Metadata:     map[string]any{"error": err.Error()},
	})
}

func stringField(row map[string]any, key string) string {
	if v, ok := row[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
