package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/model"
	"github.com/sightline-ai/sightline/internal/store"
)

// TenantHeader carries the authenticated tenant on every feed request.
const TenantHeader = "X-Tenant-ID"

// Handler exposes the feed Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a feed HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the feed endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/feed", h.list)
	r.Patch("/api/feed", h.bulkUpdate)
	r.Post("/api/feed/{id}/action", h.takeAction)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]apiError{"error": {Code: code, Message: message}}); err != nil {
		zap.L().Warn("feed: write error response", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("feed: write response", zap.Error(err))
	}
}

func tenantID(r *http.Request) string {
	return r.Header.Get(TenantHeader)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing tenant header")
		return
	}

	q := r.URL.Query()
	filter := store.FeedFilter{
		TenantID:         tenant,
		BrandID:          q.Get("brand_id"),
		Workflow:         model.FeedWorkflow(q.Get("workflow")),
		Severity:         model.Severity(q.Get("severity")),
		UnreadOnly:       q.Get("unread_only") == "true",
		IncludeDismissed: q.Get("include_dismissed") == "true",
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	page, err := h.svc.List(r.Context(), filter, q.Get("cursor"))
	if err != nil {
		if errors.Is(err, ErrBadCursor) {
			writeError(w, http.StatusBadRequest, "invalid_cursor", "cursor is malformed")
			return
		}
		zap.L().Error("feed: list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to list feed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type bulkUpdateRequest struct {
	EventIDs []string              `json:"event_ids"`
	Action   store.FeedStateAction `json:"action"`
}

type bulkUpdateResponse struct {
	Updated int `json:"updated"`
}

func (h *Handler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing tenant header")
		return
	}

	var req bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be JSON with event_ids and action")
		return
	}
	if len(req.EventIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "event_ids must not be empty")
		return
	}

	updated, err := h.svc.BulkUpdate(r.Context(), tenant, req.EventIDs, req.Action)
	if err != nil {
		if errors.Is(err, ErrUnknownState) {
			writeError(w, http.StatusBadRequest, "invalid_action", "unknown state action")
			return
		}
		zap.L().Error("feed: bulk update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to update feed state")
		return
	}
	writeJSON(w, http.StatusOK, bulkUpdateResponse{Updated: updated})
}

type takeActionRequest struct {
	Action model.FeedAction `json:"action"`
}

func (h *Handler) takeAction(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing tenant header")
		return
	}

	var req takeActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be JSON with an action")
		return
	}

	outcome, err := h.svc.TakeAction(r.Context(), tenant, chi.URLParam(r, "id"), req.Action)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "feed event not found")
		case errors.Is(err, ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "feed event belongs to another tenant")
		case errors.Is(err, ErrBadAction):
			writeError(w, http.StatusUnprocessableEntity, "action_not_offered", "event does not offer this action")
		default:
			zap.L().Error("feed: action failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "failed to apply action")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
