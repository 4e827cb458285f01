package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lumina-platform/lumina/internal/api"
	"github.com/lumina-platform/lumina/internal/identity"
	"github.com/lumina-platform/lumina/internal/users"
)

// Handler serves an owner's audit trail.
type Handler struct {
	repo  *Repository
	users *users.Service
}

func NewHandler(repo *Repository, users *users.Service) *Handler {
	return &Handler{repo: repo, users: users}
}

// List returns paginated audit logs for the authenticated caller.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := identity.GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	user, err := h.users.GetOrCreate(r.Context(), claims.Subject, claims.Email, claims.Name)
	if err != nil {
		slog.Error("resolving current user", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	params := parseListParams(r)

	logs, total, err := h.repo.ListByOwner(r.Context(), user.ID, params)
	if err != nil {
		slog.Error("listing audit logs", "user_id", user.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if logs == nil {
		logs = []Log{}
	}

	api.JSONPaginated(w, http.StatusOK, logs, total, params.Page, params.PageSize)
}

func parseListParams(r *http.Request) ListParams {
	params := DefaultListParams()

	if et := r.URL.Query().Get("event_type"); et != "" {
		params.EventType = et
	}
	if sev := r.URL.Query().Get("severity"); sev != "" {
		params.Severity = sev
	}
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.From = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.To = &t
		}
	}

	return params
}
