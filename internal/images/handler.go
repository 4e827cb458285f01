package images

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumina-platform/lumina/internal/api"
	"github.com/lumina-platform/lumina/internal/identity"
	"github.com/lumina-platform/lumina/internal/users"
)

type Handler struct {
	svc   *Service
	users *users.Service
}

func NewHandler(svc *Service, users *users.Service) *Handler {
	return &Handler{svc: svc, users: users}
}

// ListMine returns the caller's images, newest first. The favorites query
// parameter narrows to favorites only.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	filter := ListFilter{
		FavoritesOnly: r.URL.Query().Get("favorites") == "true",
		Limit:         limit,
		Offset:        offset,
	}

	imgs, total, err := h.svc.ListByUser(r.Context(), user.ID, filter)
	if err != nil {
		slog.Error("listing user images", "user_id", user.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if imgs == nil {
		imgs = []*Image{}
	}

	api.JSONPaginated(w, http.StatusOK, imgs, total, offset/limit+1, limit)
}

// ListPublic returns the public gallery. No identity required.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	imgs, total, err := h.svc.ListPublic(r.Context(), limit, offset)
	if err != nil {
		slog.Error("listing public images", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if imgs == nil {
		imgs = []*Image{}
	}

	api.JSONPaginated(w, http.StatusOK, imgs, total, offset/limit+1, limit)
}

// Get returns one image if it is public or owned by the caller.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid image id"))
		return
	}

	var viewerID *uuid.UUID
	if claims := identity.GetClaims(r.Context()); claims != nil {
		if user, err := h.users.GetOrCreate(r.Context(), claims.Subject, claims.Email, claims.Name); err == nil {
			viewerID = &user.ID
		}
	}

	img, err := h.svc.Get(r.Context(), id, viewerID)
	if err != nil {
		h.handleServiceError(w, err, id)
		return
	}

	api.JSON(w, http.StatusOK, img)
}

// ToggleVisibility flips an owned image between public and private.
func (h *Handler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid image id"))
		return
	}

	visibility, err := h.svc.ToggleVisibility(r.Context(), id, user.ID)
	if err != nil {
		h.handleServiceError(w, err, id)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{"id": id, "visibility": visibility})
}

// ToggleFavorite flips an owned image's favorite flag.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid image id"))
		return
	}

	favorite, err := h.svc.ToggleFavorite(r.Context(), id, user.ID)
	if err != nil {
		h.handleServiceError(w, err, id)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{"id": id, "is_favorite": favorite})
}

type updateTagsRequest struct {
	Tags []string `json:"tags"`
}

// UpdateTags replaces an owned image's tag list.
func (h *Handler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid image id"))
		return
	}

	var req updateTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}
	if len(req.Tags) > 20 {
		api.HandleError(w, api.NewValidationError("at most 20 tags allowed"))
		return
	}

	if err := h.svc.UpdateTags(r.Context(), id, user.ID, req.Tags); err != nil {
		h.handleServiceError(w, err, id)
		return
	}

	api.JSONMessage(w, http.StatusOK, "tags updated")
}

// Delete removes an owned image and its stored blob.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid image id"))
		return
	}

	if err := h.svc.Delete(r.Context(), id, user.ID); err != nil {
		h.handleServiceError(w, err, id)
		return
	}

	api.JSONMessage(w, http.StatusOK, "image deleted")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*users.User, bool) {
	claims := identity.GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return nil, false
	}
	user, err := h.users.GetOrCreate(r.Context(), claims.Subject, claims.Email, claims.Name)
	if err != nil {
		slog.Error("resolving current user", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return nil, false
	}
	return user, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error, id uuid.UUID) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.HandleError(w, api.NewNotFoundError("image not found"))
	case errors.Is(err, ErrForbidden):
		api.HandleError(w, api.ErrOwnershipViolation)
	default:
		slog.Error("image operation failed", "image_id", id, "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
