package users

import (
	"log/slog"
	"net/http"

	"github.com/lumina-platform/lumina/internal/api"
	"github.com/lumina-platform/lumina/internal/identity"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Me returns the caller's user row, creating it on first contact.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := identity.GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	user, err := h.svc.GetOrCreate(r.Context(), claims.Subject, claims.Email, claims.Name)
	if err != nil {
		slog.Error("resolving current user", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, user)
}
