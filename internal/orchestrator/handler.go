package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumina-platform/lumina/internal/api"
	"github.com/lumina-platform/lumina/internal/gemini"
	"github.com/lumina-platform/lumina/internal/identity"
	"github.com/lumina-platform/lumina/internal/images"
	"github.com/lumina-platform/lumina/internal/middleware"
	"github.com/lumina-platform/lumina/internal/ratelimit"
	"github.com/lumina-platform/lumina/internal/users"
)

type GenerateRequest struct {
	Prompt      string `json:"prompt" validate:"required,min=1,max=2000"`
	Model       string `json:"model" validate:"omitempty,oneof=nano-banana nano-banana-pro"`
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=1:1 16:9 9:16 4:3 3:4 21:9"`
	Resolution  string `json:"resolution" validate:"omitempty,oneof=1K 2K 4K"`
	Style       string `json:"style" validate:"omitempty,max=100"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
}

type rateLimitResponse struct {
	Error      string    `json:"error"`
	Reason     string    `json:"reason"`
	RetryAt    time.Time `json:"retry_at"`
	RetryAfter int64     `json:"retry_after_seconds"`
}

type Handler struct {
	orch     *Orchestrator
	users    *users.Service
	validate *validator.Validate
}

func NewHandler(orch *Orchestrator, users *users.Service) *Handler {
	return &Handler{
		orch:     orch,
		users:    users,
		validate: validator.New(),
	}
}

// Generate runs one generation for an authenticated or anonymous caller.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	in, err := h.buildInput(r, req)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	result, err := h.orch.Generate(r.Context(), in)
	if err != nil {
		h.handleGenerateError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"image_id": result.ImageID,
		"url":      result.URL,
		"width":    result.Width,
		"height":   result.Height,
	})
}

// Limits reports the caller's remaining quota per keyspace without consuming
// anything.
func (h *Handler) Limits(w http.ResponseWriter, r *http.Request) {
	limiter := h.orch.Limiter()
	userID, origin := h.callerKeys(r)

	type limitStatus struct {
		Keyspace  string     `json:"keyspace"`
		Limit     int        `json:"limit"`
		Remaining int        `json:"remaining"`
		RetryAt   *time.Time `json:"retry_at,omitempty"`
	}

	var statuses []limitStatus
	appendStatus := func(ks ratelimit.Keyspace, key string) bool {
		usage, err := limiter.Usage(r.Context(), ks, key)
		if err != nil {
			return false
		}
		res, err := limiter.Check(r.Context(), ks, key)
		if err != nil {
			return false
		}
		st := limitStatus{
			Keyspace:  string(ks),
			Limit:     limiter.Limit(),
			Remaining: max(limiter.Limit()-usage, 0),
		}
		if !res.OK {
			at := time.Now().Add(res.RetryAfter)
			st.RetryAt = &at
		}
		statuses = append(statuses, st)
		return true
	}

	ok := true
	if userID != nil {
		ok = appendStatus(ratelimit.KeyspaceUser, userID.String()) && ok
	}
	ok = appendStatus(ratelimit.KeyspaceOrigin, origin) && ok
	if !ok {
		api.HandleError(w, api.ErrQuotaUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, statuses)
}

func (h *Handler) buildInput(r *http.Request, req GenerateRequest) (Input, error) {
	userID, origin := h.callerKeys(r)

	model := gemini.ModelKey(req.Model)
	if req.Model == "" {
		model = gemini.DefaultModelKey
	}
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	resolution := req.Resolution
	if !gemini.SupportsResolution(model) {
		resolution = ""
	} else if resolution == "" {
		resolution = gemini.DefaultResolution(model)
	}
	visibility := images.Visibility(req.Visibility)
	if visibility == "" {
		visibility = images.VisibilityPrivate
	}

	return Input{
		UserID:      userID,
		Origin:      origin,
		Prompt:      req.Prompt,
		Model:       model,
		AspectRatio: aspectRatio,
		Resolution:  resolution,
		Style:       req.Style,
		Visibility:  visibility,
	}, nil
}

// callerKeys resolves the quota identity: the user row ID when a verified
// token is present, and always the network origin.
func (h *Handler) callerKeys(r *http.Request) (*uuid.UUID, string) {
	origin := middleware.ClientIP(r)

	claims := identity.GetClaims(r.Context())
	if claims == nil {
		return nil, origin
	}
	user, err := h.users.GetOrCreate(r.Context(), claims.Subject, claims.Email, claims.Name)
	if err != nil {
		slog.Error("resolving user for quota", "error", err)
		return nil, origin
	}
	return &user.ID, origin
}

func (h *Handler) handleGenerateError(w http.ResponseWriter, err error) {
	var rle *RateLimitError
	switch {
	case errors.As(err, &rle):
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", rle.RetryAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(rateLimitResponse{
			Error:      "rate limit exceeded",
			Reason:     rle.Reason,
			RetryAt:    rle.RetryAt.UTC(),
			RetryAfter: int64(rle.RetryAfter.Seconds()),
		})
	case errors.Is(err, ErrQuotaUnavailable):
		api.HandleError(w, api.ErrQuotaUnavailable)
	case errors.Is(err, ErrModelInvocation):
		slog.Error("generation failed upstream", "error", err)
		api.HandleError(w, api.ErrUpstreamFailure)
	default:
		slog.Error("generation failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}
