package user

import (
	"encoding/json"
	"net/http"

	"github.com/dropserve/service/internal/middleware"
	"github.com/dropserve/service/internal/response"
)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetByID(r.Context(), requester.ID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// SetGenerator godoc
//
//	@Summary		Set upload ID strategy
//	@Description	Picks the public-identifier generator applied to the user's future uploads.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/users/me/generator [patch]
func (h *Handler) SetGenerator(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req struct {
		Generator string `json:"generator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Generator == "" {
		response.BadRequest(w, "generator name required")
		return
	}

	if err := h.svc.SetGenerator(r.Context(), requester.ID, req.Generator); err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, nil)
}

// RegenerateToken godoc
//
//	@Summary		Regenerate API token
//	@Description	Replaces the requester's static API token. The old token stops working immediately.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Router			/users/me/token [post]
func (h *Handler) RegenerateToken(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	token, err := h.svc.RegenerateToken(r.Context(), requester.ID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]string{"token": token})
}
