package link

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropserve/service/internal/middleware"
	"github.com/dropserve/service/internal/response"
)

// Handler holds HTTP handlers for link endpoints.
type Handler struct {
	svc        *Service
	publicBase string
}

// NewHandler creates a new link Handler.
func NewHandler(svc *Service, publicBase string) *Handler {
	return &Handler{svc: svc, publicBase: strings.TrimRight(publicBase, "/")}
}

type shortenRequest struct {
	Destination string `json:"destination" example:"https://example.com/some/long/path"`
}

type shortenData struct {
	ID  string `json:"id"  example:"a3Xk9Q"`
	URL string `json:"url" example:"http://localhost:8080/s/a3Xk9Q"`
}

// Shorten godoc
//
//	@Summary		Shorten a URL
//	@Description	Creates a short code redirecting to the destination URL.
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		shortenRequest	true	"Destination URL"
//	@Success		201		{object}	response.Envelope{data=shortenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Router			/links [post]
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req shortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	l, err := h.svc.Shorten(r.Context(), req.Destination, requester.ID)
	if errors.Is(err, ErrBadDestination) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, shortenData{ID: l.ID, URL: h.publicBase + "/s/" + l.ID})
}

// List godoc
//
//	@Summary		List own links
//	@Tags			links
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Link}
//	@Failure		401	{object}	response.Envelope
//	@Router			/links [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	links, err := h.svc.ListByOwner(r.Context(), requester.ID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, links)
}

// Delete godoc
//
//	@Summary		Delete a link
//	@Description	Removes a short link. Owner or admin only.
//	@Tags			links
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Short code"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/links/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), requester.ID, requester.IsAdmin)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "link not found")
		return
	}
	if errors.Is(err, ErrForbidden) {
		response.Forbidden(w, "not the link owner")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, nil)
}

// Redirect godoc
//
//	@Summary		Follow a short link
//	@Tags			links
//	@Param			id	path	string	true	"Short code"
//	@Success		302
//	@Failure		404	{object}	response.Envelope
//	@Router			/s/{id} [get]
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	destination, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "link not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	http.Redirect(w, r, destination, http.StatusFound)
}
