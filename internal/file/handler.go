package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropserve/service/internal/middleware"
	"github.com/dropserve/service/internal/response"
)

// maxUploadMemory bounds how much of a multipart body is buffered in
// memory before spilling to temp files.
const maxUploadMemory = 32 << 20

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc        *Service
	publicBase string
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service, publicBase string) *Handler {
	return &Handler{svc: svc, publicBase: strings.TrimRight(publicBase, "/")}
}

type uploadData struct {
	URL         string `json:"url"         example:"http://localhost:8080/f/a3Xk9Qpz"`
	DeletionURL string `json:"deletionUrl" example:"http://localhost:8080/api/v1/files/a3Xk9Qpz"`
}

// Upload godoc
//
//	@Summary		Upload files
//	@Description	Accepts one or more multipart file payloads. The response describes the first file; additional files are stored all the same.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			files	formData	file	true	"File payload(s)"
//	@Param			private	formData	boolean	false	"Restrict downloads to the owner"
//	@Param			expiry	formData	string	false	"Expiry duration, e.g. 24h or 30m"
//	@Success		201		{object}	response.Envelope{data=uploadData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.BadRequest(w, "invalid multipart body")
		return
	}

	opts := UploadOptions{
		IsPrivate: r.FormValue("private") == "true",
	}
	if expiry := r.FormValue("expiry"); expiry != "" {
		d, err := time.ParseDuration(expiry)
		if err != nil || d <= 0 {
			response.BadRequest(w, "expiry must be a positive duration like 24h")
			return
		}
		at := time.Now().Add(d)
		opts.ExpiresAt = &at
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		// ShareX-style clients send a single "file" field instead.
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		response.BadRequest(w, "no file payload")
		return
	}

	var first *File
	for _, fh := range headers {
		part, err := fh.Open()
		if err != nil {
			response.BadRequest(w, "unreadable file payload")
			return
		}

		perFile := opts
		perFile.PublicFileName = fh.Filename

		stored, err := h.svc.Upload(r.Context(), part, fh.Size, fh.Filename, requester.ID, perFile)
		part.Close()
		if err != nil {
			log.Printf("file: upload failed: %v", err)
			response.Error(w, http.StatusInternalServerError, "upload failed")
			return
		}
		if first == nil {
			first = stored
		}
	}

	// Multi-file requests answer for the first file only. Documented
	// quirk of the API contract, not a bug.
	response.Created(w, uploadData{
		URL:         fmt.Sprintf("%s/f/%s", h.publicBase, first.ID),
		DeletionURL: fmt.Sprintf("%s/api/v1/files/%s", h.publicBase, first.ID),
	})
}

// Download godoc
//
//	@Summary		Download a file
//	@Description	Streams the file content. Private files require the owner's (or an admin's) credential; a bearer API token works in place of a session.
//	@Tags			files
//	@Param			id			path	string	true	"Public file ID"
//	@Param			download	query	boolean	false	"Force attachment disposition"
//	@Success		200
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/f/{id} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	var requesterID string
	var isAdmin bool
	if requester, ok := middleware.RequesterFrom(r.Context()); ok {
		requesterID = requester.ID
		isAdmin = requester.IsAdmin
	}

	f, serve, err := h.svc.Download(r.Context(), chi.URLParam(r, "id"), requesterID, isAdmin)
	if errors.Is(err, ErrRecordNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if errors.Is(err, ErrForbidden) {
		response.Forbidden(w, "this file is private")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	name := f.PublicFileName
	if name == "" {
		name = f.ID
		if f.Extension != "" {
			name += "." + f.Extension
		}
	}

	disposition := "inline"
	if r.URL.Query().Get("download") == "1" || r.URL.Query().Get("download") == "true" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", ContentType(f.Extension))
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))

	if err := serve(w); err != nil {
		// Headers are gone; the most common cause is the client hanging
		// up mid-stream. Log and move on.
		log.Printf("file: stream %s interrupted: %v", f.ID, err)
	}
}

// List godoc
//
//	@Summary		List own files
//	@Description	One dashboard page of the requester's files, newest first.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			page	query		int	false	"Page number, 1-based"
//	@Success		200		{object}	response.Envelope{data=Page}
//	@Failure		401		{object}	response.Envelope
//	@Router			/files [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	p, err := h.svc.ListByOwner(r.Context(), requester.ID, page)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, p)
}

// Delete godoc
//
//	@Summary		Delete a file
//	@Description	Removes the record and the backend object. Owner or admin only.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Public file ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), requester.ID, requester.IsAdmin)
	h.writeMutationResult(w, err)
}

// SetPrivacy godoc
//
//	@Summary		Set file privacy
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Public file ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{id}/privacy [patch]
func (h *Handler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req struct {
		IsPrivate *bool `json:"isPrivate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsPrivate == nil {
		response.BadRequest(w, "isPrivate boolean required")
		return
	}

	err := h.svc.SetPrivacy(r.Context(), chi.URLParam(r, "id"), requester.ID, requester.IsAdmin, *req.IsPrivate)
	h.writeMutationResult(w, err)
}

// SetExpiry godoc
//
//	@Summary		Set file expiry
//	@Description	Sets the expiry to now + duration, or clears it when the duration is empty.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Public file ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{id}/expiry [patch]
func (h *Handler) SetExpiry(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req struct {
		Expiry string `json:"expiry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	var expiresAt *time.Time
	if req.Expiry != "" {
		d, err := time.ParseDuration(req.Expiry)
		if err != nil || d <= 0 {
			response.BadRequest(w, "expiry must be a positive duration like 24h")
			return
		}
		at := time.Now().Add(d)
		expiresAt = &at
	}

	err := h.svc.SetExpiry(r.Context(), chi.URLParam(r, "id"), requester.ID, requester.IsAdmin, expiresAt)
	h.writeMutationResult(w, err)
}

// writeMutationResult maps lifecycle errors onto the response envelope.
func (h *Handler) writeMutationResult(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		response.NotFound(w, "file not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "not the file owner")
	case err != nil:
		response.InternalError(w)
	default:
		response.OK(w, nil)
	}
}
