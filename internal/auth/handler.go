package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/dropserve/service/internal/middleware"
	"github.com/dropserve/service/internal/response"
	"github.com/dropserve/service/internal/user"
)

// usernameRegex limits usernames to URL- and filesystem-safe characters.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"hunter2hunter2"`
}

type registerRequest struct {
	SignUpToken string `json:"signUpToken" example:"Xk3jd0sPq..."`
	Username    string `json:"username"    example:"alice"`
	Password    string `json:"password"    example:"hunter2hunter2"`
}

type sessionData struct {
	Token string     `json:"token" example:"eyJhbGci..."`
	User  *user.User `json:"user"`
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Validates username and password and returns a session JWT.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password required")
		return
	}

	token, u, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid username or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, sessionData{Token: token, User: u})
}

// Register godoc
//
//	@Summary		Register new user
//	@Description	Creates an account. Requires a valid, unexpired sign-up token; each token can be spent once.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Registration details"
//	@Success		201		{object}	response.Envelope{data=sessionData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		response.BadRequest(w, "username must be 3-32 characters: letters, digits, - or _")
		return
	}
	if len(req.Password) < 8 {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}

	token, u, err := h.svc.Register(r.Context(), req.SignUpToken, req.Username, req.Password)
	if errors.Is(err, ErrInvalidSignUpToken) {
		response.BadRequest(w, "invalid or expired sign-up token")
		return
	}
	if errors.Is(err, user.ErrAlreadyExists) {
		response.Conflict(w, "username already taken")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, sessionData{Token: token, User: u})
}

// CreateSignUpToken godoc
//
//	@Summary		Mint sign-up token
//	@Description	Creates a single-use invite token. Admin only.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		201	{object}	response.Envelope{data=SignUpToken}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/signup-tokens [post]
func (h *Handler) CreateSignUpToken(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	if !requester.IsAdmin {
		response.Forbidden(w, "admin privileges required")
		return
	}

	token, err := h.svc.CreateSignUpToken(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, token)
}
