package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/auth"
	"github.com/sakif/calculations-api/internal/service"
)

// AuthHandler manages registration, login and the current-user endpoint.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account, answer 201 with the new user
//   - HandleLogin    → check email + password, answer with a bearer token
//   - HandleMe       → return the user resolved by auth.RequireUser
//
// The handler only translates HTTP to service calls. Validation, hashing
// and token issuance all live in service.AuthService.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleRegister creates a new user account.
//
// HTTP: POST /register
// REQUEST BODY: {"username": "alice", "email": "alice@example.com", "password": "..."}
//
// The response is the stored user. model.User tags PasswordHash with
// `json:"-"`, so the hash can never be serialised here.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, user)
}

// HandleLogin exchanges email + password for an access token.
//
// HTTP: POST /login
// REQUEST BODY: {"email": "alice@example.com", "password": "..."}
// RESPONSE:     {"access_token": "eyJ...", "token_type": "bearer"}
//
// A wrong password and an unknown email produce the same 401.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
	})
}

// HandleMe returns the currently authenticated user.
//
// HTTP: GET /me
//
// Mounted behind auth.RequireUser, so the user is always present; the
// check below only guards against a routing mistake.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("not authenticated"))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, user)
}
