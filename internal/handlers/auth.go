package handlers

import (
	"net/http"

	"github.com/notestash/notestash/internal/httputil"
	"github.com/notestash/notestash/internal/users"
)

// AuthHandler serves the signup and login endpoints.
type AuthHandler struct {
	users *users.Service
}

// NewAuthHandler creates an AuthHandler backed by the given users service.
func NewAuthHandler(users *users.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if _, err := h.users.Signup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "User created")
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	token, user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}
