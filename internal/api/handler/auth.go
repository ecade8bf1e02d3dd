package handler

import (
	"net/http"

	"github.com/Rrens/appstruct/internal/api/middleware"
	"github.com/Rrens/appstruct/internal/api/response"
	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.RegisterInput
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, response.MsgInvalidBody)
		return
	}

	result, err := h.authService.Register(r.Context(), input)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, result)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.LoginInput
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, response.MsgInvalidBody)
		return
	}

	result, err := h.authService.Login(r.Context(), input)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.OK(w, result)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		response.Unauthorized(w, response.MsgUnauthenticated)
		return
	}

	response.OK(w, map[string]any{
		"user": user.Public(),
	})
}

// Logout is stateless; the client discards its token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"message": "Logged out successfully",
	})
}
