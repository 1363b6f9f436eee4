package http

import (
	"log/slog"
	"net/http"
	"time"

	"licensepanel/internal/middleware"
	"licensepanel/internal/security"
)

// Authenticator signs admin tokens.
type Authenticator interface {
	Login(username, password string) (string, time.Time, error)
}

// AuthHandler serves the admin login.
type AuthHandler struct {
	auth   Authenticator
	rs     *Responder
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, rs *Responder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, rs: rs, logger: logger.With(slog.String("handler", "auth"))}
}

// LoginRequest holds admin credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "admin login rejected",
			slog.String("username", req.Username),
			slog.String("client_ip", middleware.ClientIP(r)),
		)
		h.rs.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin logged in", slog.String("username", req.Username))
	h.rs.JSON(w, r, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires.UTC()})
}

// Me handles GET /api/admin/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.rs.Error(w, r, security.ErrInvalidToken)
		return
	}
	resp := map[string]interface{}{
		"username": claims.Subject,
		"role":     claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp["expiresAt"] = claims.ExpiresAt.Time.UTC()
	}
	h.rs.JSON(w, r, http.StatusOK, resp)
}
