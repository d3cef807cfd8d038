package api

import (
	"context"
	"net/http"

	"webmonitor/internal/api/types"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CredentialVerifier checks administrator credentials.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	admins CredentialVerifier
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(admins CredentialVerifier) *AuthHandler {
	return &AuthHandler{admins: admins}
}

// Login handles POST /login
//
// Response:
//   - 200 OK with {"success": true|false}
//   - 400 Bad Request when the body is not JSON
func (h *AuthHandler) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ValidationError("invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusOK, types.LoginResponse{Success: false})
		return
	}

	ok, err := h.admins.Verify(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to verify credentials")
		c.JSON(http.StatusInternalServerError, types.InternalError("Internal server error"))
		return
	}

	if !ok {
		log.Warn().Str("username", req.Username).Str("client_ip", c.ClientIP()).Msg("Failed login attempt")
	} else {
		log.Info().Str("username", req.Username).Msg("Admin logged in")
	}

	c.JSON(http.StatusOK, types.LoginResponse{Success: ok})
}
