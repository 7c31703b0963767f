package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mc-instance-manager/internal/auth"
	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/logging"
)

// AuthHandler serves the login endpoint for the single operator account.
type AuthHandler struct {
	cfg        *config.Config
	jwtManager *auth.JWTManager
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(cfg *config.Config, jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{cfg: cfg, jwtManager: jwtManager}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges the operator credentials for an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if req.Username != h.cfg.Auth.OperatorUsername ||
		auth.VerifyPassword(req.Password, h.cfg.Auth.OperatorPasswordHash) != nil {
		logging.L().Warn("failed login attempt", "username", req.Username, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.jwtManager.Generate(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_in":   int(h.jwtManager.TokenDuration().Seconds()),
	})
}
