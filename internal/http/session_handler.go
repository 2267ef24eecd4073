package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thera-llm/internal/service"
)

// SessionHandler emite tokens de acceso para el canal HTTP.
type SessionHandler struct {
	logger *zap.Logger
	jwtSvc *service.JWTService
}

func NewSessionHandler(logger *zap.Logger, jwtSvc *service.JWTService) *SessionHandler {
	return &SessionHandler{logger: logger, jwtSvc: jwtSvc}
}

// CreateSession maneja POST /session.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, expiresIn, err := h.jwtSvc.GenerateAccessToken(req.UserID)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"access_token": token,
		"expires_in":   expiresIn,
	})
}
