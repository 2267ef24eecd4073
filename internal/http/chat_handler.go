package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"thera-llm/internal/repository"
	"thera-llm/internal/service"
)

// ChatHandler expone el pipeline de mensajes sobre HTTP.
type ChatHandler struct {
	logger     *zap.Logger
	sessionSvc *service.SessionService
	pool       *pgxpool.Pool
}

func NewChatHandler(logger *zap.Logger, sessionSvc *service.SessionService, pool *pgxpool.Pool) *ChatHandler {
	return &ChatHandler{
		logger:     logger,
		sessionSvc: sessionSvc,
		pool:       pool,
	}
}

// PostMessage maneja POST /me/message.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.sessionSvc.Handle(c.Request.Context(), claims.UserID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "previous message still processing"})
		case errors.Is(err, service.ErrSessionInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("message handling failed", zap.Error(err), zap.String("user_id", claims.UserID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process message"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetInfo maneja GET /me/info.
func (h *ChatHandler) GetInfo(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}

	info, err := h.sessionSvc.GetUserInfo(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active conversation"})
			return
		}
		h.logger.Error("get user info failed", zap.Error(err), zap.String("user_id", claims.UserID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get user info"})
		return
	}

	c.JSON(http.StatusOK, info)
}

// Reset maneja POST /me/reset.
func (h *ChatHandler) Reset(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return
	}

	if err := h.sessionSvc.Reset(c.Request.Context(), claims.UserID); err != nil {
		h.logger.Error("reset failed", zap.Error(err), zap.String("user_id", claims.UserID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// Health maneja GET /healthz.
func (h *ChatHandler) Health(c *gin.Context) {
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
