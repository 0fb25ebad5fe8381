package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"talentvault/internal/api/middleware"
	"talentvault/internal/session"
)

const loginRateLimitPerHour = 30

// AuthHandler opens and closes sessions. Identity is established upstream;
// this service only needs a stable subject to key session state on.
type AuthHandler struct {
	tokens *session.Service
	gate   *session.Gate
	cache  *session.Cache
	redis  redis.UniversalClient
	logger *slog.Logger
}

// NewAuthHandler builds the session handler.
func NewAuthHandler(tokens *session.Service, gate *session.Gate, cache *session.Cache, redisClient redis.UniversalClient, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		tokens: tokens,
		gate:   gate,
		cache:  cache,
		redis:  redisClient,
		logger: logger,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	SessionID   string `json:"session_id"`
}

// Login opens a session for an upstream-authenticated user and returns its
// token. Each login gets a fresh session id, so the new session reconciles
// the local cache file on its first data access.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.String("username", req.Username))

	// Rate limit per ip and username, per hour.
	rateKey := "rate:login:" + c.ClientIP() + ":" + strings.ToLower(req.Username) + ":" + time.Now().UTC().Format("2006010215")
	if count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour); err == nil && count > loginRateLimitPerHour {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	token, sessionID, err := h.tokens.IssueToken(req.Username)
	if err != nil {
		logger.Error("issue token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.gate.Begin(sessionID, req.Username)
	logger.Info("session opened", slog.String("session_id", sessionID))

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokens.TokenTTL().Seconds()),
		SessionID:   sessionID,
	})
}

// Logout ends the session and drops its cached results.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, _ := middleware.SessionFromContext(c)
	if sessionID == "" {
		AbortUnauthorized(c)
		return
	}

	h.gate.End(sessionID)
	h.cache.Purge(c.Request.Context(), sessionID)

	middleware.LoggerFromContext(c).Info("session closed", slog.String("session_id", sessionID))
	c.Status(http.StatusOK)
}

// SessionInfo reports the gate's view of the current session.
func (h *AuthHandler) SessionInfo(c *gin.Context) {
	sessionID, _ := middleware.SessionFromContext(c)
	state, ok := h.gate.Lookup(sessionID)
	if !ok {
		NotFound(c, "session not found")
		return
	}
	c.JSON(http.StatusOK, state)
}
