package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"talentvault/internal/session"
)

const (
	sessionIDKey      = "sessionID"
	sessionSubjectKey = "sessionSubject"
)

// SessionMiddleware validates the bearer token and stores the session
// identity on the context.
func SessionMiddleware(tokens *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(sessionIDKey, claims.SessionID)
		c.Set(sessionSubjectKey, claims.Subject)
		c.Next()
	}
}

// FreshnessMiddleware runs the once-per-session cache reconciliation before
// the first data access of a session. Must run after SessionMiddleware.
func FreshnessMiddleware(gate *session.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, subject := SessionFromContext(c)
		if id != "" {
			gate.EnsureFresh(c.Request.Context(), id, subject)
		}
		c.Next()
	}
}

// SessionFromContext returns the session id and subject set by
// SessionMiddleware, or empty strings.
func SessionFromContext(c *gin.Context) (string, string) {
	id, _ := c.Get(sessionIDKey)
	subject, _ := c.Get(sessionSubjectKey)
	idStr, _ := id.(string)
	subjectStr, _ := subject.(string)
	return idStr, subjectStr
}
