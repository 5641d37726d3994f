package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gridmeet/sfu-backend/internal/auth"
	"github.com/gridmeet/sfu-backend/pkg/response"
)

const (
	// ContextUserID is the key for the verified user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the verified user email in gin context.
	ContextUserEmail = "user_email"
)

// Auth validates the bearer token the same way C8's handshake verifier
// does for websocket connections, for the plain REST endpoints
// (attendees/analytics/transcript-url) that sit alongside the signaling
// engine. There is no global role here — host/co-host/participant is
// meeting-scoped and enforced by signaling.Engine's own authorization
// checks, not by a gin middleware.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		claims, err := verifier.Verify(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
