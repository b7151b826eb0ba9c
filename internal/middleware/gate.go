package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/services"
)

type GateMiddleware struct {
	log  *logger.Logger
	gate services.GateService
}

func NewGateMiddleware(log *logger.Logger, gate services.GateService) *GateMiddleware {
	return &GateMiddleware{
		log:  log.With("middleware", "GateMiddleware"),
		gate: gate,
	}
}

// RequireSession admits only requests carrying a valid gate token.
// The query-parameter fallback exists for EventSource, which cannot
// set headers.
func (gm *GateMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}
		if err := gm.gate.ParseToken(tokenString); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session token"})
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}
