package api

import (
	"strings"
	"time"

	"arcade/models"
	"arcade/observability"
	"arcade/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const currentUserKey = "currentUser"

// RequireSession resolves the bearer token and stores the caller's user row in the context.
// The header must be exactly "Bearer <token>".
func RequireSession(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Split(c.GetHeader("Authorization"), " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			respondError(c, service.ErrUnauthorized)
			return
		}

		user, err := sessions.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// currentUser returns the user stored by RequireSession
func currentUser(c *gin.Context) *models.User {
	return c.MustGet(currentUserKey).(*models.User)
}

// RequestLogger writes one structured access log line per request through logrus
// and records the request against the matched route
func RequestLogger(metrics *observability.MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"clientIP": c.ClientIP(),
		})
		if user, ok := c.Get(currentUserKey); ok {
			entry = entry.WithField("userID", user.(*models.User).ID)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request completed")
		case c.Writer.Status() >= 400:
			entry.Info("Request completed")
		default:
			entry.Debug("Request completed")
		}
	}
}
