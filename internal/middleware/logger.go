package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Logger logs every request once it has been handled. Bodies are not
// logged; intake requests carry patient data.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		logger := log.With().
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent())
		if actor, ok := Actor(c); ok {
			logger = logger.Str("staff_id", actor.ID.String())
		}
		l := logger.Logger()

		switch {
		case statusCode >= 500:
			l.Error().Msg("server error")
		case statusCode >= 400:
			l.Warn().Msg("client error")
		default:
			l.Info().Msg("request processed")
		}
	}
}
