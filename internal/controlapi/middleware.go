package controlapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"diarist/internal/logging"
	"diarist/internal/services"
)

// ActorHeader names the caller for the scheduler log.
const ActorHeader = "X-Actor"

const actorKey = "actor"

// requestLogger writes one structured line per request and tags it with a
// request id.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := uuid.NewString()
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), reqID))

		c.Next()

		logger := logging.WithContext(c.Request.Context(), s.logger)
		logger.Debug("http request",
			logging.String(logging.FieldEventType, "http_request"),
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)),
			logging.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = s.defaultActor
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func actorOf(c *gin.Context) string {
	return c.GetString(actorKey)
}
