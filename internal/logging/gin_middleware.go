package logging

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/claudex-proxy/claudex/internal/apperrors"
)

// RequestIDHeader is the header used to propagate a per-request id, both
// inbound (if the child CLI already set one) and outbound.
const RequestIDHeader = "X-Request-Id"

// GinLogrusLogger logs every HTTP request/response pair through logrus and
// stamps a request id on the response.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := strings.TrimSpace(c.Request.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		latency := time.Since(start).Truncate(time.Millisecond)
		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency":    latency.String(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Info("request handled")
	}
}

// GinRecovery converts a panic into a structured 500 response instead of
// crashing the server.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				appErr := apperrors.Translation(fmt.Sprintf("panic: %v", r), nil)
				log.WithField("panic", r).Error("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"code": appErr.Kind, "message": "internal server error"},
				})
			}
		}()
		c.Next()
	}
}
