package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"janani-health/internal/telephony"
)

// RequestLogger logs one line per request tagged with a fresh request id.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.Infow("request",
			"requestID", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"clientIP", c.ClientIP(),
			"latency", time.Since(start).String(),
		)
	}
}

// TwilioSignature rejects webhook requests whose X-Twilio-Signature does not
// match the public URL and form body. A nil validator lets everything
// through.
func TwilioSignature(v *telephony.Validator, baseURL string, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		fullURL := baseURL + c.Request.URL.RequestURI()
		if !v.Valid(fullURL, c.Request.PostForm, c.GetHeader("X-Twilio-Signature")) {
			log.Warnw("rejected unsigned webhook", "path", c.Request.URL.Path, "clientIP", c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
