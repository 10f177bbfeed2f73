package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader is the HTTP header for request ID
const RequestIDHeader = "X-Request-ID"

// GinMiddleware is a Gin middleware that adds a request ID to the context and
// logs request start/end.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		Info(ctx).
			Str("method", method).
			Str("path", path).
			Str("ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}

// WebSocketContext creates a context with a request ID for a WebSocket
// connection; the ID lives as long as the socket.
func WebSocketContext(r *http.Request) context.Context {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	return WithRequestID(context.Background(), requestID)
}
