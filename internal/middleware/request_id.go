package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/trace"
)

const (
	RequestIDHeader = "X-Request-Id"
	RequestIDKey    = "request_id"
)

// RequestID echoes the request id back to the caller. It reuses the trace id
// already on the context so it matches the traceid field of every log line.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID, ok := trace.GetTraceId(c.Request.Context())
		if !ok || reqID == "" {
			reqID = c.GetHeader(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Request = c.Request.WithContext(trace.WithTraceId(c.Request.Context(), reqID))
		}
		c.Writer.Header().Set(RequestIDHeader, reqID)
		c.Set(RequestIDKey, reqID)
		c.Next()
	}
}
