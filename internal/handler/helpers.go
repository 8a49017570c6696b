package handler

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/middleware"
	appErr "github.com/xxxsen/kbchat/internal/pkg/errors"
	"github.com/xxxsen/kbchat/internal/pkg/response"
)

const internalErrorMessage = "Internal server error"

// errorStatus maps a pipeline error to the status code and the message shown
// to the caller. Unexpected errors expose nothing beyond a generic message.
func errorStatus(err error) (int, string) {
	switch {
	case appErr.IsInvalid(err):
		return http.StatusBadRequest, appErr.InvalidMessage(err)
	case appErr.IsLLM(err):
		return http.StatusInternalServerError, internalErrorMessage + ": " + err.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg := errorStatus(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", code),
		zap.Error(err),
	)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Warn("request rejected")
	}
	response.Error(c, code, msg)
}

// Recovery answers a panic in a route with the generic error envelope. The
// panic value and stack only go to the log.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logutil.GetLogger(c.Request.Context()).Error("handler panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("stack", string(debug.Stack())),
				)
				handleError(c, appErr.ErrInternal)
			}
		}()
		c.Next()
	}
}
