package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/kbchat/internal/model"
)

const ErrorType = "invalid_request_error"

func ErrorBody(code int, message string) model.ErrorBody {
	return model.ErrorBody{
		Error: model.ErrorDetail{
			Message: message,
			Type:    ErrorType,
			Code:    code,
		},
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorBody(code, message))
}
