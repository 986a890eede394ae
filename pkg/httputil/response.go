package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/pkg/errors"
)

// Response wraps all API responses.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Kind    string      `json:"code,omitempty"`
	Fields  []string    `json:"fields,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Status: "success", Data: data})
}

// RespondWithError writes the error envelope. AppErrors keep their status,
// kind and fields; anything else is a 500 with a generic message and is
// attached to the context for the error middleware to log.
func RespondWithError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

// AbortWithError is RespondWithError for middleware.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorBody(err error) (int, Response) {
	appErr, ok := errors.As(err)
	if !ok || appErr.Code == errors.ErrInternal {
		return http.StatusInternalServerError, Response{Status: "error", Message: "internal server error", Kind: "internal"}
	}
	return appErr.StatusCode(), Response{
		Status:  "error",
		Message: appErr.Message,
		Kind:    appErr.Kind,
		Fields:  appErr.Fields,
	}
}
