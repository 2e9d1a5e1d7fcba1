// Package handlers implements the gin handlers of the TechIntel HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeAppError maps err to a status through its error code.  Server-side
// failures are reported with the code's default message only.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{
		Code:      code.String(),
		Message:   errors.DefaultMessageForCode(code),
		RequestID: logging.RequestIDFromContext(c.Request.Context()),
	}
	if status < http.StatusInternalServerError {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			resp.Message = ae.Message
			resp.Detail = ae.Detail
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// badRequest reports a malformed request.
func badRequest(c *gin.Context, msg string, cause error) {
	err := errors.New(errors.ErrCodeBadRequest, msg)
	if cause != nil {
		err = err.WithCause(cause).WithDetail(cause.Error())
	}
	writeAppError(c, err)
}
